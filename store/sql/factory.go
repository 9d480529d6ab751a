package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-provisioning/core"
)

// DirectoryStoreFactory builds a DirectoryStore lazily from whatever
// persistence client the connector builder was handed.
type DirectoryStoreFactory struct {
	options []StoreOption
	store   *DirectoryStore
}

func NewDirectoryStoreFactory(options ...StoreOption) *DirectoryStoreFactory {
	return &DirectoryStoreFactory{options: options}
}

func NewDirectoryStoreFromPersistence(client *persistence.Client, options ...StoreOption) (*DirectoryStore, error) {
	db, err := resolveBunDB(client)
	if err != nil {
		return nil, err
	}
	return NewDirectoryStore(db, options...)
}

func (f *DirectoryStoreFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: directory store factory is nil")
	}
	if f.store != nil {
		return f.store, nil
	}
	db, err := resolveBunDB(persistenceClient)
	if err != nil {
		return nil, err
	}
	store, err := NewDirectoryStore(db, f.options...)
	if err != nil {
		return nil, err
	}
	f.store = store
	return store, nil
}

func (f *DirectoryStoreFactory) Store() *DirectoryStore {
	if f == nil {
		return nil
	}
	return f.store
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
