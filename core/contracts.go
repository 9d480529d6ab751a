package core

import (
	"context"
	"errors"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// Storage sentinels. Store implementations wrap these two conditions so the
// services can translate them; every other storage failure is opaque and gets
// wrapped into the connector taxonomy as-is.
var (
	ErrStoreDuplicate = errors.New("core: storage uniqueness violation")
	ErrStoreNotFound  = errors.New("core: storage record not found")
)

// StoreSession is the scoped storage accessor for one provisioning operation.
// Records are storage-schema documents keyed by a storage-generated "id".
// Update merges the patch into every matched record: nested objects merge key
// by key (MergePatch), so fields the patch does not name survive, while
// scalar and array values replace what was stored. Sessions are acquired at
// operation start and must be released on every exit path; they are not safe
// for use after Release.
type StoreSession interface {
	FindMany(ctx context.Context, collection string, filter StorageFilter) ([]map[string]any, error)
	FindUnique(ctx context.Context, collection string, filter StorageFilter) (map[string]any, bool, error)
	FindFirst(ctx context.Context, collection string, filter StorageFilter) (map[string]any, bool, error)
	Create(ctx context.Context, collection string, record map[string]any) (map[string]any, error)
	Update(ctx context.Context, collection string, filter StorageFilter, patch map[string]any) error
	Delete(ctx context.Context, collection string, filter StorageFilter) error
	Release() error
}

type StoreSessionFactory interface {
	Acquire(ctx context.Context) (StoreSession, error)
}

type StoreProvider interface {
	Sessions() StoreSessionFactory
}

// SessionStoreFactory lets a store package build its provider lazily from a
// persistence client handed to the connector builder.
type SessionStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

func releaseSession(logger Logger, session StoreSession) {
	if session == nil {
		return
	}
	if err := session.Release(); err != nil && logger != nil {
		logger.Error("store session release failed", "error", err)
	}
}
