package provisioning

import "github.com/goliatone/go-provisioning/core"

type Config = core.Config

type CollectionsConfig = core.CollectionsConfig

type MappingEntry = core.MappingEntry

type Option = core.Option

type Connector = core.Connector

type UserService = core.UserService
type GroupService = core.GroupService

type QueryPredicate = core.QueryPredicate
type MemberOperation = core.MemberOperation
type GroupMember = core.GroupMember
type ListResult = core.ListResult

type StoreSession = core.StoreSession
type StoreSessionFactory = core.StoreSessionFactory
type StoreProvider = core.StoreProvider

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithStoreFactory      = core.WithStoreFactory
	WithSessionFactory    = core.WithSessionFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func New(cfg Config, opts ...Option) (*Connector, error) {
	return core.New(cfg, opts...)
}
