package core

import (
	"context"
	"fmt"

	glog "github.com/goliatone/go-logger/glog"
)

// Connector wires the mapper, filter translator, membership synchronizer and
// the two entity services against one storage provider. It is the single
// entry point host applications embed.
type Connector struct {
	config      Config
	logger      Logger
	provider    LoggerProvider
	metrics     MetricsRecorder
	errorMapper ErrorMapper
	sessions    StoreSessionFactory
	mapper      *AttributeMapper
	filters     *FilterTranslator
	membership  *MembershipSynchronizer
	users       *UserService
	groups      *GroupService
}

func New(cfg Config, options ...Option) (*Connector, error) {
	builder := defaultConnectorBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("provisioning", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("provisioning"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	sessions := builder.sessions
	if sessions == nil && builder.storeFactory != nil {
		switch factory := builder.storeFactory.(type) {
		case SessionStoreFactory:
			storeProvider, buildErr := factory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if storeProvider != nil {
				sessions = storeProvider.Sessions()
			}
		case StoreProvider:
			sessions = factory.Sessions()
		case StoreSessionFactory:
			sessions = factory
		}
	}
	if sessions == nil {
		return nil, NewValidationError("core: a store session factory is required")
	}

	userMapping, err := finalConfig.UserFieldMapping()
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	groupMapping, err := finalConfig.GroupFieldMapping()
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	mapper := NewAttributeMapper()
	filters := NewFilterTranslator(mapper)
	membership, err := NewMembershipSynchronizer(
		mapper,
		userMapping,
		groupMapping,
		finalConfig.Collections.Users,
		finalConfig.Collections.Groups,
		logger,
	)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	observer := newOperationObserver(logger, builder.metricsRecorder)

	users, err := NewUserService(
		mapper, filters, membership, sessions,
		userMapping, finalConfig.Collections.Users,
		logger, observer,
	)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	groups, err := NewGroupService(
		mapper, filters, membership, sessions,
		groupMapping, finalConfig.Collections.Groups,
		logger, observer,
	)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Connector{
		config:      finalConfig,
		logger:      logger,
		provider:    provider,
		metrics:     builder.metricsRecorder,
		errorMapper: builder.errorMapper,
		sessions:    sessions,
		mapper:      mapper,
		filters:     filters,
		membership:  membership,
		users:       users,
		groups:      groups,
	}, nil
}

func (c *Connector) Users() *UserService {
	if c == nil {
		return nil
	}
	return c.users
}

func (c *Connector) Groups() *GroupService {
	if c == nil {
		return nil
	}
	return c.groups
}

func (c *Connector) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.config
}

func (c *Connector) Logger() Logger {
	if c == nil {
		return nil
	}
	return c.logger
}

// MapError normalizes any error into the connector taxonomy.
func (c *Connector) MapError(err error) error {
	if err == nil {
		return nil
	}
	if c == nil || c.errorMapper == nil {
		return provisioningErrorMapper(err)
	}
	if mapped := c.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper != nil {
		if mapped := mapper(err); mapped != nil {
			return mapped
		}
	}
	return fmt.Errorf("core: connector build failed: %w", err)
}
