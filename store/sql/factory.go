package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-relay/core"
)

type RepositoryFactory struct {
	db           *bun.DB
	cacheService repositorycache.CacheService

	tenantStore     core.TenantStore
	tenantAuthStore *TenantAuthStore
	messageStore    *MessageStore
	cursorStore     *CursorStore
}

type FactoryOption func(*RepositoryFactory)

// WithTenantCache serves tenant lookups through cacheService.
func WithTenantCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cacheService = cacheService
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.tenantStore != nil && f.messageStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) TenantStore() core.TenantStore {
	if f == nil {
		return nil
	}
	return f.tenantStore
}

func (f *RepositoryFactory) TenantAuthStore() core.TenantAuthStore {
	if f == nil {
		return nil
	}
	return f.tenantAuthStore
}

func (f *RepositoryFactory) MessageStore() core.MessageStore {
	if f == nil {
		return nil
	}
	return f.messageStore
}

func (f *RepositoryFactory) CursorStore() core.CursorStore {
	if f == nil {
		return nil
	}
	return f.cursorStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	tenantStore, err := NewTenantStore(f.db)
	if err != nil {
		return err
	}
	f.tenantStore = tenantStore
	if f.cacheService != nil {
		cached, err := NewCachedTenantStore(tenantStore, f.cacheService)
		if err != nil {
			return err
		}
		f.tenantStore = cached
	}
	if f.tenantAuthStore, err = NewTenantAuthStore(f.db); err != nil {
		return err
	}
	if f.messageStore, err = NewMessageStore(f.db); err != nil {
		return err
	}
	if f.cursorStore, err = NewCursorStore(f.db); err != nil {
		return err
	}
	return nil
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
