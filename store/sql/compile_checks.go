package sqlstore

import "github.com/goliatone/go-relay/core"

var (
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.TenantStore            = (*TenantStore)(nil)
	_ core.TenantAuthStore        = (*TenantAuthStore)(nil)
	_ core.MessageStore           = (*MessageStore)(nil)
	_ core.CursorStore            = (*CursorStore)(nil)
)
