package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-relay/core"
)

var (
	_ gocmd.Querier[GetTenantMessage, core.Tenant]                    = (*GetTenantQuery)(nil)
	_ gocmd.Querier[ListTenantsMessage, []core.Tenant]                = (*ListTenantsQuery)(nil)
	_ gocmd.Querier[DispatcherStatusMessage, core.DispatcherStatus]   = (*DispatcherStatusQuery)(nil)
	_ gocmd.Querier[DispatcherSnapshotMessage, []core.DispatchStatus] = (*DispatcherSnapshotQuery)(nil)
	_ gocmd.Querier[ListMessagesMessage, []core.Message]              = (*ListMessagesQuery)(nil)
	_ gocmd.Querier[GetMessageMessage, core.Message]                  = (*GetMessageQuery)(nil)
	_ gocmd.Querier[FeedCursorMessage, core.FeedCursor]               = (*FeedCursorQuery)(nil)
)
