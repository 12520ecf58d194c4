package query

import "strings"

const (
	TypeGetTenant          = "relay.query.tenant.get"
	TypeListTenants        = "relay.query.tenant.list"
	TypeDispatcherStatus   = "relay.query.dispatch.status"
	TypeDispatcherSnapshot = "relay.query.dispatch.snapshot"
	TypeListMessages       = "relay.query.message.list"
	TypeGetMessage         = "relay.query.message.get"
	TypeFeedCursor         = "relay.query.feed.cursor"
)

type GetTenantMessage struct {
	TenantID string
}

func (GetTenantMessage) Type() string { return TypeGetTenant }

func (m GetTenantMessage) Validate() error {
	return requireTenantID(m.TenantID)
}

type ListTenantsMessage struct{}

func (ListTenantsMessage) Type() string { return TypeListTenants }

func (ListTenantsMessage) Validate() error { return nil }

type DispatcherStatusMessage struct {
	TenantID string
}

func (DispatcherStatusMessage) Type() string { return TypeDispatcherStatus }

func (m DispatcherStatusMessage) Validate() error {
	return requireTenantID(m.TenantID)
}

type DispatcherSnapshotMessage struct{}

func (DispatcherSnapshotMessage) Type() string { return TypeDispatcherSnapshot }

func (DispatcherSnapshotMessage) Validate() error { return nil }

type ListMessagesMessage struct {
	TenantID string
	AfterSeq int64
	Limit    int
}

func (ListMessagesMessage) Type() string { return TypeListMessages }

func (m ListMessagesMessage) Validate() error {
	if err := requireTenantID(m.TenantID); err != nil {
		return err
	}
	if m.AfterSeq < 0 {
		return queryValidationError("after_seq", "after_seq must be >= 0")
	}
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}

type GetMessageMessage struct {
	MessageID string
}

func (GetMessageMessage) Type() string { return TypeGetMessage }

func (m GetMessageMessage) Validate() error {
	if strings.TrimSpace(m.MessageID) == "" {
		return queryValidationError("message_id", "message id is required")
	}
	return nil
}

type FeedCursorMessage struct {
	TenantID string
}

func (FeedCursorMessage) Type() string { return TypeFeedCursor }

func (m FeedCursorMessage) Validate() error {
	return requireTenantID(m.TenantID)
}

func requireTenantID(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return queryValidationError("tenant_id", "tenant id is required")
	}
	return nil
}
