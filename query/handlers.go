package query

import (
	"context"

	"github.com/goliatone/go-relay/core"
)

type TenantReader interface {
	GetTenant(ctx context.Context, tenantID string) (core.Tenant, error)
	ListTenants(ctx context.Context) ([]core.Tenant, error)
}

type DispatchReader interface {
	DispatcherStatus(ctx context.Context, tenantID string) (core.DispatcherStatus, error)
	DispatcherSnapshot(ctx context.Context) []core.DispatchStatus
}

type MessageReader interface {
	ListMessages(ctx context.Context, req core.ListMessagesRequest) ([]core.Message, error)
	GetMessage(ctx context.Context, messageID string) (core.Message, error)
	FeedCursor(ctx context.Context, tenantID string) (core.FeedCursor, error)
}

type GetTenantQuery struct {
	reader TenantReader
}

func NewGetTenantQuery(reader TenantReader) *GetTenantQuery {
	return &GetTenantQuery{reader: reader}
}

func (q *GetTenantQuery) Query(ctx context.Context, msg GetTenantMessage) (core.Tenant, error) {
	if q == nil || q.reader == nil {
		return core.Tenant{}, queryDependencyError("query: tenant reader is required")
	}
	return q.reader.GetTenant(ctx, msg.TenantID)
}

type ListTenantsQuery struct {
	reader TenantReader
}

func NewListTenantsQuery(reader TenantReader) *ListTenantsQuery {
	return &ListTenantsQuery{reader: reader}
}

func (q *ListTenantsQuery) Query(ctx context.Context, _ ListTenantsMessage) ([]core.Tenant, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: tenant reader is required")
	}
	return q.reader.ListTenants(ctx)
}

type DispatcherStatusQuery struct {
	reader DispatchReader
}

func NewDispatcherStatusQuery(reader DispatchReader) *DispatcherStatusQuery {
	return &DispatcherStatusQuery{reader: reader}
}

func (q *DispatcherStatusQuery) Query(ctx context.Context, msg DispatcherStatusMessage) (core.DispatcherStatus, error) {
	if q == nil || q.reader == nil {
		return core.DispatcherStatus{}, queryDependencyError("query: dispatch reader is required")
	}
	return q.reader.DispatcherStatus(ctx, msg.TenantID)
}

type DispatcherSnapshotQuery struct {
	reader DispatchReader
}

func NewDispatcherSnapshotQuery(reader DispatchReader) *DispatcherSnapshotQuery {
	return &DispatcherSnapshotQuery{reader: reader}
}

func (q *DispatcherSnapshotQuery) Query(ctx context.Context, _ DispatcherSnapshotMessage) ([]core.DispatchStatus, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: dispatch reader is required")
	}
	return q.reader.DispatcherSnapshot(ctx), nil
}

type ListMessagesQuery struct {
	reader MessageReader
}

func NewListMessagesQuery(reader MessageReader) *ListMessagesQuery {
	return &ListMessagesQuery{reader: reader}
}

func (q *ListMessagesQuery) Query(ctx context.Context, msg ListMessagesMessage) ([]core.Message, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: message reader is required")
	}
	return q.reader.ListMessages(ctx, core.ListMessagesRequest{
		TenantID: msg.TenantID,
		AfterSeq: msg.AfterSeq,
		Limit:    msg.Limit,
	})
}

type GetMessageQuery struct {
	reader MessageReader
}

func NewGetMessageQuery(reader MessageReader) *GetMessageQuery {
	return &GetMessageQuery{reader: reader}
}

func (q *GetMessageQuery) Query(ctx context.Context, msg GetMessageMessage) (core.Message, error) {
	if q == nil || q.reader == nil {
		return core.Message{}, queryDependencyError("query: message reader is required")
	}
	return q.reader.GetMessage(ctx, msg.MessageID)
}

type FeedCursorQuery struct {
	reader MessageReader
}

func NewFeedCursorQuery(reader MessageReader) *FeedCursorQuery {
	return &FeedCursorQuery{reader: reader}
}

func (q *FeedCursorQuery) Query(ctx context.Context, msg FeedCursorMessage) (core.FeedCursor, error) {
	if q == nil || q.reader == nil {
		return core.FeedCursor{}, queryDependencyError("query: message reader is required")
	}
	return q.reader.FeedCursor(ctx, msg.TenantID)
}
