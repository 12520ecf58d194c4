package inbound

import (
	"context"
	"fmt"

	"github.com/goliatone/go-relay/core"
)

// StoreFeed reads a tenant's inbound messages in Seq order from the message
// store, resuming after the persisted cursor.
type StoreFeed struct {
	messages core.MessageStore
	cursors  core.CursorStore
}

func NewStoreFeed(messages core.MessageStore, cursors core.CursorStore) (*StoreFeed, error) {
	if messages == nil {
		return nil, fmt.Errorf("inbound: message store is required")
	}
	if cursors == nil {
		return nil, fmt.Errorf("inbound: cursor store is required")
	}
	return &StoreFeed{messages: messages, cursors: cursors}, nil
}

func (f *StoreFeed) Cursor(ctx context.Context, tenantID string) (int64, error) {
	cursor, err := f.cursors.Get(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	return cursor.LastSeq, nil
}

// NextUndelivered skips messages that already reached a terminal status.
// That covers a crash between the status write and the cursor advance.
func (f *StoreFeed) NextUndelivered(ctx context.Context, tenantID string, cursor int64) (core.Message, bool, error) {
	after := cursor
	for {
		message, ok, err := f.messages.NextAfter(ctx, tenantID, core.DirectionInbound, after)
		if err != nil || !ok {
			return core.Message{}, false, err
		}
		if !message.Status.Terminal() {
			return message, true, nil
		}
		after = message.Seq
	}
}

func (f *StoreFeed) Advance(ctx context.Context, tenantID string, seq int64) error {
	_, err := f.cursors.Advance(ctx, tenantID, seq)
	return err
}

// MarkDelivered and MarkFailed let the feed double as the dispatch status
// writer.
func (f *StoreFeed) MarkDelivered(ctx context.Context, id string, attempts int) error {
	return f.messages.MarkDelivered(ctx, id, attempts)
}

func (f *StoreFeed) MarkFailed(ctx context.Context, id string, reason string, attempts int) error {
	return f.messages.MarkFailed(ctx, id, reason, attempts)
}

var _ core.InboundFeed = (*StoreFeed)(nil)
