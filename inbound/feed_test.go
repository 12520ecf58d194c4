package inbound

import (
	"context"
	"testing"

	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/store/memory"
)

func TestStoreFeed_WalksInboundMessagesAfterCursor(t *testing.T) {
	stores := memory.NewStoreProvider()
	feed, err := NewStoreFeed(stores.MessageStore(), stores.CursorStore())
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}
	ctx := context.Background()
	appendMessage := func(direction core.Direction, content string) core.Message {
		message, err := stores.MessageStore().Append(ctx, core.AppendMessageInput{TenantID: "t1", Direction: direction, Content: content})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		return message
	}
	first := appendMessage(core.DirectionInbound, "one")
	appendMessage(core.DirectionOutbound, "reply")
	delivered := appendMessage(core.DirectionInbound, "already delivered")
	pending := appendMessage(core.DirectionInbound, "pending")

	if err := feed.MarkDelivered(ctx, delivered.ID, 1); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}

	cursor, err := feed.Cursor(ctx, "t1")
	if err != nil || cursor != 0 {
		t.Fatalf("expected zero cursor, got %d err=%v", cursor, err)
	}
	next, ok, err := feed.NextUndelivered(ctx, "t1", cursor)
	if err != nil || !ok || next.ID != first.ID {
		t.Fatalf("expected first message, got %+v ok=%v err=%v", next, ok, err)
	}
	if err := feed.Advance(ctx, "t1", next.Seq); err != nil {
		t.Fatalf("advance: %v", err)
	}

	cursor, _ = feed.Cursor(ctx, "t1")
	next, ok, err = feed.NextUndelivered(ctx, "t1", cursor)
	if err != nil || !ok || next.ID != pending.ID {
		t.Fatalf("expected outbound and terminal messages skipped, got %+v", next)
	}
	if err := feed.Advance(ctx, "t1", next.Seq); err != nil {
		t.Fatalf("advance: %v", err)
	}
	cursor, _ = feed.Cursor(ctx, "t1")
	if _, ok, _ := feed.NextUndelivered(ctx, "t1", cursor); ok {
		t.Fatalf("expected drained feed")
	}
}

func TestNewStoreFeed_RequiresStores(t *testing.T) {
	stores := memory.NewStoreProvider()
	if _, err := NewStoreFeed(nil, stores.CursorStore()); err == nil {
		t.Fatalf("expected message store required")
	}
	if _, err := NewStoreFeed(stores.MessageStore(), nil); err == nil {
		t.Fatalf("expected cursor store required")
	}
}
