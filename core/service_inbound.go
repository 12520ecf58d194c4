package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ReceiveInbound persists an inbound message and wakes the tenant's worker.
// Duplicates are reported in the result, not as errors.
func (s *Service) ReceiveInbound(ctx context.Context, req ReceiveInboundRequest) (result ReceiveInboundResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"tenant_id": strings.TrimSpace(req.TenantID),
		"chat_id":   req.ChatID,
	}
	defer func() {
		fields["duplicate"] = result.Duplicate
		fields["message_id"] = result.Message.ID
		s.observeOperation(ctx, startedAt, "receive_inbound", err, fields)
	}()

	if s.receiver == nil {
		err = s.mapError(fmt.Errorf("core: inbound receiver is required"))
		return ReceiveInboundResult{}, err
	}
	result, err = s.receiver.Receive(ctx, req)
	if err != nil {
		err = s.mapError(err)
		return ReceiveInboundResult{}, err
	}
	if result.Duplicate {
		return result, nil
	}

	tenantID := result.Message.TenantID
	s.registry.Wake(tenantID)
	for _, notifier := range s.notifiers {
		if notifyErr := notifier.NotifyAppended(ctx, tenantID, result.Message.Seq); notifyErr != nil {
			s.logWarn(ctx, "feed notification failed", map[string]any{
				"tenant_id": tenantID,
				"seq":       result.Message.Seq,
				"error":     notifyErr.Error(),
			})
		}
	}
	return result, nil
}

func (s *Service) ListMessages(ctx context.Context, req ListMessagesRequest) ([]Message, error) {
	tenant, err := s.requireTenant(ctx, req.TenantID)
	if err != nil {
		return nil, s.mapError(err)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	afterSeq := req.AfterSeq
	if afterSeq < 0 {
		afterSeq = 0
	}
	messages, err := s.messageStore.List(ctx, tenant.ID, afterSeq, limit)
	if err != nil {
		return nil, s.mapError(err)
	}
	return messages, nil
}

func (s *Service) GetMessage(ctx context.Context, messageID string) (Message, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return Message{}, s.mapError(fmt.Errorf("core: message id is required"))
	}
	message, err := s.messageStore.Get(ctx, messageID)
	if err != nil {
		return Message{}, s.mapError(err)
	}
	return message, nil
}

// FeedCursor reports how far the tenant's dispatcher has progressed.
func (s *Service) FeedCursor(ctx context.Context, tenantID string) (FeedCursor, error) {
	tenant, err := s.requireTenant(ctx, tenantID)
	if err != nil {
		return FeedCursor{}, s.mapError(err)
	}
	cursor, err := s.cursorStore.Get(ctx, tenant.ID)
	if err != nil {
		return FeedCursor{}, s.mapError(err)
	}
	return cursor, nil
}
