package inbound

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-relay/core"
)

// Receiver validates and persists inbound provider messages. Redelivery of a
// provider message inside the idempotency window is reported as a duplicate.
type Receiver struct {
	Tenants  core.TenantStore
	Messages core.MessageStore
	Claims   ClaimStore
	TTL      time.Duration
	Now      func() time.Time
	Logger   core.Logger
}

func NewReceiver(tenants core.TenantStore, messages core.MessageStore, claims ClaimStore) *Receiver {
	if claims == nil {
		claims = NewInMemoryClaimStore()
	}
	return &Receiver{
		Tenants:  tenants,
		Messages: messages,
		Claims:   claims,
		TTL:      core.DefaultIdempotencyTTL,
		Now:      func() time.Time { return time.Now().UTC() },
		Logger:   glog.Nop(),
	}
}

// NewReceiverFactory builds receivers from resolved runtime dependencies.
// A nil claim store falls back to a process-local one.
func NewReceiverFactory(claims ClaimStore) core.InboundReceiverFactory {
	return func(deps core.RuntimeDependencies) (core.InboundReceiver, error) {
		if deps.TenantStore == nil || deps.MessageStore == nil {
			return nil, fmt.Errorf("inbound: tenant and message stores are required")
		}
		receiver := NewReceiver(deps.TenantStore, deps.MessageStore, claims)
		if ttl := deps.Config.Inbound.IdempotencyTTL; ttl > 0 {
			receiver.TTL = ttl
		}
		_, receiver.Logger = glog.Resolve("relay.inbound", deps.LoggerProvider, deps.Logger)
		return receiver, nil
	}
}

func (r *Receiver) Receive(ctx context.Context, req core.ReceiveInboundRequest) (core.ReceiveInboundResult, error) {
	if r == nil || r.Tenants == nil || r.Messages == nil {
		return core.ReceiveInboundResult{}, inboundInternal("inbound: receiver is not configured", nil)
	}
	req.TenantID = strings.TrimSpace(req.TenantID)
	if req.TenantID == "" {
		return core.ReceiveInboundResult{}, inboundBadInput("inbound: tenant id is required", nil)
	}
	metadata := map[string]any{
		"tenant_id":           req.TenantID,
		"chat_id":             req.ChatID,
		"provider_message_id": req.ProviderMessageID,
	}
	if strings.TrimSpace(req.Content) == "" {
		return core.ReceiveInboundResult{}, inboundBadInput("inbound: message content is required", metadata)
	}

	tenant, err := r.Tenants.Get(ctx, req.TenantID)
	if err != nil {
		if errors.Is(err, core.ErrTenantNotFound) {
			return core.ReceiveInboundResult{}, inboundWrapError(
				err,
				goerrors.CategoryNotFound,
				"inbound: unknown tenant",
				http.StatusNotFound,
				core.RelayErrorTenantNotFound,
				metadata,
			)
		}
		return core.ReceiveInboundResult{}, inboundOperation(err, "inbound: load tenant", metadata)
	}

	claimID := ""
	if key := IdempotencyKey(req); key != "" && r.Claims != nil {
		var accepted bool
		claimID, accepted, err = r.Claims.Claim(ctx, key, r.TTL)
		if err != nil {
			return core.ReceiveInboundResult{}, inboundOperation(err, "inbound: idempotency claim failed", metadata)
		}
		if !accepted {
			r.Logger.Debug("inbound message deduplicated", "tenant_id", tenant.ID, "key", key)
			return core.ReceiveInboundResult{Duplicate: true}, nil
		}
	}

	timestamp := req.Timestamp
	if timestamp.IsZero() {
		timestamp = r.now()
	}
	message, err := r.Messages.Append(ctx, core.AppendMessageInput{
		TenantID:          tenant.ID,
		Direction:         core.DirectionInbound,
		Status:            core.MessageStatusSent,
		Content:           req.Content,
		Timestamp:         timestamp.UTC(),
		ChatID:            req.ChatID,
		ProviderMessageID: req.ProviderMessageID,
		PhoneNumber:       strings.TrimSpace(req.PhoneNumber),
		Username:          strings.TrimSpace(req.Username),
	})
	if err != nil {
		appendErr := inboundOperation(err, "inbound: append message", metadata)
		if claimID != "" {
			if failErr := r.Claims.Fail(ctx, claimID, err, time.Time{}); failErr != nil {
				return core.ReceiveInboundResult{}, errors.Join(
					appendErr,
					inboundOperation(failErr, "inbound: release idempotency claim", metadata),
				)
			}
		}
		return core.ReceiveInboundResult{}, appendErr
	}
	if claimID != "" {
		if err := r.Claims.Complete(ctx, claimID); err != nil {
			// The message is stored; the processing claim lapses after TTL.
			r.Logger.Warn("inbound claim completion failed", "claim_id", claimID, "error", err.Error())
		}
	}
	return core.ReceiveInboundResult{Message: message}, nil
}

// IdempotencyKey identifies a provider message. Messages without a provider
// id are never deduplicated.
func IdempotencyKey(req core.ReceiveInboundRequest) string {
	if req.ProviderMessageID == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", strings.TrimSpace(req.TenantID), req.ChatID, req.ProviderMessageID)
}

func (r *Receiver) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

var _ core.InboundReceiver = (*Receiver)(nil)
