package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-relay/core"
)

const appendSeqRetries = 5

type MessageStore struct {
	db   *bun.DB
	repo repository.Repository[*messageRecord]
}

func NewMessageStore(db *bun.DB) (*MessageStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*messageRecord](db, messageHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid message repository wiring: %w", err)
		}
	}
	return &MessageStore{db: db, repo: repo}, nil
}

// Append allocates the next per-tenant Seq inside a transaction. Concurrent
// appenders that lose the (tenant_id, seq) race retry with a fresh Seq.
func (s *MessageStore) Append(ctx context.Context, in core.AppendMessageInput) (core.Message, error) {
	if s == nil || s.db == nil {
		return core.Message{}, fmt.Errorf("sqlstore: message store is not configured")
	}
	status := in.Status
	if status == "" {
		status = core.MessageStatusSent
	}
	now := time.Now().UTC()
	timestamp := in.Timestamp
	if timestamp.IsZero() {
		timestamp = now
	}
	candidate := core.Message{
		TenantID:  strings.TrimSpace(in.TenantID),
		Direction: in.Direction,
		Status:    status,
	}
	if err := candidate.Validate(); err != nil {
		return core.Message{}, err
	}

	record := &messageRecord{
		TenantID:          candidate.TenantID,
		Direction:         string(in.Direction),
		Status:            string(status),
		Content:           in.Content,
		Timestamp:         timestamp.UTC(),
		ChatID:            in.ChatID,
		ProviderMessageID: in.ProviderMessageID,
		PhoneNumber:       strings.TrimSpace(in.PhoneNumber),
		Username:          strings.TrimSpace(in.Username),
		UpdatedAt:         now,
	}

	var lastErr error
	for attempt := 0; attempt < appendSeqRetries; attempt++ {
		record.ID = uuid.NewString()
		lastErr = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			var maxSeq int64
			if err := tx.NewSelect().
				Model((*messageRecord)(nil)).
				ColumnExpr("COALESCE(MAX(seq), 0)").
				Where("tenant_id = ?", record.TenantID).
				Scan(ctx, &maxSeq); err != nil {
				return err
			}
			record.Seq = maxSeq + 1
			_, err := tx.NewInsert().Model(record).Exec(ctx)
			return err
		})
		if lastErr == nil {
			return record.toDomain()
		}
		if !isUniqueViolation(lastErr) {
			return core.Message{}, lastErr
		}
	}
	return core.Message{}, fmt.Errorf("sqlstore: allocate message seq: %w", lastErr)
}

func (s *MessageStore) Get(ctx context.Context, id string) (core.Message, error) {
	if s == nil || s.db == nil {
		return core.Message{}, fmt.Errorf("sqlstore: message store is not configured")
	}
	id = strings.TrimSpace(id)
	record := &messageRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Message{}, fmt.Errorf("%w: id %q", core.ErrMessageNotFound, id)
		}
		return core.Message{}, err
	}
	return record.toDomain()
}

func (s *MessageStore) NextAfter(ctx context.Context, tenantID string, direction core.Direction, afterSeq int64) (core.Message, bool, error) {
	if s == nil || s.db == nil {
		return core.Message{}, false, fmt.Errorf("sqlstore: message store is not configured")
	}
	values := directionValues(direction)
	record := &messageRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.tenant_id = ?", strings.TrimSpace(tenantID)).
		Where("?TableAlias.direction IN (?)", bun.In(values)).
		Where("?TableAlias.seq > ?", afterSeq).
		OrderExpr("?TableAlias.seq ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Message{}, false, nil
		}
		return core.Message{}, false, err
	}
	message, err := record.toDomain()
	if err != nil {
		return core.Message{}, false, err
	}
	return message, true, nil
}

func (s *MessageStore) List(ctx context.Context, tenantID string, afterSeq int64, limit int) ([]core.Message, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: message store is not configured")
	}
	selectors := []repository.SelectCriteria{
		repository.SelectBy("tenant_id", "=", strings.TrimSpace(tenantID)),
		repository.SelectBy("seq", ">", afterSeq),
		repository.OrderBy("seq ASC"),
	}
	if limit > 0 {
		selectors = append(selectors, repository.SelectPaginate(limit, 0))
	}
	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}
	out := make([]core.Message, 0, len(records))
	for _, record := range records {
		message, err := record.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, message)
	}
	return out, nil
}

func (s *MessageStore) MarkDelivered(ctx context.Context, id string, attempts int) error {
	now := time.Now().UTC()
	return s.updateStatus(ctx, id, &messageRecord{
		Status:           string(core.MessageStatusDelivered),
		DeliveryAttempts: attempts,
		DeliveredAt:      &now,
		UpdatedAt:        now,
	})
}

func (s *MessageStore) MarkFailed(ctx context.Context, id string, reason string, attempts int) error {
	return s.updateStatus(ctx, id, &messageRecord{
		Status:           string(core.MessageStatusFailed),
		DeliveryAttempts: attempts,
		DeliveryError:    reason,
		UpdatedAt:        time.Now().UTC(),
	})
}

func (s *MessageStore) updateStatus(ctx context.Context, id string, patch *messageRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: message store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: message id is required")
	}
	result, err := s.db.NewUpdate().
		Model(patch).
		Column("status", "delivery_attempts", "delivery_error", "delivered_at", "updated_at").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, affErr := result.RowsAffected(); affErr == nil && affected == 0 {
		return fmt.Errorf("%w: id %q", core.ErrMessageNotFound, id)
	}
	return nil
}

// directionValues includes the short legacy spellings so older rows are
// still picked up by the feed.
func directionValues(direction core.Direction) []string {
	switch direction {
	case core.DirectionInbound:
		return []string{string(core.DirectionInbound), "in"}
	case core.DirectionOutbound:
		return []string{string(core.DirectionOutbound), "out"}
	default:
		return []string{string(direction)}
	}
}
