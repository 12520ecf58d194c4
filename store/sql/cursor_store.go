package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-relay/core"
)

type CursorStore struct {
	db *bun.DB
}

func NewCursorStore(db *bun.DB) (*CursorStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &CursorStore{db: db}, nil
}

// Get returns a zero cursor when the tenant has never advanced.
func (s *CursorStore) Get(ctx context.Context, tenantID string) (core.FeedCursor, error) {
	if s == nil || s.db == nil {
		return core.FeedCursor{}, fmt.Errorf("sqlstore: cursor store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	record, err := findCursor(ctx, s.db, tenantID)
	if err != nil {
		return core.FeedCursor{}, err
	}
	if record == nil {
		return core.FeedCursor{TenantID: tenantID}, nil
	}
	return record.toDomain(), nil
}

// Advance upserts the cursor and only ever moves it forward. The conflict
// clause keeps concurrent first advances from failing on either dialect.
func (s *CursorStore) Advance(ctx context.Context, tenantID string, seq int64) (core.FeedCursor, error) {
	if s == nil || s.db == nil {
		return core.FeedCursor{}, fmt.Errorf("sqlstore: cursor store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return core.FeedCursor{}, fmt.Errorf("sqlstore: tenant id is required")
	}

	record := &cursorRecord{TenantID: tenantID, LastSeq: seq, UpdatedAt: time.Now().UTC()}
	if _, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (tenant_id) DO UPDATE").
		Set("last_seq = EXCLUDED.last_seq").
		Set("updated_at = EXCLUDED.updated_at").
		Where("?TableAlias.last_seq < EXCLUDED.last_seq").
		Exec(ctx); err != nil {
		return core.FeedCursor{}, err
	}
	current, err := findCursor(ctx, s.db, tenantID)
	if err != nil {
		return core.FeedCursor{}, err
	}
	if current == nil {
		return core.FeedCursor{}, fmt.Errorf("sqlstore: cursor for tenant %q missing after advance", tenantID)
	}
	return current.toDomain(), nil
}

func findCursor(ctx context.Context, db bun.IDB, tenantID string) (*cursorRecord, error) {
	record := &cursorRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.tenant_id = ?", tenantID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
