package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-relay/core"
)

type TenantAuthStore struct {
	db   *bun.DB
	repo repository.Repository[*tenantAuthRecord]
}

func NewTenantAuthStore(db *bun.DB) (*TenantAuthStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*tenantAuthRecord](db, tenantAuthHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid tenant auth repository wiring: %w", err)
		}
	}
	return &TenantAuthStore{db: db, repo: repo}, nil
}

func (s *TenantAuthStore) Get(ctx context.Context, tenantID string) (core.TenantAuth, error) {
	if s == nil || s.db == nil {
		return core.TenantAuth{}, fmt.Errorf("sqlstore: tenant auth store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	record := &tenantAuthRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.tenant_id = ?", tenantID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.TenantAuth{}, fmt.Errorf("%w: tenant %q", core.ErrTenantAuthNotFound, tenantID)
		}
		return core.TenantAuth{}, err
	}
	return record.toDomain(), nil
}

func (s *TenantAuthStore) Upsert(ctx context.Context, auth core.TenantAuth) (core.TenantAuth, error) {
	if s == nil || s.db == nil {
		return core.TenantAuth{}, fmt.Errorf("sqlstore: tenant auth store is not configured")
	}
	record := newTenantAuthRecord(auth, time.Now().UTC())
	if record.TenantID == "" {
		return core.TenantAuth{}, fmt.Errorf("sqlstore: tenant id is required")
	}

	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (tenant_id) DO UPDATE").
		Set("authorized = EXCLUDED.authorized").
		Set("last_error = EXCLUDED.last_error").
		Set("phone_number = EXCLUDED.phone_number").
		Set("code_hash = EXCLUDED.code_hash").
		Set("code_requested_at = EXCLUDED.code_requested_at").
		Set("code_timeout_ms = EXCLUDED.code_timeout_ms").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return core.TenantAuth{}, err
	}
	return record.toDomain(), nil
}

func (s *TenantAuthStore) ListAuthorized(ctx context.Context) ([]core.TenantAuth, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: tenant auth store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("authorized", "=", true),
		repository.OrderBy("tenant_id ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.TenantAuth, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
