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

type TenantStore struct {
	db   *bun.DB
	repo repository.Repository[*tenantRecord]
}

func NewTenantStore(db *bun.DB) (*TenantStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*tenantRecord](db, tenantHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid tenant repository wiring: %w", err)
		}
	}
	return &TenantStore{db: db, repo: repo}, nil
}

func (s *TenantStore) Create(ctx context.Context, in core.CreateTenantInput) (core.Tenant, error) {
	if s == nil || s.repo == nil {
		return core.Tenant{}, fmt.Errorf("sqlstore: tenant store is not configured")
	}
	if strings.TrimSpace(in.Name) == "" {
		return core.Tenant{}, fmt.Errorf("sqlstore: tenant name is required")
	}
	if strings.TrimSpace(in.CallbackURL) != "" {
		normalized, err := core.ValidateCallbackURL(in.CallbackURL)
		if err != nil {
			return core.Tenant{}, err
		}
		in.CallbackURL = normalized
	}
	record := newTenantRecord(uuid.NewString(), in, time.Now().UTC())
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Tenant{}, err
	}
	return created.toDomain(), nil
}

func (s *TenantStore) Get(ctx context.Context, id string) (core.Tenant, error) {
	if s == nil || s.db == nil {
		return core.Tenant{}, fmt.Errorf("sqlstore: tenant store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Tenant{}, fmt.Errorf("%w: empty id", core.ErrTenantNotFound)
	}
	record := &tenantRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Tenant{}, fmt.Errorf("%w: id %q", core.ErrTenantNotFound, id)
		}
		return core.Tenant{}, err
	}
	return record.toDomain(), nil
}

func (s *TenantStore) List(ctx context.Context) ([]core.Tenant, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: tenant store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.OrderBy("created_at DESC"),
		repository.OrderBy("id DESC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Tenant, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *TenantStore) UpdateCallback(ctx context.Context, id string, callbackURL string) (core.Tenant, error) {
	if s == nil || s.repo == nil {
		return core.Tenant{}, fmt.Errorf("sqlstore: tenant store is not configured")
	}
	callbackURL = strings.TrimSpace(callbackURL)
	if callbackURL != "" {
		normalized, err := core.ValidateCallbackURL(callbackURL)
		if err != nil {
			return core.Tenant{}, err
		}
		callbackURL = normalized
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return core.Tenant{}, err
	}
	record := &tenantRecord{
		ID:          current.ID,
		Name:        current.Name,
		CallbackURL: callbackURL,
		CreatedAt:   current.CreatedAt,
		UpdatedAt:   time.Now().UTC(),
	}
	if _, err := s.repo.Update(ctx, record, repository.UpdateByID(current.ID)); err != nil {
		return core.Tenant{}, err
	}
	return record.toDomain(), nil
}
