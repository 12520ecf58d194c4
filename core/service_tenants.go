package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

func (s *Service) CreateTenant(ctx context.Context, req CreateTenantRequest) (tenant Tenant, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"name": strings.TrimSpace(req.Name)}
	defer func() {
		fields["tenant_id"] = tenant.ID
		s.observeOperation(ctx, startedAt, "create_tenant", err, fields)
	}()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		err = s.mapError(fmt.Errorf("core: tenant name is required"))
		return Tenant{}, err
	}
	callbackURL := strings.TrimSpace(req.CallbackURL)
	if callbackURL != "" {
		if callbackURL, err = ValidateCallbackURL(callbackURL); err != nil {
			err = s.mapError(err)
			return Tenant{}, err
		}
	}
	tenant, err = s.tenantStore.Create(ctx, CreateTenantInput{Name: name, CallbackURL: callbackURL})
	if err != nil {
		err = s.mapError(err)
		return Tenant{}, err
	}
	return tenant, nil
}

func (s *Service) GetTenant(ctx context.Context, tenantID string) (Tenant, error) {
	tenant, err := s.requireTenant(ctx, tenantID)
	if err != nil {
		return Tenant{}, s.mapError(err)
	}
	return tenant, nil
}

// ListTenants returns tenants newest first.
func (s *Service) ListTenants(ctx context.Context) ([]Tenant, error) {
	tenants, err := s.tenantStore.List(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	return tenants, nil
}

// SetCallback stops the tenant's dispatcher, stores the new URL and restarts
// dispatch only when the URL is set and the tenant is authorized.
func (s *Service) SetCallback(ctx context.Context, req SetCallbackRequest) (tenant Tenant, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"tenant_id": strings.TrimSpace(req.TenantID)}
	defer func() {
		s.observeOperation(ctx, startedAt, "set_callback", err, fields)
	}()

	tenantID := strings.TrimSpace(req.TenantID)
	callbackURL := strings.TrimSpace(req.CallbackURL)
	if callbackURL != "" {
		if callbackURL, err = ValidateCallbackURL(callbackURL); err != nil {
			err = s.mapError(err)
			return Tenant{}, err
		}
	}

	unlock := s.tenantLocks.lock(tenantID)
	defer unlock()
	if _, err = s.requireTenant(ctx, tenantID); err != nil {
		err = s.mapError(err)
		return Tenant{}, err
	}

	s.registry.Stop(ctx, tenantID)
	tenant, err = s.tenantStore.UpdateCallback(ctx, tenantID, callbackURL)
	if err != nil {
		err = s.mapError(err)
		return Tenant{}, err
	}
	fields["callback_set"] = callbackURL != ""
	if callbackURL == "" {
		return tenant, nil
	}

	auth, err := s.authState(ctx, tenantID)
	if err != nil {
		err = s.mapError(err)
		return Tenant{}, err
	}
	fields["authorized"] = auth.Authorized
	if !auth.Authorized {
		return tenant, nil
	}
	if err = s.registry.Start(ctx, tenantID, callbackURL); err != nil {
		err = s.mapError(err)
		return tenant, err
	}
	return tenant, nil
}
