package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RequestAuthCode starts a code challenge with the remote provider and stores
// the challenge material. The current authorized flag is left untouched.
func (s *Service) RequestAuthCode(ctx context.Context, req RequestAuthCodeRequest) (auth TenantAuth, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"tenant_id":    strings.TrimSpace(req.TenantID),
		"phone_number": strings.TrimSpace(req.PhoneNumber),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "request_auth_code", err, fields)
	}()

	if s.authenticator == nil {
		err = s.mapError(fmt.Errorf("core: authenticator is required"))
		return TenantAuth{}, err
	}
	tenant, err := s.requireTenant(ctx, req.TenantID)
	if err != nil {
		err = s.mapError(err)
		return TenantAuth{}, err
	}
	phone := strings.TrimSpace(req.PhoneNumber)
	if phone == "" {
		err = s.mapError(fmt.Errorf("core: phone number is required"))
		return TenantAuth{}, err
	}
	challenge, err := s.authenticator.RequestCode(ctx, tenant.ID, phone)
	if err != nil {
		err = s.mapError(err)
		return TenantAuth{}, err
	}

	unlock := s.tenantLocks.lock(tenant.ID)
	defer unlock()
	current, err := s.authState(ctx, tenant.ID)
	if err != nil {
		err = s.mapError(err)
		return TenantAuth{}, err
	}
	now := s.clock()
	timeout := challenge.Timeout
	if timeout <= 0 {
		timeout = s.config.Auth.CodeTimeout
	}
	current.TenantID = tenant.ID
	current.PhoneNumber = phone
	current.CodeHash = strings.TrimSpace(challenge.CodeHash)
	current.CodeRequestedAt = &now
	current.CodeTimeout = timeout
	current.LastError = ""
	current.UpdatedAt = now

	auth, err = s.tenantAuthStore.Upsert(ctx, current)
	if err != nil {
		err = s.mapError(err)
		return TenantAuth{}, err
	}
	return auth, nil
}

// SubmitAuthCode verifies a code against the pending challenge. A pass
// authorizes the tenant and starts dispatch when a callback is configured; a
// fail records the provider's error string.
func (s *Service) SubmitAuthCode(ctx context.Context, req SubmitAuthCodeRequest) (auth TenantAuth, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"tenant_id": strings.TrimSpace(req.TenantID)}
	defer func() {
		fields["authorized"] = auth.Authorized
		s.observeOperation(ctx, startedAt, "submit_auth_code", err, fields)
	}()

	if s.authenticator == nil {
		err = s.mapError(fmt.Errorf("core: authenticator is required"))
		return TenantAuth{}, err
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		err = s.mapError(fmt.Errorf("core: auth code is required"))
		return TenantAuth{}, err
	}
	unlock := s.tenantLocks.lock(strings.TrimSpace(req.TenantID))
	defer unlock()
	tenant, err := s.requireTenant(ctx, req.TenantID)
	if err != nil {
		err = s.mapError(err)
		return TenantAuth{}, err
	}
	current, err := s.authState(ctx, tenant.ID)
	if err != nil {
		err = s.mapError(err)
		return TenantAuth{}, err
	}
	if current.CodeRequestedAt == nil || strings.TrimSpace(current.CodeHash) == "" {
		err = s.mapError(ErrAuthCodeNotRequested)
		return current, err
	}
	if current.CodeExpired(s.clock()) {
		current.LastError = ErrAuthCodeExpired.Error()
		current.CodeHash = ""
		current.UpdatedAt = s.clock()
		if _, saveErr := s.tenantAuthStore.Upsert(ctx, current); saveErr != nil {
			err = s.mapError(saveErr)
			return current, err
		}
		err = s.mapError(ErrAuthCodeExpired)
		return current, err
	}

	verdict, err := s.authenticator.VerifyCode(ctx, VerifyCodeRequest{
		TenantID:    tenant.ID,
		PhoneNumber: current.PhoneNumber,
		CodeHash:    current.CodeHash,
		Code:        code,
	})
	if err != nil {
		verdict = AuthVerdict{Authorized: false, Error: err.Error()}
	}
	auth, applyErr := s.applyAuthorization(ctx, tenant, current, verdict.Authorized, verdict.Error)
	if applyErr != nil {
		err = s.mapError(applyErr)
		return auth, err
	}
	if err == nil && !verdict.Authorized {
		err = fmt.Errorf("%w: %s", ErrAuthCodeRejected, strings.TrimSpace(verdict.Error))
	}
	if err != nil {
		err = s.mapError(err)
		return auth, err
	}
	return auth, nil
}

// SetAuthorization applies an authorization transition decided elsewhere.
func (s *Service) SetAuthorization(ctx context.Context, req SetAuthorizationRequest) (auth TenantAuth, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"tenant_id":  strings.TrimSpace(req.TenantID),
		"authorized": req.Authorized,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "set_authorization", err, fields)
	}()

	unlock := s.tenantLocks.lock(strings.TrimSpace(req.TenantID))
	defer unlock()
	tenant, err := s.requireTenant(ctx, req.TenantID)
	if err != nil {
		err = s.mapError(err)
		return TenantAuth{}, err
	}
	current, err := s.authState(ctx, tenant.ID)
	if err != nil {
		err = s.mapError(err)
		return TenantAuth{}, err
	}
	auth, err = s.applyAuthorization(ctx, tenant, current, req.Authorized, req.LastError)
	if err != nil {
		err = s.mapError(err)
		return auth, err
	}
	return auth, nil
}

// applyAuthorization stores the transition and aligns the worker with it.
// Callers hold the tenant lock, so tenant carries the current callback URL.
func (s *Service) applyAuthorization(
	ctx context.Context,
	tenant Tenant,
	current TenantAuth,
	authorized bool,
	lastError string,
) (TenantAuth, error) {
	current.TenantID = tenant.ID
	current.Authorized = authorized
	current.LastError = strings.TrimSpace(lastError)
	current.UpdatedAt = s.clock()
	if authorized {
		current.LastError = ""
		current.CodeHash = ""
		current.CodeRequestedAt = nil
	}
	saved, err := s.tenantAuthStore.Upsert(ctx, current)
	if err != nil {
		return current, err
	}

	switch {
	case !authorized:
		s.registry.Stop(ctx, tenant.ID)
	case authorized && tenant.HasCallback():
		if err := s.registry.Start(ctx, tenant.ID, tenant.CallbackURL); err != nil {
			return saved, err
		}
	}
	return saved, nil
}
