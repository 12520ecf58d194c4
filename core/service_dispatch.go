package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// StartDispatch launches the tenant's worker from the stored directory state.
func (s *Service) StartDispatch(ctx context.Context, tenantID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"tenant_id": strings.TrimSpace(tenantID)}
	defer func() {
		s.observeOperation(ctx, startedAt, "start_dispatch", err, fields)
	}()

	unlock := s.tenantLocks.lock(strings.TrimSpace(tenantID))
	defer unlock()
	tenant, err := s.requireTenant(ctx, tenantID)
	if err != nil {
		err = s.mapError(err)
		return err
	}
	auth, err := s.authState(ctx, tenant.ID)
	if err != nil {
		err = s.mapError(err)
		return err
	}
	if !auth.Authorized {
		err = s.mapError(ErrTenantNotAuthorized)
		return err
	}
	if !tenant.HasCallback() {
		err = s.mapError(fmt.Errorf("%w: tenant has no callback url", ErrInvalidCallbackURL))
		return err
	}
	if err = s.registry.Start(ctx, tenant.ID, tenant.CallbackURL); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

// StopDispatch is idempotent; stopping a tenant with no worker is a no-op.
func (s *Service) StopDispatch(ctx context.Context, tenantID string) (err error) {
	startedAt := time.Now().UTC()
	tenantID = strings.TrimSpace(tenantID)
	defer func() {
		s.observeOperation(ctx, startedAt, "stop_dispatch", err, map[string]any{"tenant_id": tenantID})
	}()
	if tenantID == "" {
		err = s.mapError(fmt.Errorf("core: tenant id is required"))
		return err
	}
	unlock := s.tenantLocks.lock(tenantID)
	defer unlock()
	s.registry.Stop(ctx, tenantID)
	return nil
}

// WakeDispatch nudges the tenant's worker to re-check its feed. Used when
// messages are appended by another process sharing the message store.
func (s *Service) WakeDispatch(tenantID string) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return
	}
	s.registry.Wake(tenantID)
}

func (s *Service) DispatcherStatus(_ context.Context, tenantID string) (DispatcherStatus, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return DispatcherStatus{}, s.mapError(fmt.Errorf("core: tenant id is required"))
	}
	status := DispatcherStatus{TenantID: tenantID, Running: s.registry.IsRunning(tenantID)}
	for _, worker := range s.registry.Snapshot() {
		if worker.TenantID == tenantID {
			copied := worker
			status.Worker = &copied
			break
		}
	}
	return status, nil
}

func (s *Service) DispatcherSnapshot(context.Context) []DispatchStatus {
	snapshot := s.registry.Snapshot()
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].TenantID < snapshot[j].TenantID
	})
	return snapshot
}

// Reconcile aligns running workers with the directory: authorized tenants
// with a callback get a worker, everyone else is stopped. Each tenant is
// decided from a fresh read under its lock. A failed start is recorded and
// does not abort the pass.
func (s *Service) Reconcile(ctx context.Context) (result ReconcileResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["started"] = len(result.Started)
		fields["stopped"] = len(result.Stopped)
		fields["failed"] = len(result.Failed)
		s.observeOperation(ctx, startedAt, "reconcile", err, fields)
	}()

	result.Failed = map[string]string{}
	tenants, err := s.tenantStore.List(ctx)
	if err != nil {
		err = s.mapError(err)
		return result, err
	}

	known := make(map[string]bool, len(tenants))
	for _, listed := range tenants {
		known[listed.ID] = true
		outcome, stepErr := s.reconcileTenant(ctx, listed.ID)
		if stepErr != nil {
			result.Failed[listed.ID] = stepErr.Error()
			s.logWarn(ctx, "reconcile step failed", map[string]any{
				"tenant_id": listed.ID,
				"error":     stepErr.Error(),
			})
			continue
		}
		switch outcome {
		case reconcileStarted:
			result.Started = append(result.Started, listed.ID)
		case reconcileStopped:
			result.Stopped = append(result.Stopped, listed.ID)
		}
	}
	for _, worker := range s.registry.Snapshot() {
		if known[worker.TenantID] {
			continue
		}
		if s.stopOrphan(ctx, worker.TenantID) {
			result.Stopped = append(result.Stopped, worker.TenantID)
		}
	}
	return result, nil
}

type reconcileOutcome int

const (
	reconcileUnchanged reconcileOutcome = iota
	reconcileStarted
	reconcileStopped
)

func (s *Service) reconcileTenant(ctx context.Context, tenantID string) (reconcileOutcome, error) {
	unlock := s.tenantLocks.lock(tenantID)
	defer unlock()

	tenant, err := s.requireTenant(ctx, tenantID)
	if err != nil {
		return reconcileUnchanged, err
	}
	auth, err := s.authState(ctx, tenantID)
	if err != nil {
		return reconcileUnchanged, err
	}
	if auth.Authorized && tenant.HasCallback() {
		wasRunning := s.registry.IsRunning(tenantID)
		if err := s.registry.Start(ctx, tenantID, tenant.CallbackURL); err != nil {
			return reconcileUnchanged, err
		}
		if wasRunning {
			return reconcileUnchanged, nil
		}
		return reconcileStarted, nil
	}
	if !s.registry.IsRunning(tenantID) {
		return reconcileUnchanged, nil
	}
	s.registry.Stop(ctx, tenantID)
	return reconcileStopped, nil
}

// stopOrphan stops a worker whose tenant is missing from the directory
// listing, unless the tenant appeared since.
func (s *Service) stopOrphan(ctx context.Context, tenantID string) bool {
	unlock := s.tenantLocks.lock(tenantID)
	defer unlock()
	if _, err := s.tenantStore.Get(ctx, tenantID); !goerrors.Is(err, ErrTenantNotFound) {
		return false
	}
	if !s.registry.IsRunning(tenantID) {
		return false
	}
	s.registry.Stop(ctx, tenantID)
	return true
}

// Bootstrap rebuilds the in-memory worker set after a process start.
func (s *Service) Bootstrap(ctx context.Context) (ReconcileResult, error) {
	return s.Reconcile(ctx)
}

// Shutdown stops every worker, each bounded by the shutdown grace period.
func (s *Service) Shutdown(ctx context.Context) error {
	startedAt := time.Now().UTC()
	running := len(s.registry.Snapshot())
	s.registry.StopAll(ctx)
	s.observeOperation(ctx, startedAt, "shutdown", nil, map[string]any{"workers": running})
	return nil
}
