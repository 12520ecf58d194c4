package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-relay/core"
)

// ErrRegistryClosed is returned by Start once StopAll has run.
var ErrRegistryClosed = errors.New("dispatch: registry is shut down")

type Registry struct {
	feed      core.InboundFeed
	statuses  StatusWriter
	deliverer Deliverer
	config    core.DispatchConfig
	log       *eventLogger

	locks *keyedMutex

	mu      sync.Mutex
	closed  bool
	workers map[string]*Worker
	live    map[string]int
	peak    map[string]int
}

type Option func(*registryOptions)

type registryOptions struct {
	logger    core.Logger
	metrics   core.MetricsRecorder
	deliverer Deliverer
	config    *core.DispatchConfig
}

func WithLogger(logger core.Logger) Option {
	return func(o *registryOptions) {
		o.logger = logger
	}
}

func WithMetricsRecorder(metrics core.MetricsRecorder) Option {
	return func(o *registryOptions) {
		o.metrics = metrics
	}
}

func WithDeliverer(deliverer Deliverer) Option {
	return func(o *registryOptions) {
		o.deliverer = deliverer
	}
}

func WithConfig(cfg core.DispatchConfig) Option {
	return func(o *registryOptions) {
		o.config = &cfg
	}
}

func NewRegistry(feed core.InboundFeed, statuses StatusWriter, opts ...Option) (*Registry, error) {
	if feed == nil {
		return nil, fmt.Errorf("dispatch: inbound feed is required")
	}
	if statuses == nil {
		return nil, fmt.Errorf("dispatch: status writer is required")
	}
	options := registryOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	cfg := core.DefaultConfig().Dispatch
	if options.config != nil {
		cfg = *options.config
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if options.deliverer == nil {
		return nil, fmt.Errorf("dispatch: deliverer is required")
	}
	return &Registry{
		feed:      feed,
		statuses:  statuses,
		deliverer: options.deliverer,
		config:    cfg,
		log:       newEventLogger(options.logger, options.metrics),
		locks:     newKeyedMutex(),
		workers:   map[string]*Worker{},
		live:      map[string]int{},
		peak:      map[string]int{},
	}, nil
}

// Start makes callbackURL the tenant's only active worker. A malformed URL
// stops any existing worker and is returned as an error. Starting with the
// URL already in use is a no-op.
func (r *Registry) Start(ctx context.Context, tenantID string, callbackURL string) error {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return fmt.Errorf("dispatch: tenant id is required")
	}
	unlock := r.locks.Lock(tenantID)
	defer unlock()

	normalized, err := core.ValidateCallbackURL(callbackURL)
	if err != nil {
		r.stopLocked(ctx, tenantID)
		return err
	}

	if existing := r.worker(tenantID); existing != nil {
		if existing.CallbackURL() == normalized && existing.State() == StateRunning {
			return nil
		}
		r.stopLocked(ctx, tenantID)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	worker := r.newWorker(tenantID, normalized)
	r.workers[tenantID] = worker
	r.mu.Unlock()
	worker.start()

	r.log.info(ctx, "dispatch worker started", map[string]any{
		"tenant_id":    tenantID,
		"callback_url": normalized,
	})
	return nil
}

// Stop is idempotent and returns once the worker loop has exited.
func (r *Registry) Stop(ctx context.Context, tenantID string) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return
	}
	unlock := r.locks.Lock(tenantID)
	defer unlock()
	r.stopLocked(ctx, tenantID)
}

func (r *Registry) stopLocked(ctx context.Context, tenantID string) {
	r.mu.Lock()
	worker, ok := r.workers[tenantID]
	delete(r.workers, tenantID)
	r.mu.Unlock()
	if !ok {
		return
	}
	worker.stop(ctx)
	r.log.info(ctx, "dispatch worker stopped", map[string]any{
		"tenant_id": tenantID,
		"delivered": worker.delivered.Load(),
		"failed":    worker.failed.Load(),
	})
}

func (r *Registry) IsRunning(tenantID string) bool {
	worker := r.worker(strings.TrimSpace(tenantID))
	return worker != nil && worker.State() == StateRunning
}

func (r *Registry) Wake(tenantID string) {
	if worker := r.worker(strings.TrimSpace(tenantID)); worker != nil {
		worker.notify()
	}
}

// StopAll closes the registry to new workers and stops every running one in
// parallel. Start returns ErrRegistryClosed afterwards.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.Lock()
	r.closed = true
	tenants := make([]string, 0, len(r.workers))
	for tenantID := range r.workers {
		tenants = append(tenants, tenantID)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, tenantID := range tenants {
		wg.Add(1)
		go func(tenantID string) {
			defer wg.Done()
			r.Stop(ctx, tenantID)
		}(tenantID)
	}
	wg.Wait()
}

func (r *Registry) Snapshot() []core.DispatchStatus {
	r.mu.Lock()
	workers := make([]*Worker, 0, len(r.workers))
	for _, worker := range r.workers {
		workers = append(workers, worker)
	}
	r.mu.Unlock()

	out := make([]core.DispatchStatus, 0, len(workers))
	for _, worker := range workers {
		out = append(out, worker.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out
}

func (r *Registry) worker(tenantID string) *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.workers[tenantID]
}

func (r *Registry) newWorker(tenantID string, callbackURL string) *Worker {
	loopCtx, loopCancel := context.WithCancel(context.Background())
	hardCtx, hardCancel := context.WithCancel(context.Background())
	return &Worker{
		tenantID:    tenantID,
		callbackURL: callbackURL,
		feed:        r.feed,
		statuses:    r.statuses,
		deliverer:   r.deliverer,
		poll:        r.config.PollInterval,
		grace:       r.config.ShutdownGrace,
		log:         r.log,
		loopCtx:     loopCtx,
		loopCancel:  loopCancel,
		hardCtx:     hardCtx,
		hardCancel:  hardCancel,
		wake:        make(chan struct{}, 1),
		running:     make(chan struct{}),
		done:        make(chan struct{}),
		state:       StateCreated,
		onEnter:     func() { r.track(tenantID, 1) },
		onExit:      func() { r.track(tenantID, -1) },
	}
}

// track counts live worker goroutines per tenant and remembers the peak.
func (r *Registry) track(tenantID string, delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[tenantID] += delta
	if r.live[tenantID] > r.peak[tenantID] {
		r.peak[tenantID] = r.live[tenantID]
	}
	if r.live[tenantID] <= 0 {
		delete(r.live, tenantID)
	}
}

func (r *Registry) liveWorkers(tenantID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live[tenantID]
}

func (r *Registry) peakWorkers(tenantID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peak[tenantID]
}

var _ core.DispatchRegistry = (*Registry)(nil)
