package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type CreateTenantInput struct {
	Name        string
	CallbackURL string
}

type AppendMessageInput struct {
	TenantID          string
	Direction         Direction
	Status            MessageStatus
	Content           string
	Timestamp         time.Time
	ChatID            int64
	ProviderMessageID int64
	PhoneNumber       string
	Username          string
}

type TenantStore interface {
	Create(ctx context.Context, in CreateTenantInput) (Tenant, error)
	Get(ctx context.Context, id string) (Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	UpdateCallback(ctx context.Context, id string, callbackURL string) (Tenant, error)
}

type TenantAuthStore interface {
	Get(ctx context.Context, tenantID string) (TenantAuth, error)
	Upsert(ctx context.Context, auth TenantAuth) (TenantAuth, error)
	ListAuthorized(ctx context.Context) ([]TenantAuth, error)
}

// MessageStore persists messages. Append assigns the per-tenant Seq.
type MessageStore interface {
	Append(ctx context.Context, in AppendMessageInput) (Message, error)
	Get(ctx context.Context, id string) (Message, error)
	NextAfter(ctx context.Context, tenantID string, direction Direction, afterSeq int64) (Message, bool, error)
	List(ctx context.Context, tenantID string, afterSeq int64, limit int) ([]Message, error)
	MarkDelivered(ctx context.Context, id string, attempts int) error
	MarkFailed(ctx context.Context, id string, reason string, attempts int) error
}

// CursorStore keeps the last attempted Seq per tenant. Advance never moves
// a cursor backwards.
type CursorStore interface {
	Get(ctx context.Context, tenantID string) (FeedCursor, error)
	Advance(ctx context.Context, tenantID string, seq int64) (FeedCursor, error)
}

type InboundFeed interface {
	Cursor(ctx context.Context, tenantID string) (int64, error)
	NextUndelivered(ctx context.Context, tenantID string, cursor int64) (Message, bool, error)
	Advance(ctx context.Context, tenantID string, seq int64) error
}

// FeedNotifier is told when a tenant's feed gained a message.
type FeedNotifier interface {
	NotifyAppended(ctx context.Context, tenantID string, seq int64) error
}

type DispatchStatus struct {
	TenantID    string
	CallbackURL string
	State       string
	StartedAt   time.Time
	Delivered   int64
	Failed      int64
}

type DispatchRegistry interface {
	Start(ctx context.Context, tenantID string, callbackURL string) error
	Stop(ctx context.Context, tenantID string)
	IsRunning(tenantID string) bool
	Wake(tenantID string)
	StopAll(ctx context.Context)
	Snapshot() []DispatchStatus
}

type ReceiveInboundRequest struct {
	TenantID          string
	ChatID            int64
	ProviderMessageID int64
	Content           string
	Timestamp         time.Time
	PhoneNumber       string
	Username          string
}

type ReceiveInboundResult struct {
	Message   Message
	Duplicate bool
}

type InboundReceiver interface {
	Receive(ctx context.Context, req ReceiveInboundRequest) (ReceiveInboundResult, error)
}

type AuthChallenge struct {
	CodeHash string
	Timeout  time.Duration
}

type VerifyCodeRequest struct {
	TenantID    string
	PhoneNumber string
	CodeHash    string
	Code        string
}

// AuthVerdict is the pass/fail outcome reported by the remote provider.
type AuthVerdict struct {
	Authorized bool
	Error      string
}

type Authenticator interface {
	RequestCode(ctx context.Context, tenantID string, phoneNumber string) (AuthChallenge, error)
	VerifyCode(ctx context.Context, req VerifyCodeRequest) (AuthVerdict, error)
}

type ListMessagesRequest struct {
	TenantID string
	AfterSeq int64
	Limit    int
}

type StoreProvider interface {
	TenantStore() TenantStore
	TenantAuthStore() TenantAuthStore
	MessageStore() MessageStore
	CursorStore() CursorStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// RuntimeDependencies is handed to the factories that build the dispatch
// registry and inbound receiver once stores and config are resolved.
type RuntimeDependencies struct {
	Config          Config
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	TenantStore     TenantStore
	TenantAuthStore TenantAuthStore
	MessageStore    MessageStore
	CursorStore     CursorStore
}

type DispatchRegistryFactory func(deps RuntimeDependencies) (DispatchRegistry, error)

type InboundReceiverFactory func(deps RuntimeDependencies) (InboundReceiver, error)

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type RelayService interface {
	CreateTenant(ctx context.Context, req CreateTenantRequest) (Tenant, error)
	GetTenant(ctx context.Context, tenantID string) (Tenant, error)
	ListTenants(ctx context.Context) ([]Tenant, error)
	SetCallback(ctx context.Context, req SetCallbackRequest) (Tenant, error)
	RequestAuthCode(ctx context.Context, req RequestAuthCodeRequest) (TenantAuth, error)
	SubmitAuthCode(ctx context.Context, req SubmitAuthCodeRequest) (TenantAuth, error)
	SetAuthorization(ctx context.Context, req SetAuthorizationRequest) (TenantAuth, error)
	StartDispatch(ctx context.Context, tenantID string) error
	StopDispatch(ctx context.Context, tenantID string) error
	WakeDispatch(tenantID string)
	DispatcherStatus(ctx context.Context, tenantID string) (DispatcherStatus, error)
	DispatcherSnapshot(ctx context.Context) []DispatchStatus
	Reconcile(ctx context.Context) (ReconcileResult, error)
	Bootstrap(ctx context.Context) (ReconcileResult, error)
	Shutdown(ctx context.Context) error
	ReceiveInbound(ctx context.Context, req ReceiveInboundRequest) (ReceiveInboundResult, error)
	ListMessages(ctx context.Context, req ListMessagesRequest) ([]Message, error)
	GetMessage(ctx context.Context, messageID string) (Message, error)
	FeedCursor(ctx context.Context, tenantID string) (FeedCursor, error)
}
