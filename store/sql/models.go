package sqlstore

import (
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-relay/core"
)

type tenantRecord struct {
	bun.BaseModel `bun:"table:relay_tenants,alias:rt"`

	ID          string    `bun:"id,pk"`
	Name        string    `bun:"name,notnull"`
	CallbackURL string    `bun:"callback_url,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type tenantAuthRecord struct {
	bun.BaseModel `bun:"table:relay_tenant_auth,alias:rta"`

	TenantID        string     `bun:"tenant_id,pk"`
	Authorized      bool       `bun:"authorized,notnull"`
	LastError       string     `bun:"last_error,notnull"`
	PhoneNumber     string     `bun:"phone_number,notnull"`
	CodeHash        string     `bun:"code_hash,notnull"`
	CodeRequestedAt *time.Time `bun:"code_requested_at,nullzero"`
	CodeTimeoutMS   int64      `bun:"code_timeout_ms,notnull"`
	UpdatedAt       time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type messageRecord struct {
	bun.BaseModel `bun:"table:relay_messages,alias:rm"`

	ID                string     `bun:"id,pk"`
	TenantID          string     `bun:"tenant_id,notnull"`
	Seq               int64      `bun:"seq,notnull"`
	Direction         string     `bun:"direction,notnull"`
	Status            string     `bun:"status,notnull"`
	Content           string     `bun:"content,notnull"`
	Timestamp         time.Time  `bun:"timestamp,notnull"`
	ChatID            int64      `bun:"chat_id,notnull"`
	ProviderMessageID int64      `bun:"provider_message_id,notnull"`
	PhoneNumber       string     `bun:"phone_number,notnull"`
	Username          string     `bun:"username,notnull"`
	DeliveryAttempts  int        `bun:"delivery_attempts,notnull"`
	DeliveryError     string     `bun:"delivery_error,notnull"`
	DeliveredAt       *time.Time `bun:"delivered_at,nullzero"`
	UpdatedAt         time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type cursorRecord struct {
	bun.BaseModel `bun:"table:relay_delivery_cursors,alias:rdc"`

	TenantID  string    `bun:"tenant_id,pk"`
	LastSeq   int64     `bun:"last_seq,notnull"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newTenantRecord(id string, in core.CreateTenantInput, now time.Time) *tenantRecord {
	return &tenantRecord{
		ID:          id,
		Name:        strings.TrimSpace(in.Name),
		CallbackURL: strings.TrimSpace(in.CallbackURL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *tenantRecord) toDomain() core.Tenant {
	if r == nil {
		return core.Tenant{}
	}
	return core.Tenant{
		ID:          r.ID,
		Name:        r.Name,
		CallbackURL: r.CallbackURL,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func newTenantAuthRecord(auth core.TenantAuth, now time.Time) *tenantAuthRecord {
	return &tenantAuthRecord{
		TenantID:        strings.TrimSpace(auth.TenantID),
		Authorized:      auth.Authorized,
		LastError:       auth.LastError,
		PhoneNumber:     strings.TrimSpace(auth.PhoneNumber),
		CodeHash:        auth.CodeHash,
		CodeRequestedAt: cloneTime(auth.CodeRequestedAt),
		CodeTimeoutMS:   auth.CodeTimeout.Milliseconds(),
		UpdatedAt:       now,
	}
}

func (r *tenantAuthRecord) toDomain() core.TenantAuth {
	if r == nil {
		return core.TenantAuth{}
	}
	return core.TenantAuth{
		TenantID:        r.TenantID,
		Authorized:      r.Authorized,
		LastError:       r.LastError,
		PhoneNumber:     r.PhoneNumber,
		CodeHash:        r.CodeHash,
		CodeRequestedAt: cloneTime(r.CodeRequestedAt),
		CodeTimeout:     time.Duration(r.CodeTimeoutMS) * time.Millisecond,
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

// toDomain parses the enums so legacy rows with short direction values still
// load, and rejects anything outside the closed sets.
func (r *messageRecord) toDomain() (core.Message, error) {
	if r == nil {
		return core.Message{}, nil
	}
	direction, err := core.ParseDirection(r.Direction)
	if err != nil {
		return core.Message{}, err
	}
	status, err := core.ParseMessageStatus(r.Status)
	if err != nil {
		return core.Message{}, err
	}
	return core.Message{
		ID:                r.ID,
		TenantID:          r.TenantID,
		Seq:               r.Seq,
		Direction:         direction,
		Status:            status,
		Content:           r.Content,
		Timestamp:         r.Timestamp.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
		ChatID:            r.ChatID,
		ProviderMessageID: r.ProviderMessageID,
		PhoneNumber:       r.PhoneNumber,
		Username:          r.Username,
		DeliveryAttempts:  r.DeliveryAttempts,
		DeliveryError:     r.DeliveryError,
		DeliveredAt:       cloneTime(r.DeliveredAt),
	}, nil
}

func (r *cursorRecord) toDomain() core.FeedCursor {
	if r == nil {
		return core.FeedCursor{}
	}
	return core.FeedCursor{
		TenantID:  r.TenantID,
		LastSeq:   r.LastSeq,
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func cloneTime(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
