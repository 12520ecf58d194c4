package core

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	ErrTenantNotFound         = errors.New("core: tenant not found")
	ErrTenantAuthNotFound     = errors.New("core: tenant auth not found")
	ErrMessageNotFound        = errors.New("core: message not found")
	ErrInvalidDirection       = errors.New("core: invalid message direction")
	ErrInvalidMessageStatus   = errors.New("core: invalid message status")
	ErrInvalidCallbackURL     = errors.New("core: invalid callback url")
	ErrTenantNotAuthorized    = errors.New("core: tenant not authorized")
	ErrAuthCodeExpired        = errors.New("core: auth code expired")
	ErrAuthCodeNotRequested   = errors.New("core: auth code not requested")
	ErrAuthCodeRejected       = errors.New("core: auth code rejected")
	ErrDuplicateInbound       = errors.New("core: duplicate inbound message")
	ErrDispatchRegistryAbsent = errors.New("core: dispatch registry is not configured")
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// ParseDirection accepts the canonical values and the short "in"/"out" forms
// found in older rows.
func ParseDirection(value string) (Direction, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "inbound", "in":
		return DirectionInbound, nil
	case "outbound", "out":
		return DirectionOutbound, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, value)
	}
}

func (d Direction) Validate() error {
	if d != DirectionInbound && d != DirectionOutbound {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, string(d))
	}
	return nil
}

type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

func ParseMessageStatus(value string) (MessageStatus, error) {
	status := MessageStatus(strings.TrimSpace(strings.ToLower(value)))
	if status == "" {
		return MessageStatusSent, nil
	}
	if err := status.Validate(); err != nil {
		return "", err
	}
	return status, nil
}

func (s MessageStatus) Validate() error {
	switch s {
	case MessageStatusSent, MessageStatusDelivered, MessageStatusRead, MessageStatusFailed:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMessageStatus, string(s))
	}
}

// Terminal reports whether the dispatcher is done with a message in this status.
func (s MessageStatus) Terminal() bool {
	return s == MessageStatusDelivered || s == MessageStatusRead || s == MessageStatusFailed
}

type Tenant struct {
	ID          string
	Name        string
	CallbackURL string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (t Tenant) HasCallback() bool {
	return strings.TrimSpace(t.CallbackURL) != ""
}

type TenantAuth struct {
	TenantID        string
	Authorized      bool
	LastError       string
	PhoneNumber     string
	CodeHash        string
	CodeRequestedAt *time.Time
	CodeTimeout     time.Duration
	UpdatedAt       time.Time
}

// CodeExpired reports whether a pending code challenge is past its timeout.
// A zero timeout never expires.
func (a TenantAuth) CodeExpired(now time.Time) bool {
	if a.CodeRequestedAt == nil || a.CodeTimeout <= 0 {
		return false
	}
	return !now.Before(a.CodeRequestedAt.Add(a.CodeTimeout))
}

type Message struct {
	ID                string
	TenantID          string
	Seq               int64
	Direction         Direction
	Status            MessageStatus
	Content           string
	Timestamp         time.Time
	UpdatedAt         time.Time
	ChatID            int64
	ProviderMessageID int64
	PhoneNumber       string
	Username          string
	DeliveryAttempts  int
	DeliveryError     string
	DeliveredAt       *time.Time
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return fmt.Errorf("core: message tenant id is required")
	}
	if err := m.Direction.Validate(); err != nil {
		return err
	}
	if err := m.Status.Validate(); err != nil {
		return err
	}
	return nil
}

type FeedCursor struct {
	TenantID  string
	LastSeq   int64
	UpdatedAt time.Time
}

// ValidateCallbackURL accepts an absolute http or https URL with a host.
func ValidateCallbackURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidCallbackURL)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCallbackURL, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidCallbackURL, parsed.Scheme)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidCallbackURL)
	}
	return parsed.String(), nil
}
