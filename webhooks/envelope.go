package webhooks

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-relay/core"
)

var deliveryNamespace = uuid.MustParse("6f1c1d1e-6a43-4a4e-9a3c-2d3c8f0e5b71")

type EnvelopeSender struct {
	PhoneNumber string `json:"phone_number,omitempty"`
	Username    string `json:"username,omitempty"`
}

// Envelope is the JSON body POSTed to a callback URL.
type Envelope struct {
	DeliveryID        string         `json:"delivery_id"`
	MessageID         string         `json:"message_id"`
	TenantID          string         `json:"tenant_id"`
	Direction         string         `json:"direction"`
	ChatID            int64          `json:"chat_id"`
	ProviderMessageID int64          `json:"provider_message_id"`
	Sender            EnvelopeSender `json:"sender"`
	Content           string         `json:"content"`
	Timestamp         time.Time      `json:"timestamp"`
	Attempt           int            `json:"attempt"`
}

// DeliveryID is stable across attempts so receivers can dedupe retries.
func DeliveryID(message core.Message) string {
	return uuid.NewSHA1(deliveryNamespace, []byte(message.TenantID+":"+strconv.FormatInt(message.Seq, 10))).String()
}

func NewEnvelope(message core.Message, attempt int) Envelope {
	return Envelope{
		DeliveryID:        DeliveryID(message),
		MessageID:         message.ID,
		TenantID:          message.TenantID,
		Direction:         string(message.Direction),
		ChatID:            message.ChatID,
		ProviderMessageID: message.ProviderMessageID,
		Sender: EnvelopeSender{
			PhoneNumber: message.PhoneNumber,
			Username:    message.Username,
		},
		Content:   message.Content,
		Timestamp: message.Timestamp.UTC(),
		Attempt:   attempt,
	}
}

// EncodeFunc is swappable so tests can force an encode failure.
type EncodeFunc func(Envelope) ([]byte, error)

func EncodeJSON(envelope Envelope) ([]byte, error) {
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeEnvelope, err)
	}
	return body, nil
}
