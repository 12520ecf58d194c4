package webhooks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-relay/core"
)

type Result struct {
	Outcome     Outcome
	LastOutcome Outcome
	Attempts    int
	StatusCode  int
	// Err is a go-errors envelope for failed deliveries.
	Err    error
	Cause  error
	Delays []time.Duration
}

type Policy struct {
	Transport      Transport
	Classifier     Classifier
	Backoff        Backoff
	Signer         Signer
	Encode         EncodeFunc
	Sleep          SleepFunc
	MaxAttempts    int
	AttemptTimeout time.Duration
	UserAgent      string
}

type PolicyOption func(*Policy)

func WithTransport(transport Transport) PolicyOption {
	return func(p *Policy) {
		if transport != nil {
			p.Transport = transport
		}
	}
}

func WithClassifier(classifier Classifier) PolicyOption {
	return func(p *Policy) {
		p.Classifier = classifier
	}
}

func WithJitter(jitter func(limit int64) int64) PolicyOption {
	return func(p *Policy) {
		p.Backoff.Jitter = jitter
	}
}

func WithSleep(sleep SleepFunc) PolicyOption {
	return func(p *Policy) {
		if sleep != nil {
			p.Sleep = sleep
		}
	}
}

func WithEncoder(encode EncodeFunc) PolicyOption {
	return func(p *Policy) {
		if encode != nil {
			p.Encode = encode
		}
	}
}

func WithSigner(signer Signer) PolicyOption {
	return func(p *Policy) {
		p.Signer = signer
	}
}

func NewPolicy(cfg core.DispatchConfig, opts ...PolicyOption) *Policy {
	defaults := core.DefaultConfig().Dispatch
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaults.AttemptTimeout
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	p := &Policy{
		Transport:      NewHTTPTransport(nil),
		Classifier:     NewClassifier(),
		Backoff:        Backoff{Initial: cfg.InitialBackoff, Max: cfg.MaxBackoff},
		Signer:         NewHMACSigner(cfg.SigningSecret),
		Encode:         EncodeJSON,
		Sleep:          SleepContext,
		MaxAttempts:    cfg.MaxAttempts,
		AttemptTimeout: cfg.AttemptTimeout,
		UserAgent:      cfg.UserAgent,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Deliver runs the attempt loop for one message. loop ends backoff sleeps
// and prevents new attempts; hard bounds in-flight calls. A response that
// arrives after loop is cancelled is still classified normally.
func (p *Policy) Deliver(loop context.Context, hard context.Context, callbackURL string, message core.Message) Result {
	result := Result{}
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if loop.Err() != nil {
			result.Outcome = OutcomeAbandoned
			return result
		}
		if attempt > 1 {
			delay := p.Backoff.Delay(attempt - 1)
			result.Delays = append(result.Delays, delay)
			if err := p.Sleep(loop, delay); err != nil {
				result.Outcome = OutcomeAbandoned
				return result
			}
		}

		result.Attempts = attempt
		statusCode, err := p.attempt(hard, callbackURL, message, attempt)
		if err != nil && hard.Err() != nil {
			result.Outcome = OutcomeAbandoned
			result.Cause = err
			return result
		}
		outcome := p.Classifier.Classify(statusCode, err)
		result.LastOutcome = outcome
		result.StatusCode = statusCode
		result.Cause = err

		switch outcome {
		case OutcomeDelivered:
			result.Outcome = OutcomeDelivered
			return result
		case OutcomeAbandoned:
			result.Outcome = OutcomeAbandoned
			return result
		case OutcomeRejected:
			result.Outcome = OutcomeFailed
			result.Err = deliveryError(err, OutcomeRejected, result, callbackURL)
			return result
		}
	}
	result.Outcome = OutcomeFailed
	result.Err = deliveryError(result.Cause, OutcomeRetry, result, callbackURL)
	return result
}

func (p *Policy) attempt(ctx context.Context, callbackURL string, message core.Message, attempt int) (int, error) {
	body, err := p.Encode(NewEnvelope(message, attempt))
	if err != nil {
		if !errors.Is(err, ErrEncodeEnvelope) {
			err = fmt.Errorf("%w: %v", ErrEncodeEnvelope, err)
		}
		return 0, err
	}
	headers := map[string]string{
		"User-Agent":    p.UserAgent,
		HeaderTenantID:  message.TenantID,
		HeaderMessageID: message.ID,
		HeaderAttempt:   strconv.Itoa(attempt),
	}
	if p.Signer != nil {
		headers[HeaderSignature] = p.Signer.Sign(body)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return p.Transport.Post(attemptCtx, Request{URL: callbackURL, Body: body, Headers: headers})
}
