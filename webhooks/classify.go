package webhooks

import (
	"context"
	"errors"
	"net"
	"os"
)

type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeRetry     Outcome = "retry"
	OutcomeRejected  Outcome = "rejected"
	OutcomeAbandoned Outcome = "abandoned"
	OutcomeFailed    Outcome = "failed"
)

var (
	ErrEncodeEnvelope = errors.New("webhooks: encode envelope")
	ErrBuildRequest   = errors.New("webhooks: build request")
)

// StatusRule maps an inclusive status range to an outcome.
type StatusRule struct {
	Min     int
	Max     int
	Outcome Outcome
}

type ErrorRule struct {
	Name    string
	Match   func(error) bool
	Outcome Outcome
}

func DefaultStatusRules() []StatusRule {
	return []StatusRule{
		{Min: 200, Max: 299, Outcome: OutcomeDelivered},
		{Min: 300, Max: 499, Outcome: OutcomeRejected},
		{Min: 500, Max: 599, Outcome: OutcomeRetry},
	}
}

func DefaultErrorRules() []ErrorRule {
	return []ErrorRule{
		{Name: "encode", Match: isError(ErrEncodeEnvelope), Outcome: OutcomeRejected},
		{Name: "request", Match: isError(ErrBuildRequest), Outcome: OutcomeRejected},
		{Name: "timeout", Match: isTimeout, Outcome: OutcomeRetry},
		{Name: "network", Match: isNetwork, Outcome: OutcomeRetry},
	}
}

// Classifier applies the rule tables in order. Statuses outside every rule
// are rejected; unmatched errors are retried.
type Classifier struct {
	StatusRules []StatusRule
	ErrorRules  []ErrorRule
}

func NewClassifier() Classifier {
	return Classifier{StatusRules: DefaultStatusRules(), ErrorRules: DefaultErrorRules()}
}

func (c Classifier) Classify(statusCode int, err error) Outcome {
	if err != nil {
		for _, rule := range c.ErrorRules {
			if rule.Match != nil && rule.Match(err) {
				return rule.Outcome
			}
		}
		return OutcomeRetry
	}
	for _, rule := range c.StatusRules {
		if statusCode >= rule.Min && statusCode <= rule.Max {
			return rule.Outcome
		}
	}
	return OutcomeRejected
}

func isError(target error) func(error) bool {
	return func(err error) bool {
		return errors.Is(err, target)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isNetwork(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
