// Package resilience wraps outbound calls with a per-dependency circuit
// breaker and bounded exponential-backoff retry. The two layers are
// independent: retry is pure backoff policy, the breaker is a state machine,
// and callers compose them by running retries inside a single breaker Execute.
package resilience

import (
	"context"
	"errors"
	"net"
)

// Reason classifies why an outbound call failed.
type Reason string

const (
	ReasonTimeout Reason = "timeout"
	ReasonNetwork Reason = "network"
	ReasonServer  Reason = "server_error"
	ReasonClient  Reason = "client_error"
	ReasonOther   Reason = "other"
)

// statusCoder is implemented by errors carrying an upstream HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// Classify maps an error onto the retry taxonomy.
func Classify(err error) Reason {
	if err == nil {
		return ReasonOther
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ReasonTimeout
		}
		return ReasonNetwork
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		switch status := sc.HTTPStatus(); {
		case status >= 500:
			return ReasonServer
		case status >= 400:
			return ReasonClient
		}
	}
	return ReasonOther
}

// Retryable reports whether a failure is worth retrying: timeouts, network
// errors and upstream 5xx. Client errors and validation failures are not.
func Retryable(err error) bool {
	switch Classify(err) {
	case ReasonTimeout, ReasonNetwork, ReasonServer:
		return true
	}
	return false
}
