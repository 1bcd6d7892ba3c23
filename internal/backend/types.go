// Package backend is the client side of the remote answering service.
package backend

import (
	"context"
	"errors"
)

// AskRequest is the payload of the ask endpoint.
type AskRequest struct {
	Message string `json:"message"`
}

// AskResult is a well-formed ask response. Success false means the service was
// reachable but reported a failure; Response then carries its fallback text.
type AskResult struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// askWire mirrors AskResult with a nullable success flag so a body without the
// field can be told apart from an explicit false.
type askWire struct {
	Success  *bool  `json:"success"`
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Asker performs one ask exchange.
type Asker interface {
	Ask(ctx context.Context, message string) (AskResult, error)
}

// Prober performs one reachability probe. A nil error means healthy.
type Prober interface {
	Probe(ctx context.Context) error
}

// Kind categorizes client errors.
type Kind int

const (
	KindUnknown Kind = iota
	KindConnection
	KindTimeout
	KindStatus
	KindInvalidResponse
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	case KindStatus:
		return "status"
	case KindInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// ClientError is returned for every transport-level failure.
type ClientError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// IsTimeout reports whether err is a client timeout.
func IsTimeout(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Kind == KindTimeout
}
