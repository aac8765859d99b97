package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"
)

// TimingInfo contains timing of a request.
type TimingInfo struct {
	StartTime       time.Time
	ConnectTime     time.Duration
	TimeToFirstByte time.Duration
	TotalTime       time.Duration
}

// Response represents an HTTP response with its body fully read.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Timing     TimingInfo
}

// GetHeader returns the value of the specified header
func (r *Response) GetHeader(key string) string {
	return r.Headers.Get(key)
}

// FailureKind classifies requests that produced no response.
type FailureKind int

const (
	// FailureOther is any failure not classified below.
	FailureOther FailureKind = iota
	// FailureConnect means the connection could not be established.
	FailureConnect
	// FailureReset means the connection was closed by the peer.
	FailureReset
	// FailureTimeout means the request timed out.
	FailureTimeout
	// FailureCanceled means the request context was canceled.
	FailureCanceled
	// FailureInvalid means the request could not be built.
	FailureInvalid
)

var failureNames = map[FailureKind]string{
	FailureOther:    "other",
	FailureConnect:  "connect",
	FailureReset:    "reset",
	FailureTimeout:  "timeout",
	FailureCanceled: "canceled",
	FailureInvalid:  "invalid",
}

func (k FailureKind) String() string {
	if name, ok := failureNames[k]; ok {
		return name
	}
	return "unknown"
}

// RequestError is returned by Client.Do when no response was received.
type RequestError struct {
	Kind FailureKind
	Err  error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s failure: %v", e.Kind, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Kind returns the classification of err, or FailureOther when err is not
// a *RequestError.
func Kind(err error) FailureKind {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Kind
	}
	return FailureOther
}

func classify(err, connectErr error) FailureKind {
	if errors.Is(err, context.Canceled) {
		return FailureCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	if connectErr != nil {
		return FailureConnect
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return FailureConnect
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return FailureConnect
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return FailureReset
	}
	return FailureOther
}
