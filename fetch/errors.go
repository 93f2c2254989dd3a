package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// Error categories returned by Classify. They are used as metric labels.
const (
	ErrorTimeout     = "timeout"
	ErrorConnection  = "connection"
	ErrorForbidden   = "forbidden"
	ErrorNotFound    = "not_found"
	ErrorRateLimited = "rate_limited"
	ErrorHTTPStatus  = "http_status"
	ErrorCanceled    = "canceled"
	ErrorOther       = "other"
)

// Classify maps err to one of the Error* categories. It returns "" for nil.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return ErrorCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}

	var status *StatusError
	if errors.As(err, &status) {
		switch status.StatusCode {
		case http.StatusForbidden:
			return ErrorForbidden
		case http.StatusNotFound:
			return ErrorNotFound
		case http.StatusTooManyRequests:
			return ErrorRateLimited
		}
		return ErrorHTTPStatus
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrorConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrorConnection
	}
	return ErrorOther
}
