package agent

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind is the failure class of a request.
type ErrorKind int

const (
	// KindValidation means the request was never sent (bad address or path).
	KindValidation ErrorKind = iota
	// KindTransport means the exchange failed before a response arrived.
	KindTransport
	// KindProtocol means the agent answered with a non-2xx status.
	KindProtocol
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// FailReason categorizes transport failures.
type FailReason int

const (
	FailUnknown FailReason = iota
	FailTimeout
	FailRefused
	FailUnreachable
	FailDNS
	FailCanceled
)

// String returns a human-readable description of the failure reason.
func (r FailReason) String() string {
	switch r {
	case FailTimeout:
		return "timed out"
	case FailRefused:
		return "connection refused"
	case FailUnreachable:
		return "host unreachable"
	case FailDNS:
		return "name resolution failed"
	case FailCanceled:
		return "canceled"
	default:
		return "request failed"
	}
}

// RequestError is returned by every Client call that does not succeed.
type RequestError struct {
	Kind       ErrorKind
	Reason     FailReason
	URL        string
	StatusCode int
	Body       string
	Cause      error
}

func (e *RequestError) Error() string {
	switch e.Kind {
	case KindProtocol:
		body := strings.TrimSpace(e.Body)
		if body == "" {
			return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
		}
		return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, body)
	case KindValidation:
		return fmt.Sprintf("invalid agent URL %q: %v", e.URL, e.Cause)
	default:
		return fmt.Sprintf("%s: %s", e.URL, e.Reason)
	}
}

func (e *RequestError) Unwrap() error {
	return e.Cause
}

// IsTimeout reports whether err is a transport timeout.
func IsTimeout(err error) bool {
	var reqErr *RequestError
	return stderrors.As(err, &reqErr) && reqErr.Kind == KindTransport && reqErr.Reason == FailTimeout
}

// categorize converts a client error into a transport RequestError.
func categorize(url string, err error) *RequestError {
	if err == nil {
		return nil
	}
	reqErr := &RequestError{Kind: KindTransport, Reason: FailUnknown, URL: url, Cause: err}

	var netErr net.Error
	var dnsErr *net.DNSError
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		reqErr.Reason = FailTimeout
		return reqErr
	case stderrors.Is(err, context.Canceled):
		reqErr.Reason = FailCanceled
		return reqErr
	case stderrors.As(err, &dnsErr):
		reqErr.Reason = FailDNS
		return reqErr
	case stderrors.As(err, &netErr) && netErr.Timeout():
		reqErr.Reason = FailTimeout
		return reqErr
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "timeout") {
		reqErr.Reason = FailTimeout
		return reqErr
	}

	if strings.Contains(errStr, "connection refused") {
		reqErr.Reason = FailRefused
		return reqErr
	}

	if strings.Contains(errStr, "no route to host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "host is down") {
		reqErr.Reason = FailUnreachable
		return reqErr
	}

	return reqErr
}
