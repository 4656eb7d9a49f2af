package ocr

import (
	"errors"
	"fmt"
)

// ErrEndpointsExhausted means every active endpoint failed for one page, or
// no active endpoints remain. It is a page-level failure, never fatal.
var ErrEndpointsExhausted = errors.New("ocr: all endpoints exhausted")

// ServiceError is a recoverable per-endpoint failure: the service answered
// but carried no usable direction signal. The registry fallback loop consumes
// it and advances to the next endpoint.
type ServiceError struct {
	Endpoint string
	Code     int
	Msg      string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("ocr endpoint %s: error %d: %s", e.Endpoint, e.Code, e.Msg)
}

// AuthError is fatal: the startup credential exchange failed.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("ocr auth: %s", e.Reason)
}
