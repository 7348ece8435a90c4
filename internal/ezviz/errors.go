package ezviz

import (
	"fmt"
)

// HTTPError reports a failure talking to the EZVIZ cloud: the request never completed, the server
// answered with a non-2xx status, or the body could not be decoded.
type HTTPError struct {
	StatusCode int
	Endpoint   string
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ezviz: request to %s failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("ezviz: request to %s returned HTTP %d", e.Endpoint, e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// APIError is a failure reported by the EZVIZ cloud in the response meta block.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ezviz: api error %d: %s", e.Code, e.Message)
}

func checkMeta(m meta) error {
	if m.Code != 200 {
		return &APIError{Code: m.Code, Message: m.Message}
	}
	return nil
}
