package publicapi

import (
	"errors"
	"fmt"
)

// BusinessError is a non-2xx response with a readable body: the server
// looked at the order and refused it. It must not be retried.
type BusinessError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("order rejected (%d): %s", e.StatusCode, e.Message)
}

// TransportError covers timeouts, aborts, connection failures and responses
// that could not be understood. The request may or may not have reached the
// server.
type TransportError struct {
	Op         string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Timeout:
		return e.Op + ": request timed out"
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: unexpected response %d: %v", e.Op, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func IsBusiness(err error) bool {
	var be *BusinessError
	return errors.As(err, &be)
}
