package logging

import (
	"errors"
	"fmt"
)

// OperationError tags an error with the analysis stage that produced it and
// the request it belongs to. The stage and request id are meant for logs;
// clients get Cause.
type OperationError struct {
	Operation string
	RequestID string
	Err       error
}

func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if e.RequestID == "" {
		return e.Operation + ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s failed for request %s: %v", e.Operation, e.RequestID, e.Err)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError wraps err with the stage and request it failed in. A nil err stays nil.
func NewOperationError(operation, requestID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, RequestID: requestID, Err: err}
}

// Cause strips the outermost stage annotation from err. Other errors are returned as is.
func Cause(err error) error {
	var opErr *OperationError
	if errors.As(err, &opErr) && opErr.Err != nil {
		return opErr.Err
	}
	return err
}

// Operation reports the stage err was tagged with, or "" if it carries none.
func Operation(err error) string {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Operation
	}
	return ""
}
