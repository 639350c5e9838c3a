package inventory

import (
	"errors"
	"fmt"
)

// Sentinel errors for inventory operations.
var (
	// ErrGatewayUnavailable means the device could not be reached. It is fatal
	// to the load or action that hit it.
	ErrGatewayUnavailable = errors.New("device unavailable")
	// ErrActionFailed matches any ActionError.
	ErrActionFailed = errors.New("action failed")
	// ErrUnknownPackage is returned for names missing from the inventory.
	ErrUnknownPackage = errors.New("unknown package")
)

// ActionError records a remove or restore that the device rejected.
type ActionError struct {
	Err    error
	Name   string
	Action Action
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Action, e.Name, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Is reports ErrActionFailed as a match so callers can test for the category.
func (e *ActionError) Is(target error) bool {
	return target == ErrActionFailed
}
