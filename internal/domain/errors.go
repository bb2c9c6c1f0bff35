package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for cross-package error classification.
// Collaborators wrap these so the CLI can handle error categories
// uniformly without importing provider-specific SDKs.
//
//	return fmt.Errorf("failed to delete server: %w", domain.ErrNotFound)
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized indicates the request was rejected due to
	// invalid, expired, or missing credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the provider throttled the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrConflict indicates a uniqueness conflict, such as a duplicate
	// environment or service name.
	ErrConflict = errors.New("conflict")

	// ErrConstraint indicates a domain invariant would be violated.
	ErrConstraint = errors.New("constraint violation")

	// ErrTimeout indicates a bounded external wait was exceeded.
	ErrTimeout = errors.New("timed out")
)

// ProviderError is returned when the cloud control plane rejects a request.
type ProviderError struct {
	Code    string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Code == "" {
		return "provider: " + e.Message
	}
	return fmt.Sprintf("provider: %s (%s)", e.Message, e.Code)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// InventoryError wraps a failed read or write against the inventory store.
// Err carries ErrNotFound or ErrConflict where the failure is classifiable.
type InventoryError struct {
	Op  string
	Err error
}

func (e *InventoryError) Error() string {
	return fmt.Sprintf("inventory: %s: %v", e.Op, e.Err)
}

func (e *InventoryError) Unwrap() error { return e.Err }

// ConnectError means the remote executor could not reach a host.
type ConnectError struct {
	Host string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Host, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ExecError means a remote command ran but did not succeed.
type ExecError struct {
	Host     string
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("%s: %q exited %d", e.Host, e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// ConstraintError reports a violated domain invariant.
type ConstraintError struct {
	Reason string
}

func (e *ConstraintError) Error() string { return e.Reason }

func (e *ConstraintError) Is(target error) bool { return target == ErrConstraint }

// VolumesAttachedError blocks destruction of a server whose cloud instance
// still reports attached volumes.
type VolumesAttachedError struct {
	Server  string
	Volumes []string
}

func (e *VolumesAttachedError) Error() string {
	return fmt.Sprintf("server %s has attached volumes (%s); detach them before destroying",
		e.Server, strings.Join(e.Volumes, ", "))
}

func (e *VolumesAttachedError) Is(target error) bool { return target == ErrConstraint }

// ConfigMgmtError reports a failed certificate sign/authenticate cycle.
type ConfigMgmtError struct {
	Host string
	Err  error
}

func (e *ConfigMgmtError) Error() string {
	return fmt.Sprintf("config management enrollment of %s failed: %v", e.Host, e.Err)
}

func (e *ConfigMgmtError) Unwrap() error { return e.Err }

// TimeoutError reports that a bounded external wait was exceeded.
type TimeoutError struct {
	Op   string
	Wait time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s did not complete within %s", e.Op, e.Wait)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }
