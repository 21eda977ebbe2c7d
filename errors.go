package snapembed

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classify every failure the engine can surface. Callers
// branch with errors.Is; the typed wrappers below carry detail and are
// matched with errors.As.
var (
	// ErrConfiguration marks missing or malformed integration identifiers.
	// Fatal for the affected container, shown inline, never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrDependencyNotReady marks a widget library or mount container that is
	// not ready yet. Retried with bounded backoff, abandoned silently past the
	// ceiling, never shown to the user.
	ErrDependencyNotReady = errors.New("dependency not ready")
	// ErrValidation marks user-fixable field or host-state issues. Surfaced as
	// an inline message plus field highlighting, never fatal.
	ErrValidation = errors.New("validation failed")
	// ErrServerSync marks a best-effort remote call failure. Logged only,
	// non-blocking, except finalize (see lifecycle).
	ErrServerSync = errors.New("server sync failed")
	// ErrApplicationDenied marks the terminal negative business outcome.
	// Blocks submission; the user may restart the flow by reselecting.
	ErrApplicationDenied = errors.New("application denied")
)

// ConfigurationError reports which integration identifiers are missing.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: missing %s", strings.Join(e.Missing, ", "))
}

// Unwrap ties the typed error to ErrConfiguration for errors.Is matching.
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// ValidationError aggregates the user-facing validation messages of one
// preflight pass.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	if len(e.Messages) == 0 {
		return ErrValidation.Error()
	}

	return "validation failed: " + e.Messages[0]
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ServerSyncError reports which remote endpoint failed and why.
type ServerSyncError struct {
	Endpoint string
	Cause    error
}

func (e *ServerSyncError) Error() string {
	return fmt.Sprintf("server sync failed on %s: %v", e.Endpoint, e.Cause)
}

func (e *ServerSyncError) Unwrap() error {
	return ErrServerSync
}

// NewServerSyncError wraps a remote call failure with its endpoint name.
func NewServerSyncError(endpoint string, cause error) error {
	return &ServerSyncError{Endpoint: endpoint, Cause: cause}
}
