package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface enables extensible error handling.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCombination = errors.New("type/availability combination not permitted")
	ErrInvalidTransition  = errors.New("availability transition not permitted")
	ErrNoActiveSession    = errors.New("no active session")
	ErrNoActiveProfile    = errors.New("no active profile")
	ErrProviderFailure    = errors.New("provider failure")
	ErrEnrichmentFailure  = errors.New("enrichment failure")
	ErrStoreFailure       = errors.New("store failure")
)

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// NoActiveSessionError indicates the pipeline cannot start because no
	// session is active for the active profile
	NoActiveSessionError struct {
		ProfileID int64
	}

	// ProviderError indicates the LLM provider returned success=false
	ProviderError struct {
		Provider string
		Message  string
	}

	// EnrichmentError wraps the first enricher failure observed by the
	// orchestrator
	EnrichmentError struct {
		Enricher string
		Cause    error
	}
)

func (e *NotFoundError) Error() string   { return e.Message }
func (e *ValidationError) Error() string { return e.Message }
func (e *NoActiveSessionError) Error() string {
	return fmt.Sprintf("no active session for profile %d", e.ProfileID)
}
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider failure: %s", e.Provider, e.Message)
}
func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enricher %s: %v", e.Enricher, e.Cause)
}

// StatusCode implementations (HTTPError interface)
func (e *NotFoundError) StatusCode() int        { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int      { return http.StatusBadRequest }
func (e *NoActiveSessionError) StatusCode() int { return http.StatusBadRequest }
func (e *ProviderError) StatusCode() int        { return http.StatusBadGateway }
func (e *EnrichmentError) StatusCode() int      { return http.StatusInternalServerError }

// Is hooks so errors.Is() matches the sentinels
func (e *NotFoundError) Is(target error) bool        { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool      { return target == ErrValidation }
func (e *NoActiveSessionError) Is(target error) bool { return target == ErrNoActiveSession }
func (e *ProviderError) Is(target error) bool        { return target == ErrProviderFailure }
func (e *EnrichmentError) Is(target error) bool      { return target == ErrEnrichmentFailure }

// Unwrap exposes the underlying enricher failure
func (e *EnrichmentError) Unwrap() error { return e.Cause }

// InvalidCombinationError rejects a (type, availability) pair outside the
// permitted matrix
type InvalidCombinationError struct {
	Type         string
	Availability string
}

func (e *InvalidCombinationError) Error() string {
	return fmt.Sprintf("type %s does not support availability %s", e.Type, e.Availability)
}

func (e *InvalidCombinationError) StatusCode() int { return http.StatusBadRequest }

func (e *InvalidCombinationError) Is(target error) bool { return target == ErrInvalidCombination }

// InvalidTransitionError rejects an availability change that would strand an
// embedded record; RequiresUnembed tells the client to retry with
// confirmUnembed=true
type InvalidTransitionError struct {
	OldAvailability string
	NewAvailability string
	RequiresUnembed bool
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change availability %s -> %s without unembedding",
		e.OldAvailability, e.NewAvailability)
}

func (e *InvalidTransitionError) StatusCode() int { return http.StatusBadRequest }

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// ConflictError represents a resource conflict with details about the
// existing resource
type ConflictError struct {
	Message      string
	ResourceType string
	ResourceID   int64
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) StatusCode() int { return http.StatusConflict }

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
