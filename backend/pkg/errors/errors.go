package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeRecord represents malformed adapter records
	ErrorTypeRecord ErrorType = "record"
	// ErrorTypeMatch represents registry matching outcomes worth reporting
	ErrorTypeMatch ErrorType = "match"
	// ErrorTypeState represents unreadable or corrupt process state
	ErrorTypeState ErrorType = "state"
	// ErrorTypeGraph represents graph database errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeAdapter represents source parsing errors
	ErrorTypeAdapter ErrorType = "adapter"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// ErrorType exposes the category so embedding types satisfy typed.
func (e *BaseError) ErrorType() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Record Errors

// ErrMalformedRecord is returned when a mention or fact lacks a required reference.
// The record is skipped; the run continues.
type ErrMalformedRecord struct {
	*BaseError
	Kind  string
	Field string
}

func NewMalformedRecord(kind, field string) *ErrMalformedRecord {
	return &ErrMalformedRecord{
		BaseError: NewBaseError(ErrorTypeRecord, fmt.Sprintf("malformed %s: missing %s", kind, field), nil),
		Kind:      kind,
		Field:     field,
	}
}

// Match Errors

// ErrAmbiguousMatch describes a lookup where several registry entries cleared
// the threshold. It is informational: the registry has already picked Chosen.
type ErrAmbiguousMatch struct {
	*BaseError
	Key        string
	Chosen     string
	Candidates []string
}

func NewAmbiguousMatch(key, chosen string, candidates []string) *ErrAmbiguousMatch {
	return &ErrAmbiguousMatch{
		BaseError:  NewBaseError(ErrorTypeMatch, fmt.Sprintf("ambiguous match for %q: %d candidates", key, len(candidates)), nil),
		Key:        key,
		Chosen:     chosen,
		Candidates: candidates,
	}
}

// State Errors

// ErrStateCorruption is returned when a state or data file could not be parsed.
// QuarantinedAs names where the bad file was moved, if it was.
type ErrStateCorruption struct {
	*BaseError
	Path          string
	QuarantinedAs string
}

func NewStateCorruption(path, quarantinedAs string, err error) *ErrStateCorruption {
	return &ErrStateCorruption{
		BaseError:     NewBaseError(ErrorTypeState, fmt.Sprintf("state file unreadable: %s", path), err),
		Path:          path,
		QuarantinedAs: quarantinedAs,
	}
}

// Graph Errors

// ErrGraphConnectionFailed is returned when Neo4j cannot be reached.
// The in-flight batch is lost but can be retried in full.
type ErrGraphConnectionFailed struct {
	*BaseError
	URI string
}

func NewGraphConnectionFailed(uri string, err error) *ErrGraphConnectionFailed {
	return &ErrGraphConnectionFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("failed to connect to Neo4j: %s", uri), err),
		URI:       uri,
	}
}

// ErrGraphQueryFailed is returned when a graph query fails
type ErrGraphQueryFailed struct {
	*BaseError
	Operation string
}

func NewGraphQueryFailed(operation string, err error) *ErrGraphQueryFailed {
	return &ErrGraphQueryFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("query failed: %s", operation), err),
		Operation: operation,
	}
}

// Adapter Errors

// ErrAdapterParseFailed is returned when a source file cannot be decoded at all.
type ErrAdapterParseFailed struct {
	*BaseError
	SourceKind string
	Path       string
}

func NewAdapterParseFailed(sourceKind, path string, err error) *ErrAdapterParseFailed {
	return &ErrAdapterParseFailed{
		BaseError:  NewBaseError(ErrorTypeAdapter, fmt.Sprintf("failed to parse %s source: %s", sourceKind, path), err),
		SourceKind: sourceKind,
		Path:       path,
	}
}

// ErrUnknownSourceKind is returned for a source kind no adapter handles.
type ErrUnknownSourceKind struct {
	*BaseError
	SourceKind string
}

func NewUnknownSourceKind(kind string) *ErrUnknownSourceKind {
	return &ErrUnknownSourceKind{
		BaseError:  NewBaseError(ErrorTypeAdapter, fmt.Sprintf("unknown source kind: %s", kind), nil),
		SourceKind: kind,
	}
}

// Context Errors

// ErrContextCancelled is returned when context is cancelled
type ErrContextCancelled struct {
	*BaseError
	Operation string
}

func NewContextCancelled(operation string, err error) *ErrContextCancelled {
	return &ErrContextCancelled{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context cancelled: %s", operation), err),
		Operation: operation,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

type typed interface {
	ErrorType() ErrorType
}

// IsErrorType checks if an error, or anything it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	var t typed
	if errors.As(err, &t) {
		return t.ErrorType() == errType
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	// Context errors are not retryable
	if IsErrorType(err, ErrorTypeContext) {
		return false
	}
	// Every graph write is an idempotent upsert, so a failed batch can be replayed.
	if IsErrorType(err, ErrorTypeGraph) {
		return true
	}
	return false
}

// IsSkippable reports whether the run should log err and move on to the next record.
func IsSkippable(err error) bool {
	return IsErrorType(err, ErrorTypeRecord) || IsErrorType(err, ErrorTypeMatch)
}
