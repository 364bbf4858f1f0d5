package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// NotFound indicates a requested project or model is absent from fetched metadata
	NotFound ErrorCode = "NOT_FOUND"
	// MalformedIdentifier indicates a usage-log token or metadata path did not parse
	MalformedIdentifier ErrorCode = "MALFORMED_IDENTIFIER"
	// EmptyResult indicates the pipeline produced zero eligible items for the scope
	EmptyResult ErrorCode = "EMPTY_RESULT"
	// BackendUnavailable indicates the BI API is not reachable
	BackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	// Unauthorized indicates the API rejected the configured credentials
	Unauthorized ErrorCode = "UNAUTHORIZED"
	// RateLimited indicates the API answered 429
	RateLimited ErrorCode = "RATE_LIMITED"
	// Timeout indicates a request timed out
	Timeout ErrorCode = "TIMEOUT"
	// ScopeInvalid indicates an invalid scope, sort key or report kind
	ScopeInvalid ErrorCode = "SCOPE_INVALID"
	// ConfigInvalid indicates unusable configuration
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
	// EditConfig suggests changing configuration
	EditConfig FixActionType = "edit-config"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
}

// AuditError is an error with a stable code, a message and suggested fixes.
type AuditError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates an AuditError with the default suggested fixes for its code.
func New(code ErrorCode, message string, cause error) *AuditError {
	return &AuditError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...interface{}) *AuditError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *AuditError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AuditError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *AuditError) WithDetails(details interface{}) *AuditError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first AuditError in err's chain,
// or InternalError when there is none.
func CodeOf(err error) ErrorCode {
	var ae *AuditError
	if stderrors.As(err, &ae) {
		return ae.Code
	}
	return InternalError
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	var ae *AuditError
	if !stderrors.As(err, &ae) {
		return false
	}
	return ae.Code == code
}

// IsTerminal reports whether err is a reported scope condition rather than a failure.
// Terminal conditions are never retried.
func IsTerminal(err error) bool {
	return Is(err, NotFound) || Is(err, EmptyResult)
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	NotFound: {
		{
			Type:        RunCommand,
			Command:     "henry analyze models",
			Safe:        true,
			Description: "List the models and projects visible to the API user",
		},
	},
	EmptyResult: {
		{
			Type:        RunCommand,
			Command:     "henry analyze explores --model <model>",
			Safe:        true,
			Description: "Check that the model/explore filter matches existing explores",
		},
	},
	MalformedIdentifier: {
		{
			Type:        OpenDocs,
			Description: "The query-log format changed; usage counts cannot be trusted until the parser is updated",
		},
	},
	Unauthorized: {
		{
			Type:        EditConfig,
			Command:     "henry config show",
			Safe:        true,
			Description: "Check looker.clientId / looker.clientSecret or HENRY_LOOKER_CLIENT_ID / HENRY_LOOKER_CLIENT_SECRET",
		},
	},
	BackendUnavailable: {
		{
			Type:        EditConfig,
			Command:     "henry config show",
			Safe:        true,
			Description: "Check looker.baseUrl and network access to the API",
		},
	},
	RateLimited: {
		{
			Type:        EditConfig,
			Description: "Lower api.rateLimitPerSecond or concurrency.workers",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
