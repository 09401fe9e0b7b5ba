package errors

import (
	"errors"
	"fmt"
)

// FetchKind classifies fetch failures
type FetchKind string

const (
	// FetchTimeout means the request exceeded its deadline
	FetchTimeout FetchKind = "timeout"
	// FetchUnreachable means the host could not be reached at all
	FetchUnreachable FetchKind = "unreachable"
	// FetchHTTPStatus means the host answered with a non-2xx status
	FetchHTTPStatus FetchKind = "http-status"
)

// FetchError is a transient failure while retrieving a rule's target URL.
// The scheduler treats it as terminal for the current run only.
type FetchError struct {
	Kind       FetchKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchHTTPStatus:
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	default:
		if e.Err != nil {
			return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
		}
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a later run may succeed without operator action
func (e *FetchError) IsRetryable() bool {
	return true
}

// ExtractionReason classifies extraction failures
type ExtractionReason string

const (
	// ReasonSelectorNotFound means a non-empty selector matched nothing usable
	ReasonSelectorNotFound ExtractionReason = "selector-not-found"
	// ReasonAmbiguous means a selector matched more than one element
	ReasonAmbiguous ExtractionReason = "multiple-matches-ambiguous"
	// ReasonUnparseable means the document could not be parsed as HTML
	ReasonUnparseable ExtractionReason = "document-unparseable"
)

// ExtractionError is a failure to apply a rule's selectors to a document.
// Field is empty for page-level failures such as an unparseable document.
type ExtractionError struct {
	Field    string
	Selector string
	Reason   ExtractionReason
}

func (e *ExtractionError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("extract: %s", e.Reason)
	}
	return fmt.Sprintf("extract %s (%q): %s", e.Field, e.Selector, e.Reason)
}

// ValidationError reports bad input to a store mutation.
// It is surfaced synchronously to the caller and never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError reports a store operation on an unknown identifier
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NewNotFound creates a NotFoundError
func NewNotFound(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// AlreadyRunningError reports a manual trigger on a rule whose previous
// execution has not finished yet
type AlreadyRunningError struct {
	RuleID string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("rule %s is already running", e.RuleID)
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// IsAlreadyRunning reports whether err is an AlreadyRunningError
func IsAlreadyRunning(err error) bool {
	var are *AlreadyRunningError
	return errors.As(err, &are)
}

// IsFetch reports whether err is a FetchError
func IsFetch(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// IsExtraction reports whether err is an ExtractionError
func IsExtraction(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}
