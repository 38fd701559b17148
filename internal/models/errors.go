package models

import (
	"errors"
	"fmt"
)

// ErrWatchNotFound indicates a UUID with no backing watch record.
var ErrWatchNotFound = errors.New("watch not found")

// ErrSnapshotNotFound indicates a missing history snapshot.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// CheckErrorKind tags the failure classes a check can produce. Every kind is
// non-fatal to the worker loop: the pipeline converts it to persisted watch
// state and the loop continues.
type CheckErrorKind int

const (
	// CheckErrorUnknown covers any unclassified failure from fetch,
	// filter, or diff steps.
	CheckErrorUnknown CheckErrorKind = iota
	// CheckErrorEmptyReply means the fetch returned no usable body.
	CheckErrorEmptyReply
	// CheckErrorScreenshotUnavailable means the browser backend could not
	// render the page in time.
	CheckErrorScreenshotUnavailable
	// CheckErrorPageUnloadable means the remote server or browser failed
	// to produce a usable page.
	CheckErrorPageUnloadable
	// CheckErrorContentButNoText means the page had structure but the
	// configured filters yielded no text.
	CheckErrorContentButNoText
	// CheckErrorPermission is a local I/O permission failure while
	// persisting; the watch is left in its previous state.
	CheckErrorPermission
)

// String returns a stable name for the kind.
func (k CheckErrorKind) String() string {
	switch k {
	case CheckErrorEmptyReply:
		return "empty_reply"
	case CheckErrorScreenshotUnavailable:
		return "screenshot_unavailable"
	case CheckErrorPageUnloadable:
		return "page_unloadable"
	case CheckErrorContentButNoText:
		return "content_but_no_text"
	case CheckErrorPermission:
		return "permission"
	default:
		return "unknown"
	}
}

// CheckError is the tagged failure value returned by the fetch step and
// switched on explicitly by the pipeline.
type CheckError struct {
	Kind          CheckErrorKind
	StatusCode    int
	Message       string
	FilterMissing bool // ContentButNoText: a configured filter matched nothing
	Cause         error
}

func (e *CheckError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CheckError) Unwrap() error {
	return e.Cause
}

// NewEmptyReplyError reports a fetch that produced no usable body.
func NewEmptyReplyError(statusCode int) *CheckError {
	return &CheckError{
		Kind:       CheckErrorEmptyReply,
		StatusCode: statusCode,
		Message:    fmt.Sprintf("empty reply from server (status %d), cause unknown, try increasing the wait time", statusCode),
	}
}

// NewScreenshotUnavailableError reports a browser render timeout.
func NewScreenshotUnavailableError(url string, cause error) *CheckError {
	return &CheckError{
		Kind:    CheckErrorScreenshotUnavailable,
		Message: fmt.Sprintf("screenshot unavailable, page did not render within the timeout: %s", url),
		Cause:   cause,
	}
}

// NewPageUnloadableError reports a page that could not be loaded at all.
func NewPageUnloadableError(url string, statusCode int, cause error) *CheckError {
	return &CheckError{
		Kind:       CheckErrorPageUnloadable,
		StatusCode: statusCode,
		Message:    fmt.Sprintf("page could not be loaded: %s", url),
		Cause:      cause,
	}
}

// NewContentButNoTextError reports a page whose filters yielded no text.
// filterMissing distinguishes "configured filter matched nothing" from
// "page has no text at all".
func NewContentButNoTextError(filterMissing bool) *CheckError {
	msg := "page loaded but contained no text"
	if filterMissing {
		msg = "configured filter was not found in the page"
	}
	return &CheckError{
		Kind:          CheckErrorContentButNoText,
		Message:       msg,
		FilterMissing: filterMissing,
	}
}

// NewPermissionError reports a local persistence permission failure.
func NewPermissionError(path string, cause error) *CheckError {
	return &CheckError{
		Kind:    CheckErrorPermission,
		Message: fmt.Sprintf("permission denied writing %s", path),
		Cause:   cause,
	}
}

// NewUnknownCheckError wraps any other failure from the check steps.
func NewUnknownCheckError(cause error) *CheckError {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return &CheckError{Kind: CheckErrorUnknown, Message: msg, Cause: cause}
}

// AsCheckError unwraps err to a CheckError, converting foreign errors to the
// unknown kind so the pipeline can always switch on a tagged value.
func AsCheckError(err error) *CheckError {
	if err == nil {
		return nil
	}
	var ce *CheckError
	if errors.As(err, &ce) {
		return ce
	}
	return NewUnknownCheckError(err)
}

// WrapError wraps an error with additional context information.
func WrapError(err error, message string) error {
	if err == nil {
		return fmt.Errorf("%s: <nil>", message)
	}
	return fmt.Errorf("%s: %w", message, err)
}

// ValidationError represents validation errors with field-specific information.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}
