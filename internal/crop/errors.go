package crop

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes cropper errors.
type ErrorCode string

const (
	// ErrCodeMetadataLoad indicates the image dimensions could not be read.
	// Gestures stay disabled for the session.
	ErrCodeMetadataLoad ErrorCode = "METADATA_LOAD"

	// ErrCodePersistence indicates a read or write of saved state failed.
	// Callers log it and continue with in-memory state.
	ErrCodePersistence ErrorCode = "PERSISTENCE"

	// ErrCodeCapture indicates rasterization or output failed.
	// The transform is untouched and the capture can be retried.
	ErrCodeCapture ErrorCode = "CAPTURE"

	// ErrCodeCaptureInProgress indicates a capture was requested while
	// another was still running for the same session.
	ErrCodeCaptureInProgress ErrorCode = "CAPTURE_IN_PROGRESS"

	// ErrCodeNotReady indicates an operation needs a Ready session.
	ErrCodeNotReady ErrorCode = "NOT_READY"

	// ErrCodeInvalidInput indicates a malformed argument.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Error is a cropper failure with a category code and optional cause.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// FileID identifies the affected session, if any.
	FileID string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.FileID != "" {
		msg = fmt.Sprintf("%s (file=%s)", msg, e.FileID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsMetadataLoadError reports whether err is a metadata load failure.
func IsMetadataLoadError(err error) bool { return hasCode(err, ErrCodeMetadataLoad) }

// IsPersistenceError reports whether err is a persistence failure.
func IsPersistenceError(err error) bool { return hasCode(err, ErrCodePersistence) }

// IsCaptureError reports whether err is a capture failure.
func IsCaptureError(err error) bool { return hasCode(err, ErrCodeCapture) }

// IsCaptureInProgress reports whether err rejected an overlapping capture.
func IsCaptureInProgress(err error) bool { return hasCode(err, ErrCodeCaptureInProgress) }

// IsNotReady reports whether err rejected an operation outside Ready.
func IsNotReady(err error) bool { return hasCode(err, ErrCodeNotReady) }

// IsInvalidInput reports whether err is an argument error.
func IsInvalidInput(err error) bool { return hasCode(err, ErrCodeInvalidInput) }

// NewMetadataLoadError creates an Error for an unreadable image.
func NewMetadataLoadError(uri string, err error) *Error {
	return &Error{
		Code:    ErrCodeMetadataLoad,
		Message: fmt.Sprintf("load image metadata for %q", uri),
		Err:     err,
	}
}

// NewPersistenceError creates an Error for a failed store operation.
func NewPersistenceError(op, fileID string, err error) *Error {
	return &Error{
		Code:    ErrCodePersistence,
		Message: op,
		FileID:  fileID,
		Err:     err,
	}
}

// NewCaptureError creates an Error for a failed capture.
func NewCaptureError(fileID, message string, err error) *Error {
	return &Error{
		Code:    ErrCodeCapture,
		Message: message,
		FileID:  fileID,
		Err:     err,
	}
}

// NewCaptureInProgressError creates an Error for an overlapping capture.
func NewCaptureInProgressError(fileID string) *Error {
	return &Error{
		Code:    ErrCodeCaptureInProgress,
		Message: "capture already in progress",
		FileID:  fileID,
	}
}

// NewNotReadyError creates an Error for an operation attempted in state.
func NewNotReadyError(op, state string) *Error {
	return &Error{
		Code:    ErrCodeNotReady,
		Message: fmt.Sprintf("%s requires a ready session (state=%s)", op, state),
	}
}

// NewInvalidInputError creates an Error for a malformed argument.
func NewInvalidInputError(format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeInvalidInput,
		Message: fmt.Sprintf(format, args...),
	}
}
