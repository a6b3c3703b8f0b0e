package services

import (
	"errors"
	"fmt"

	"project-hub/internal/access"
	"project-hub/internal/files"
	"project-hub/internal/repositories"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrExternal         = errors.New("external service failure")
)

// ValidationError reports malformed input. It is returned before any
// mutation happens.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Error codes shared by the HTTP and websocket surfaces.
const (
	CodeValidation       = "validation"
	CodeNotFound         = "not_found"
	CodePermissionDenied = "permission_denied"
	CodeConflict         = "conflict"
	CodeExternal         = "external"
	CodeInternal         = "internal"
)

// IsNotFound reports whether err names a missing chat, message, project or file.
func IsNotFound(err error) bool {
	return errors.Is(err, repositories.ErrChatNotFound) ||
		errors.Is(err, repositories.ErrMessageNotFound) ||
		errors.Is(err, access.ErrProjectNotFound) ||
		errors.Is(err, files.ErrFileNotFound)
}

// ErrorCode classifies err into one of the Code constants.
func ErrorCode(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, files.ErrInvalidPath):
		return CodeValidation
	case IsNotFound(err):
		return CodeNotFound
	case errors.Is(err, ErrPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, files.ErrFileExists):
		return CodeConflict
	case errors.Is(err, ErrExternal):
		return CodeExternal
	default:
		return CodeInternal
	}
}
