package model

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad client input: disallowed extensions, malformed
	// identifiers, payloads that do not match the expected shape.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks missing catalog entries, schemas, blobs or stored files.
	ErrNotFound = errors.New("not found")
	// ErrStorage marks backing store failures (unreachable, read or write error).
	ErrStorage = errors.New("storage failure")
	// ErrExtraction marks failures reported by the extraction capability.
	ErrExtraction = errors.New("extraction failure")
)

// WrapError preserves the error kind together with the failing operation.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", operation, kind)
	}
	if errors.Is(err, kind) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// Validationf builds an ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf builds an ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
