package media

import (
	"strings"
)

// Validator checks staged files before they are handed to the transport
type Validator struct {
	MaxSize int64
}

// NewValidator creates a validator; a non-positive limit means DefaultMaxFileSize
func NewValidator(maxSize int64) *Validator {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Validator{MaxSize: maxSize}
}

// Validate returns file unchanged when its extension and sniffed type match
// expected and its size is within the limit.
func (v *Validator) Validate(file *StagedFile, expected Kind) (*StagedFile, error) {
	if file.DetectedKind != expected {
		return nil, &ValidationError{
			Path:     file.Path,
			Reason:   ErrKindMismatch,
			Expected: expected,
			Actual:   file.DetectedKind,
		}
	}

	mime, _, _ := strings.Cut(file.MIME, ";")
	if sniffed, ok := KindForMIME(mime); ok && sniffed != expected {
		return nil, &ValidationError{
			Path:     file.Path,
			Reason:   ErrKindMismatch,
			Expected: expected,
			Actual:   sniffed,
		}
	}

	if file.Size > v.MaxSize {
		return nil, &ValidationError{
			Path:     file.Path,
			Reason:   ErrTooLarge,
			Expected: expected,
			Actual:   file.DetectedKind,
			Size:     file.Size,
			Limit:    v.MaxSize,
		}
	}

	return file, nil
}
