package media

import (
	"errors"
	"fmt"
)

var (
	// ErrKindMismatch means the staged file is not the kind the item promised
	ErrKindMismatch = errors.New("media kind mismatch")
	// ErrTooLarge means the staged file exceeds the transport size limit
	ErrTooLarge = errors.New("media file too large")
	// ErrNoMedia means the download left no allow-listed file behind
	ErrNoMedia = errors.New("no media file produced")
)

// Outcome is the terminal state of one item in a batch
type Outcome string

const (
	OutcomeDelivered      Outcome = "delivered"
	OutcomeFetchFailed    Outcome = "fetch_failed"
	OutcomeKindMismatch   Outcome = "kind_mismatch"
	OutcomeTooLarge       Outcome = "too_large"
	OutcomeDeliveryFailed Outcome = "delivery_failed"
)

// FetchError wraps a failed download or an empty result
type FetchError struct {
	ItemID string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch item %s: %v", e.ItemID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ValidationError describes why a staged file was rejected
type ValidationError struct {
	Path     string
	Reason   error
	Expected Kind
	Actual   Kind
	Size     int64
	Limit    int64
}

func (e *ValidationError) Error() string {
	if errors.Is(e.Reason, ErrTooLarge) {
		return fmt.Sprintf("%s: %v (%d > %d bytes)", e.Path, e.Reason, e.Size, e.Limit)
	}
	return fmt.Sprintf("%s: %v (expected %s, got %s)", e.Path, e.Reason, e.Expected, e.Actual)
}

func (e *ValidationError) Unwrap() error { return e.Reason }

// DeliveryError wraps a chat transport failure
type DeliveryError struct {
	ItemID string
	Kind   Kind
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s %s: %v", e.Kind, e.ItemID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// OutcomeOf classifies an item error; nil is delivered
func OutcomeOf(err error) Outcome {
	var (
		fetchErr    *FetchError
		deliveryErr *DeliveryError
	)
	switch {
	case err == nil:
		return OutcomeDelivered
	case errors.Is(err, ErrTooLarge):
		return OutcomeTooLarge
	case errors.Is(err, ErrKindMismatch):
		return OutcomeKindMismatch
	case errors.As(err, &fetchErr):
		return OutcomeFetchFailed
	case errors.As(err, &deliveryErr):
		return OutcomeDeliveryFailed
	default:
		return OutcomeDeliveryFailed
	}
}
