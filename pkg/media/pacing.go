package media

import (
	"context"
	"time"

	"igrelay/pkg/retry"
)

// PaceKind selects the delay between two items of a batch
type PaceKind int

const (
	PaceNone PaceKind = iota
	PaceStory
	PaceHighlight
)

func (k PaceKind) String() string {
	switch k {
	case PaceStory:
		return "story"
	case PaceHighlight:
		return "highlight"
	default:
		return "none"
	}
}

// Pacer spaces out uploads so the chat platform does not throttle us
type Pacer struct {
	StoryDelay     time.Duration
	HighlightDelay time.Duration
}

// DefaultPacer waits 2s between stories and 3s between highlight items
func DefaultPacer() *Pacer {
	return &Pacer{
		StoryDelay:     2 * time.Second,
		HighlightDelay: 3 * time.Second,
	}
}

// Delay returns the wait for kind
func (p *Pacer) Delay(kind PaceKind) time.Duration {
	switch kind {
	case PaceStory:
		return p.StoryDelay
	case PaceHighlight:
		return p.HighlightDelay
	default:
		return 0
	}
}

// Pace blocks for the kind's delay or until ctx is done
func (p *Pacer) Pace(ctx context.Context, kind PaceKind) error {
	return retry.Wait(ctx, p.Delay(kind))
}
