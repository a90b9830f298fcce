package media

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"igrelay/pkg/logger"
)

// Recipient is a chat that can receive media and plain text
type Recipient interface {
	Sender
	Notify(ctx context.Context, text string) error
}

// Observer receives per-item outcomes and batch totals
type Observer interface {
	ItemFinished(target string, outcome Outcome, duration time.Duration)
	BatchFinished(target string, sent, total int, duration time.Duration)
}

// Batch is an ordered list of items plus how to present them
type Batch struct {
	Target        string
	Items         []ContentItem
	Pace          PaceKind
	Chronological bool
	// Title and Ordinal switch captions to the "[n]. 🌟 title" form
	Title   string
	Ordinal bool
	// Intro is sent once before the first item when set
	Intro        string
	EmptyMessage string
	Summary      func(sent, total int) string
}

// ItemResult is the terminal state of one item
type ItemResult struct {
	Index   int
	Item    ContentItem
	Outcome Outcome
	Err     error
}

// Report summarizes a finished batch
type Report struct {
	Target    string
	Total     int
	SentCount int
	Results   []ItemResult
	Duration  time.Duration
}

// PipelineConfig holds the settings shared by every batch
type PipelineConfig struct {
	StagingBase string
	MaxFileSize int64
	Location    *time.Location
	Pacer       *Pacer
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithObserver reports outcomes to o
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithLogger sets the pipeline logger
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// Pipeline stages, validates, delivers and cleans up the items of a batch
type Pipeline struct {
	fs        afero.Fs
	cfg       PipelineConfig
	fetcher   *Fetcher
	validator *Validator
	deliverer *Deliverer
	observer  Observer
	log       logger.Logger
}

// NewPipeline creates a pipeline staging files on fs
func NewPipeline(fs afero.Fs, d Downloader, cfg PipelineConfig, opts ...Option) *Pipeline {
	if cfg.Pacer == nil {
		cfg.Pacer = DefaultPacer()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	p := &Pipeline{
		fs:        fs,
		cfg:       cfg,
		fetcher:   NewFetcher(d),
		validator: NewValidator(cfg.MaxFileSize),
		observer:  nopObserver{},
		log:       logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.deliverer = NewDeliverer(p.log)
	return p
}

// Fs returns the staging filesystem
func (p *Pipeline) Fs() afero.Fs { return p.fs }

// NewArea names a staging area for target under the configured base
func (p *Pipeline) NewArea(target string) *StagingArea {
	return NewStagingArea(p.fs, p.cfg.StagingBase, target)
}

// Run processes every item of batch and sends the outcome to to. Item
// failures are reported to the chat and never stop the batch. The staging
// area is gone when Run returns.
func (p *Pipeline) Run(ctx context.Context, batch Batch, to Recipient) (*Report, error) {
	start := time.Now()
	log := p.log.WithField("target", batch.Target)
	report := &Report{Target: batch.Target, Total: len(batch.Items)}

	if len(batch.Items) == 0 {
		p.notify(ctx, to, log, emptyMessage(batch))
		p.finish(report, start)
		return report, nil
	}

	area := p.NewArea(batch.Target)
	if err := area.Acquire(); err != nil {
		log.WithError(err).Error("Failed to create staging area")
		p.notify(ctx, to, log, "❌ Could not prepare the download, please try again later.")
		_ = area.Release()
		p.finish(report, start)
		return report, err
	}
	defer func() {
		if err := area.Release(); err != nil {
			log.WithError(err).WithField("dir", area.Dir()).Error("Failed to release staging area")
		}
	}()

	if batch.Intro != "" {
		p.notify(ctx, to, log, batch.Intro)
	}

	items := orderItems(batch)
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			p.finish(report, start)
			return report, err
		}

		result := p.processItem(ctx, i+1, item, batch, area, to, log)
		report.Results = append(report.Results, result)
		if result.Outcome == OutcomeDelivered {
			report.SentCount++
		} else {
			p.notify(ctx, to, log, skipNotice(result, p.validator.MaxSize))
		}

		if i < len(items)-1 {
			if err := p.cfg.Pacer.Pace(ctx, batch.Pace); err != nil {
				p.finish(report, start)
				return report, err
			}
		}
	}

	p.notify(ctx, to, log, summaryMessage(batch, report.SentCount, report.Total))
	p.finish(report, start)
	return report, nil
}

func (p *Pipeline) processItem(ctx context.Context, index int, item ContentItem, batch Batch, area *StagingArea, to Recipient, log logger.Logger) ItemResult {
	start := time.Now()
	result := ItemResult{Index: index, Item: item}

	file, err := p.fetcher.Fetch(ctx, item, area)
	if err == nil {
		_, err = p.validator.Validate(file, item.Kind)
	}
	if err == nil {
		cc := CaptionContext{Location: p.cfg.Location}
		if batch.Ordinal {
			cc.Title = batch.Title
			cc.Ordinal = index
		}
		err = p.deliverer.Deliver(ctx, to, file, item, cc)
	}

	if rmErr := area.Remove(file); rmErr != nil {
		log.WithError(rmErr).Warn("Failed to remove staged file")
	}
	if swErr := area.Sweep(); swErr != nil {
		log.WithError(swErr).Warn("Failed to sweep staging area")
	}

	result.Err = err
	result.Outcome = OutcomeOf(err)
	logger.LogDelivery(log, batch.Target, item.ID, string(item.Kind), string(result.Outcome), err)
	p.observer.ItemFinished(batch.Target, result.Outcome, time.Since(start))
	return result
}

func (p *Pipeline) notify(ctx context.Context, to Recipient, log logger.Logger, text string) {
	if err := to.Notify(ctx, text); err != nil {
		log.WithError(err).Warn("Failed to send chat message")
	}
}

func (p *Pipeline) finish(report *Report, start time.Time) {
	report.Duration = time.Since(start)
	logger.LogBatch(p.log, report.Target, report.SentCount, report.Total, report.Duration)
	p.observer.BatchFinished(report.Target, report.SentCount, report.Total, report.Duration)
}

func orderItems(batch Batch) []ContentItem {
	items := make([]ContentItem, len(batch.Items))
	copy(items, batch.Items)
	if batch.Chronological {
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].CapturedAt.Before(items[j].CapturedAt)
		})
	}
	return items
}

func emptyMessage(batch Batch) string {
	if batch.EmptyMessage != "" {
		return batch.EmptyMessage
	}
	return "ℹ️ Nothing to send."
}

func summaryMessage(batch Batch, sent, total int) string {
	if batch.Summary != nil {
		return batch.Summary(sent, total)
	}
	return fmt.Sprintf("📤 Total %d of %d items sent", sent, total)
}

func skipNotice(result ItemResult, limit int64) string {
	switch result.Outcome {
	case OutcomeFetchFailed:
		return fmt.Sprintf("⚠️ Item %d could not be downloaded and was skipped.", result.Index)
	case OutcomeKindMismatch:
		return fmt.Sprintf("⚠️ Item %d is not a valid %s file and was skipped.", result.Index, result.Item.Kind)
	case OutcomeTooLarge:
		var size int64
		var verr *ValidationError
		if errors.As(result.Err, &verr) {
			size = verr.Size
		}
		return fmt.Sprintf("⚠️ Item %d is too large (%s, limit %s) and was skipped.",
			result.Index, humanize.IBytes(uint64(size)), humanize.IBytes(uint64(limit)))
	default:
		return fmt.Sprintf("⚠️ Item %d could not be sent and was skipped.", result.Index)
	}
}

type nopObserver struct{}

func (nopObserver) ItemFinished(string, Outcome, time.Duration)   {}
func (nopObserver) BatchFinished(string, int, int, time.Duration) {}
