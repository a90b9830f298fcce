package media

import (
	"context"
	"fmt"
	"time"

	"igrelay/pkg/logger"
)

// TimestampLayout renders DD-MM-YYYY HH:MM
const TimestampLayout = "02-01-2006 15:04"

// Sender uploads staged files to a chat
type Sender interface {
	SendPhoto(ctx context.Context, path, caption string) error
	SendVideo(ctx context.Context, path, caption string) error
}

// CaptionContext carries the presentation settings for one item
type CaptionContext struct {
	Location *time.Location
	Title    string
	Ordinal  int
}

// FormatTimestamp renders t in loc (UTC when loc is nil)
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(TimestampLayout)
}

// Caption builds "<marker> <time>", or "[n]. 🌟 <title> - <marker> <time>"
// when both a title and an ordinal are set.
func Caption(item ContentItem, cc CaptionContext) string {
	stamp := fmt.Sprintf("%s %s", item.Kind.Marker(), FormatTimestamp(item.CapturedAt, cc.Location))
	if cc.Title != "" && cc.Ordinal > 0 {
		return fmt.Sprintf("[%d]. 🌟 %s - %s", cc.Ordinal, cc.Title, stamp)
	}
	return stamp
}

// Deliverer sends validated files with their caption
type Deliverer struct {
	log logger.Logger
}

// NewDeliverer creates a deliverer
func NewDeliverer(log logger.Logger) *Deliverer {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Deliverer{log: log}
}

// Deliver sends file as a video or photo depending on the item kind
func (d *Deliverer) Deliver(ctx context.Context, to Sender, file *StagedFile, item ContentItem, cc CaptionContext) error {
	caption := Caption(item, cc)

	var err error
	if item.Kind == KindVideo {
		err = to.SendVideo(ctx, file.Path, caption)
	} else {
		err = to.SendPhoto(ctx, file.Path, caption)
	}
	if err != nil {
		d.log.WithError(err).WarnWithFields("Transport rejected item", map[string]interface{}{
			"item_id": item.ID,
			"kind":    item.Kind,
			"size":    file.Size,
		})
		return &DeliveryError{ItemID: item.ID, Kind: item.Kind, Err: err}
	}
	return nil
}
