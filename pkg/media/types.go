package media

import (
	"path/filepath"
	"strings"
	"time"
)

// Kind is the media type of a content item
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Marker returns the emoji used in captions for the kind
func (k Kind) Marker() string {
	if k == KindVideo {
		return "📹"
	}
	return "📸"
}

// DefaultMaxFileSize is the largest file the chat transport accepts (50 MiB)
const DefaultMaxFileSize int64 = 50 * 1024 * 1024

// ContentItem is one story or highlight entry as enumerated by the scraper.
// URL is only meaningful to the Downloader.
type ContentItem struct {
	ID         string    `json:"id"`
	Owner      string    `json:"owner"`
	CapturedAt time.Time `json:"captured_at"`
	Kind       Kind      `json:"kind"`
	URL        string    `json:"url"`
}

// StagedFile is a downloaded item waiting in a StagingArea
type StagedFile struct {
	Path         string
	Size         int64
	DetectedKind Kind
	MIME         string
}

var extensionKinds = map[string]Kind{
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".mp4":  KindVideo,
	".mov":  KindVideo,
}

// KindForExtension maps a file extension (with dot, any case) to its kind
func KindForExtension(ext string) (Kind, bool) {
	k, ok := extensionKinds[strings.ToLower(ext)]
	return k, ok
}

// IsMediaFile reports whether name carries an allow-listed extension
func IsMediaFile(name string) bool {
	_, ok := KindForExtension(filepath.Ext(name))
	return ok
}

// KindForMIME maps image/* and video/* content types to a kind
func KindForMIME(mime string) (Kind, bool) {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return KindImage, true
	case strings.HasPrefix(mime, "video/"):
		return KindVideo, true
	default:
		return "", false
	}
}
