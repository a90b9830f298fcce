package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// Downloader retrieves an item's bytes into dir on fs
type Downloader interface {
	Download(ctx context.Context, item ContentItem, fs afero.Fs, dir string) error
}

// Fetcher stages one item at a time through a Downloader
type Fetcher struct {
	downloader Downloader
}

// NewFetcher creates a fetcher
func NewFetcher(d Downloader) *Fetcher {
	return &Fetcher{downloader: d}
}

// Fetch downloads item into area and returns the staged media file.
// The area must hold no other media when Fetch is called.
func (f *Fetcher) Fetch(ctx context.Context, item ContentItem, area *StagingArea) (*StagedFile, error) {
	if err := f.downloader.Download(ctx, item, area.Fs(), area.Dir()); err != nil {
		return nil, &FetchError{ItemID: item.ID, Err: err}
	}

	info, err := latestMedia(area.Fs(), area.Dir())
	if err != nil {
		return nil, &FetchError{ItemID: item.ID, Err: err}
	}

	path := filepath.Join(area.Dir(), info.Name())
	kind, _ := KindForExtension(filepath.Ext(info.Name()))

	mime, err := sniff(area.Fs(), path)
	if err != nil {
		return nil, &FetchError{ItemID: item.ID, Err: err}
	}

	return &StagedFile{
		Path:         path,
		Size:         info.Size(),
		DetectedKind: kind,
		MIME:         mime,
	}, nil
}

// latestMedia picks the most recently modified allow-listed file; equal
// times go to the lexically greatest name.
func latestMedia(fs afero.Fs, dir string) (os.FileInfo, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("read staging area: %w", err)
	}

	var best os.FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !IsMediaFile(entry.Name()) {
			continue
		}
		if best == nil ||
			entry.ModTime().After(best.ModTime()) ||
			(entry.ModTime().Equal(best.ModTime()) && entry.Name() > best.Name()) {
			best = entry
		}
	}

	if best == nil {
		return nil, ErrNoMedia
	}
	return best, nil
}

func sniff(fs afero.Fs, path string) (string, error) {
	file, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("open staged file: %w", err)
	}
	defer file.Close()

	mt, err := mimetype.DetectReader(file)
	if err != nil {
		return "", fmt.Errorf("detect content type: %w", err)
	}
	return mt.String(), nil
}
