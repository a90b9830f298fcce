package media

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

var (
	pngData  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	jpegData = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
	mp4Data  = []byte("\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp42isom\x00\x00\x00\x08free")
)

const stagingBase = "/tmp/igrelay"

type stagedFixture struct {
	name  string
	data  []byte
	mtime time.Time
}

// fakeDownloader writes the configured fixtures for each item ID
type fakeDownloader struct {
	t        *testing.T
	mu       sync.Mutex
	fixtures map[string][]stagedFixture
	errs     map[string]error
	calls    []string
	dirty    []string
}

func newFakeDownloader(t *testing.T) *fakeDownloader {
	return &fakeDownloader{
		t:        t,
		fixtures: make(map[string][]stagedFixture),
		errs:     make(map[string]error),
	}
}

func (d *fakeDownloader) Download(ctx context.Context, item ContentItem, fs afero.Fs, dir string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, item.ID)

	entries, err := afero.ReadDir(fs, dir)
	require.NoError(d.t, err)
	if len(entries) > 0 {
		d.dirty = append(d.dirty, item.ID)
	}

	if err := d.errs[item.ID]; err != nil {
		return err
	}
	for _, f := range d.fixtures[item.ID] {
		path := filepath.Join(dir, f.name)
		require.NoError(d.t, afero.WriteFile(fs, path, f.data, 0o644))
		if !f.mtime.IsZero() {
			require.NoError(d.t, fs.Chtimes(path, f.mtime, f.mtime))
		}
	}
	return nil
}

type sentMedia struct {
	kind    Kind
	path    string
	caption string
	existed bool
}

// fakeRecipient records everything the pipeline sends
type fakeRecipient struct {
	fs      afero.Fs
	mu      sync.Mutex
	media   []sentMedia
	notes   []string
	sendErr map[string]error
	onSend  func(path string)
}

func newFakeRecipient(fs afero.Fs) *fakeRecipient {
	return &fakeRecipient{fs: fs, sendErr: make(map[string]error)}
}

func (r *fakeRecipient) send(kind Kind, path, caption string) error {
	if r.onSend != nil {
		r.onSend(path)
	}
	exists, _ := afero.Exists(r.fs, path)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.media = append(r.media, sentMedia{kind: kind, path: path, caption: caption, existed: exists})
	return r.sendErr[caption]
}

func (r *fakeRecipient) SendPhoto(ctx context.Context, path, caption string) error {
	return r.send(KindImage, path, caption)
}

func (r *fakeRecipient) SendVideo(ctx context.Context, path, caption string) error {
	return r.send(KindVideo, path, caption)
}

func (r *fakeRecipient) Notify(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, text)
	return nil
}

type recordingObserver struct {
	outcomes []Outcome
	sent     int
	total    int
	batches  int
}

func (o *recordingObserver) ItemFinished(_ string, outcome Outcome, _ time.Duration) {
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) BatchFinished(_ string, sent, total int, _ time.Duration) {
	o.sent, o.total = sent, total
	o.batches++
}

func item(id string, kind Kind, at time.Time) ContentItem {
	return ContentItem{ID: id, Owner: "someprofile", CapturedAt: at, Kind: kind, URL: "https://cdn.example/" + id}
}

func requireNoStagingLeft(t *testing.T, fs afero.Fs) {
	t.Helper()
	exists, err := afero.DirExists(fs, stagingBase)
	require.NoError(t, err)
	if !exists {
		return
	}
	entries, err := afero.ReadDir(fs, stagingBase)
	require.NoError(t, err)
	require.Empty(t, entries, "staging areas left behind")
}
