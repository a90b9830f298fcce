package media

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igrelay/pkg/logger"
)

func newTestPipeline(fs afero.Fs, d Downloader, opts ...Option) *Pipeline {
	return NewPipeline(fs, d, PipelineConfig{
		StagingBase: stagingBase,
		Location:    jakarta,
		Pacer:       &Pacer{},
	}, opts...)
}

func storyBatch(items ...ContentItem) Batch {
	return Batch{
		Target:        "someprofile",
		Items:         items,
		Pace:          PaceStory,
		Chronological: true,
		EmptyMessage:  "no stories",
		Summary: func(sent, total int) string {
			return fmt.Sprintf("📤 Total %d stories sent", sent)
		},
	}
}

func TestRunDeliversEveryItem(t *testing.T) {
	fs := afero.NewMemMapFs()
	d := newFakeDownloader(t)
	d.fixtures["v"] = []stagedFixture{{name: "v.mp4", data: mp4Data}, {name: "v.json", data: []byte("{}")}}
	d.fixtures["p"] = []stagedFixture{{name: "p.jpg", data: jpegData}}
	r := newFakeRecipient(fs)

	at := time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)
	report, err := newTestPipeline(fs, d).Run(context.Background(),
		storyBatch(item("v", KindVideo, at), item("p", KindImage, at.Add(time.Minute))), r)

	require.NoError(t, err)
	assert.Equal(t, 2, report.SentCount)
	assert.Equal(t, 2, report.Total)
	require.Len(t, r.media, 2)
	assert.Equal(t, "📹 02-01-2024 06:30", r.media[0].caption)
	assert.Equal(t, "📸 02-01-2024 06:31", r.media[1].caption)
	assert.True(t, r.media[0].existed, "file must be staged while sending")
	assert.Equal(t, []string{"📤 Total 2 stories sent"}, r.notes)
	assert.Empty(t, d.dirty, "area must be empty before each fetch")
	requireNoStagingLeft(t, fs)
}

func TestRunFetchFailureOnSecondItem(t *testing.T) {
	fs := afero.NewMemMapFs()
	d := newFakeDownloader(t)
	d.fixtures["1"] = []stagedFixture{{name: "1.jpg", data: jpegData}}
	d.errs["2"] = errors.New("connection reset")
	d.fixtures["3"] = []stagedFixture{{name: "3.jpg", data: jpegData}}
	r := newFakeRecipient(fs)

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	report, err := newTestPipeline(fs, d).Run(context.Background(), storyBatch(
		item("1", KindImage, at),
		item("2", KindImage, at.Add(time.Second)),
		item("3", KindImage, at.Add(2*time.Second)),
	), r)

	require.NoError(t, err)
	assert.Equal(t, 2, report.SentCount)
	require.Len(t, report.Results, 3)
	assert.Equal(t, OutcomeFetchFailed, report.Results[1].Outcome)
	require.Len(t, r.notes, 2)
	assert.Contains(t, r.notes[0], "Item 2")
	assert.NotContains(t, r.notes[0], "connection reset")
	assert.Equal(t, "📤 Total 2 stories sent", r.notes[1])
	requireNoStagingLeft(t, fs)
}

func TestRunZeroItems(t *testing.T) {
	fs := afero.NewMemMapFs()
	d := newFakeDownloader(t)
	r := newFakeRecipient(fs)
	obs := &recordingObserver{}

	report, err := newTestPipeline(fs, d, WithObserver(obs)).Run(context.Background(), storyBatch(), r)

	require.NoError(t, err)
	assert.Equal(t, 0, report.SentCount)
	assert.Equal(t, []string{"no stories"}, r.notes)
	assert.Empty(t, d.calls)
	assert.Empty(t, r.media)
	assert.Equal(t, 1, obs.batches)

	exists, err := afero.DirExists(fs, stagingBase)
	require.NoError(t, err)
	assert.False(t, exists, "no staging area for an empty batch")
}

func TestRunKindMismatchAndTooLarge(t *testing.T) {
	fs := afero.NewMemMapFs()
	d := newFakeDownloader(t)
	d.fixtures["video-as-image"] = []stagedFixture{{name: "x.jpg", data: jpegData}}
	d.fixtures["huge"] = []stagedFixture{{name: "h.mp4", data: append(append([]byte{}, mp4Data...), make([]byte, 2048)...)}}
	d.fixtures["ok"] = []stagedFixture{{name: "ok.mp4", data: mp4Data}}
	r := newFakeRecipient(fs)
	obs := &recordingObserver{}

	p := NewPipeline(fs, d, PipelineConfig{StagingBase: stagingBase, MaxFileSize: 1024, Pacer: &Pacer{}}, WithObserver(obs))
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	batch := storyBatch(item("video-as-image", KindVideo, at), item("huge", KindVideo, at), item("ok", KindVideo, at))
	report, err := p.Run(context.Background(), batch, r)

	require.NoError(t, err)
	assert.Equal(t, 1, report.SentCount)
	assert.Equal(t, []Outcome{OutcomeKindMismatch, OutcomeTooLarge, OutcomeDelivered}, obs.outcomes)
	require.Len(t, r.notes, 3)
	assert.Contains(t, r.notes[0], "not a valid video")
	assert.Contains(t, r.notes[1], "too large")
	assert.Contains(t, r.notes[1], "2.0 KiB")
	assert.Contains(t, r.notes[1], "1.0 KiB")
	assert.Equal(t, 1, obs.sent)
	assert.Equal(t, 3, obs.total)
	requireNoStagingLeft(t, fs)
}

func TestRunDeliveryFailureContinues(t *testing.T) {
	fs := afero.NewMemMapFs()
	d := newFakeDownloader(t)
	d.fixtures["1"] = []stagedFixture{{name: "1.jpg", data: jpegData}}
	d.fixtures["2"] = []stagedFixture{{name: "2.jpg", data: jpegData}}
	r := newFakeRecipient(fs)

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.sendErr[Caption(item("1", KindImage, at), CaptionContext{Location: jakarta})] = errors.New("bad request")

	log := logger.NewTestLogger()
	report, err := newTestPipeline(fs, d, WithLogger(log)).Run(context.Background(),
		storyBatch(item("1", KindImage, at), item("2", KindImage, at.Add(time.Minute))), r)

	require.NoError(t, err)
	assert.Equal(t, 1, report.SentCount)
	assert.Equal(t, OutcomeDeliveryFailed, report.Results[0].Outcome)
	assert.Contains(t, r.notes[0], "could not be sent")
	assert.True(t, log.HasMessage("Item skipped"))
	assert.True(t, log.HasMessage("Batch finished"))
	requireNoStagingLeft(t, fs)
}

func TestRunOrdersChronologicallyWithOrdinals(t *testing.T) {
	fs := afero.NewMemMapFs()
	d := newFakeDownloader(t)
	for _, id := range []string{"late", "early", "mid"} {
		d.fixtures[id] = []stagedFixture{{name: id + ".png", data: pngData}}
	}
	r := newFakeRecipient(fs)

	at := time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC)
	batch := Batch{
		Target:        "someprofile",
		Items:         []ContentItem{item("late", KindImage, at.Add(2*time.Hour)), item("early", KindImage, at), item("mid", KindImage, at.Add(time.Hour))},
		Pace:          PaceHighlight,
		Chronological: true,
		Title:         "Trips",
		Ordinal:       true,
		Intro:         "sending",
	}
	report, err := newTestPipeline(fs, d).Run(context.Background(), batch, r)

	require.NoError(t, err)
	assert.Equal(t, 3, report.SentCount)
	assert.Equal(t, []string{"early", "mid", "late"}, d.calls)
	require.Len(t, r.media, 3)
	assert.Equal(t, "[1]. 🌟 Trips - 📸 10-03-2024 08:00", r.media[0].caption)
	assert.Equal(t, "[3]. 🌟 Trips - 📸 10-03-2024 10:00", r.media[2].caption)
	assert.Equal(t, "sending", r.notes[0])
	assert.Equal(t, "📤 Total 3 of 3 items sent", r.notes[len(r.notes)-1])
}

func TestRunKeepsOrderWhenNotChronological(t *testing.T) {
	fs := afero.NewMemMapFs()
	d := newFakeDownloader(t)
	d.fixtures["b"] = []stagedFixture{{name: "b.jpg", data: jpegData}}
	d.fixtures["a"] = []stagedFixture{{name: "a.jpg", data: jpegData}}

	at := time.Now()
	batch := Batch{Target: "x", Items: []ContentItem{item("b", KindImage, at), item("a", KindImage, at.Add(-time.Hour))}}
	_, err := newTestPipeline(fs, d).Run(context.Background(), batch, newFakeRecipient(fs))

	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, d.calls)
}

func TestRunCancelledReleasesArea(t *testing.T) {
	fs := afero.NewMemMapFs()
	d := newFakeDownloader(t)
	d.fixtures["1"] = []stagedFixture{{name: "1.jpg", data: jpegData}}
	d.fixtures["2"] = []stagedFixture{{name: "2.jpg", data: jpegData}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newFakeRecipient(fs)
	r.onSend = func(string) { cancel() }

	p := NewPipeline(fs, d, PipelineConfig{StagingBase: stagingBase, Pacer: &Pacer{StoryDelay: time.Hour}})
	at := time.Now()
	report, err := p.Run(ctx, storyBatch(item("1", KindImage, at), item("2", KindImage, at.Add(time.Second))), r)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.SentCount)
	assert.Equal(t, []string{"1"}, d.calls)
	requireNoStagingLeft(t, fs)
}

func TestRunPanicReleasesArea(t *testing.T) {
	fs := afero.NewMemMapFs()
	d := newFakeDownloader(t)
	d.fixtures["1"] = []stagedFixture{{name: "1.jpg", data: jpegData}}
	r := newFakeRecipient(fs)
	r.onSend = func(string) { panic("transport exploded") }

	assert.Panics(t, func() {
		_, _ = newTestPipeline(fs, d).Run(context.Background(), storyBatch(item("1", KindImage, time.Now())), r)
	})
	requireNoStagingLeft(t, fs)
}

func TestRunStagingSetupFailure(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	d := newFakeDownloader(t)
	r := newFakeRecipient(fs)

	report, err := newTestPipeline(fs, d).Run(context.Background(), storyBatch(item("1", KindImage, time.Now())), r)

	assert.Error(t, err)
	assert.Equal(t, 0, report.SentCount)
	require.Len(t, r.notes, 1)
	assert.Contains(t, r.notes[0], "Could not prepare")
	assert.Empty(t, d.calls)
}

func TestRunSentCountBounds(t *testing.T) {
	fs := afero.NewMemMapFs()
	d := newFakeDownloader(t)
	var items []ContentItem
	at := time.Now()
	for i := 0; i < 6; i++ {
		id := fmt.Sprint(i)
		if i%2 == 0 {
			d.fixtures[id] = []stagedFixture{{name: id + ".mp4", data: mp4Data}}
		} else {
			d.errs[id] = errors.New("gone")
		}
		items = append(items, item(id, KindVideo, at.Add(time.Duration(i)*time.Second)))
	}

	report, err := newTestPipeline(fs, d).Run(context.Background(), storyBatch(items...), newFakeRecipient(fs))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, report.SentCount, 0)
	assert.LessOrEqual(t, report.SentCount, len(items))
	assert.Equal(t, 3, report.SentCount)
	requireNoStagingLeft(t, fs)
}
