package bot

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/afero"

	"igrelay/internal/dispatch"
	"igrelay/pkg/instagram"
	"igrelay/pkg/logger"
	"igrelay/pkg/media"
	"igrelay/pkg/telegram"
)

const (
	testChat    = int64(7)
	stagingBase = "/tmp/igrelay"
)

var jpegData = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")

type fakeProfiles struct {
	mu             sync.Mutex
	profile        *instagram.Profile
	resolveErr     error
	stories        []media.ContentItem
	storiesErr     error
	highlights     []instagram.Highlight
	highlightsErr  error
	highlightItems map[string][]media.ContentItem
	picErr         error
	resolved       []string
}

func (f *fakeProfiles) ResolveProfile(ctx context.Context, username string) (*instagram.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, username)
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	p := *f.profile
	p.Username = username
	return &p, nil
}

func (f *fakeProfiles) Stories(ctx context.Context, _ *instagram.Profile) ([]media.ContentItem, error) {
	return f.stories, f.storiesErr
}

func (f *fakeProfiles) Highlights(ctx context.Context, _ *instagram.Profile) ([]instagram.Highlight, error) {
	return f.highlights, f.highlightsErr
}

func (f *fakeProfiles) HighlightItems(ctx context.Context, highlightID, owner string) ([]media.ContentItem, error) {
	return f.highlightItems[highlightID], nil
}

func (f *fakeProfiles) DownloadProfilePicture(ctx context.Context, p *instagram.Profile, fs afero.Fs, dir string) (string, error) {
	if f.picErr != nil {
		return "", f.picErr
	}
	path := filepath.Join(dir, p.Username+"_profile_pic.jpg")
	return path, afero.WriteFile(fs, path, jpegData, 0o644)
}

// Download stages every item as a JPEG named after its ID
func (f *fakeProfiles) Download(ctx context.Context, item media.ContentItem, fs afero.Fs, dir string) error {
	return afero.WriteFile(fs, filepath.Join(dir, item.ID+".jpg"), jpegData, 0o644)
}

type menu struct {
	text      string
	rows      [][]telegram.Button
	messageID int
}

// fakeChat records everything sent to any chat, in order
type fakeChat struct {
	mu        sync.Mutex
	fs        afero.Fs
	events    []string
	menus     []menu
	answered  []string
	docExists bool
	editErr   error
}

func (c *fakeChat) record(e string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *fakeChat) Events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

func (c *fakeChat) SendText(ctx context.Context, chatID int64, text string) error {
	c.record("text:" + text)
	return nil
}

func (c *fakeChat) SendMenu(ctx context.Context, chatID int64, text string, rows [][]telegram.Button) error {
	c.mu.Lock()
	c.menus = append(c.menus, menu{text: text, rows: rows})
	c.mu.Unlock()
	c.record("menu:" + text)
	return nil
}

func (c *fakeChat) EditMenu(ctx context.Context, chatID int64, messageID int, text string, rows [][]telegram.Button) error {
	if c.editErr != nil {
		return c.editErr
	}
	c.mu.Lock()
	c.menus = append(c.menus, menu{text: text, rows: rows, messageID: messageID})
	c.mu.Unlock()
	c.record("edit:" + text)
	return nil
}

func (c *fakeChat) SendDocument(ctx context.Context, chatID int64, path, caption string) error {
	ok, _ := afero.Exists(c.fs, path)
	c.mu.Lock()
	c.docExists = ok
	c.mu.Unlock()
	c.record("document:" + filepath.Base(path) + ":" + caption)
	return nil
}

func (c *fakeChat) AnswerCallback(ctx context.Context, callbackID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answered = append(c.answered, callbackID)
	return nil
}

// chatRecipient adapts fakeChat to media.Recipient
type chatRecipient struct {
	chat *fakeChat
	id   int64
}

func (r chatRecipient) Notify(ctx context.Context, text string) error {
	return r.chat.SendText(ctx, r.id, text)
}

func (r chatRecipient) SendPhoto(ctx context.Context, path, caption string) error {
	r.chat.record("photo:" + caption)
	return nil
}

func (r chatRecipient) SendVideo(ctx context.Context, path, caption string) error {
	r.chat.record("video:" + caption)
	return nil
}

// inlineDispatcher runs jobs synchronously
type inlineDispatcher struct {
	full bool
	jobs []string
	errs []error
}

func (d *inlineDispatcher) Submit(job dispatch.Job) error {
	if d.full {
		return dispatch.ErrQueueFull
	}
	d.jobs = append(d.jobs, job.Name)
	d.errs = append(d.errs, job.Run(context.Background()))
	return nil
}

type fakeTracker struct {
	active map[string]bool
}

func (t *fakeTracker) key(u string, c int64) string { return fmt.Sprintf("%s_%d", u, c) }

func (t *fakeTracker) Track(ctx context.Context, username string, chatID int64) (bool, error) {
	if t.active[t.key(username, chatID)] {
		return false, nil
	}
	t.active[t.key(username, chatID)] = true
	return true, nil
}

func (t *fakeTracker) Untrack(ctx context.Context, username string, chatID int64) (bool, error) {
	if !t.active[t.key(username, chatID)] {
		return false, nil
	}
	delete(t.active, t.key(username, chatID))
	return true, nil
}

func (t *fakeTracker) Schedule() string { return "@every 1h" }

type fixture struct {
	handler    *Handler
	profiles   *fakeProfiles
	chat       *fakeChat
	dispatcher *inlineDispatcher
	tracker    *fakeTracker
	fs         afero.Fs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	profiles := &fakeProfiles{
		profile:        &instagram.Profile{ID: "1", FullName: "Some Profile"},
		highlightItems: map[string][]media.ContentItem{},
	}
	chat := &fakeChat{fs: fs}
	dispatcher := &inlineDispatcher{}
	tracker := &fakeTracker{active: map[string]bool{}}

	pipeline := media.NewPipeline(fs, profiles, media.PipelineConfig{
		StagingBase: stagingBase,
		Location:    time.UTC,
		Pacer:       &media.Pacer{},
	})

	h := NewHandler(Deps{
		Profiles:   profiles,
		Messenger:  chat,
		Pipeline:   pipeline,
		Recipient:  func(id int64) media.Recipient { return chatRecipient{chat: chat, id: id} },
		Dispatcher: dispatcher,
		Tracker:    tracker,
	}, Config{HighlightsPerPage: 2}, logger.NewNopLogger())

	return &fixture{handler: h, profiles: profiles, chat: chat, dispatcher: dispatcher, tracker: tracker, fs: fs}
}

func textUpdate(text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 1,
		Chat:      &tgbotapi.Chat{ID: testChat},
		Text:      text,
	}
	if len(text) > 0 && text[0] == '/' {
		end := len(text)
		for i, r := range text {
			if r == ' ' {
				end = i
				break
			}
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return tgbotapi.Update{Message: msg}
}

func callbackUpdate(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-" + data,
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: 42,
			Chat:      &tgbotapi.Chat{ID: testChat},
		},
	}}
}

func stagingEmpty(t *testing.T, fs afero.Fs) bool {
	t.Helper()
	entries, err := afero.ReadDir(fs, stagingBase)
	if err != nil {
		return true
	}
	return len(entries) == 0
}

func item(id string, minute int) media.ContentItem {
	return media.ContentItem{
		ID:         id,
		Owner:      "someprofile",
		CapturedAt: time.Date(2024, 1, 1, 10, minute, 0, 0, time.UTC),
		Kind:       media.KindImage,
		URL:        "https://cdn.example/" + id + ".jpg",
	}
}
