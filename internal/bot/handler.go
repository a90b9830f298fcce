package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/afero"

	"igrelay/internal/dispatch"
	"igrelay/pkg/instagram"
	"igrelay/pkg/logger"
	"igrelay/pkg/media"
	"igrelay/pkg/telegram"
)

// Profiles is the Instagram side of the bot
type Profiles interface {
	ResolveProfile(ctx context.Context, username string) (*instagram.Profile, error)
	Stories(ctx context.Context, profile *instagram.Profile) ([]media.ContentItem, error)
	Highlights(ctx context.Context, profile *instagram.Profile) ([]instagram.Highlight, error)
	HighlightItems(ctx context.Context, highlightID, owner string) ([]media.ContentItem, error)
	DownloadProfilePicture(ctx context.Context, profile *instagram.Profile, fs afero.Fs, dir string) (string, error)
}

// Messenger is the Telegram side of the bot
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendMenu(ctx context.Context, chatID int64, text string, rows [][]telegram.Button) error
	EditMenu(ctx context.Context, chatID int64, messageID int, text string, rows [][]telegram.Button) error
	SendDocument(ctx context.Context, chatID int64, path, caption string) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Tracker manages follower tracking subscriptions
type Tracker interface {
	Track(ctx context.Context, username string, chatID int64) (bool, error)
	Untrack(ctx context.Context, username string, chatID int64) (bool, error)
	Schedule() string
}

// Dispatcher runs chat jobs off the update loop
type Dispatcher interface {
	Submit(job dispatch.Job) error
}

// UpdateCounter counts incoming updates by kind
type UpdateCounter interface {
	UpdateReceived(kind string)
}

// RecipientFunc returns the batch recipient for a chat
type RecipientFunc func(chatID int64) media.Recipient

// Deps are the collaborators of a Handler. Tracker and Counter are optional.
type Deps struct {
	Profiles   Profiles
	Messenger  Messenger
	Pipeline   *media.Pipeline
	Recipient  RecipientFunc
	Dispatcher Dispatcher
	Tracker    Tracker
	Counter    UpdateCounter
}

// Config holds presentation settings
type Config struct {
	HighlightsPerPage int
	SessionTTL        time.Duration
}

// Handler turns Telegram updates into replies and media batches
type Handler struct {
	profiles   Profiles
	messenger  Messenger
	pipeline   *media.Pipeline
	recipient  RecipientFunc
	dispatcher Dispatcher
	tracker    Tracker
	counter    UpdateCounter
	sessions   *Sessions
	perPage    int
	logger     logger.Logger
}

// NewHandler creates a Handler
func NewHandler(deps Deps, cfg Config, log logger.Logger) *Handler {
	if cfg.HighlightsPerPage <= 0 {
		cfg.HighlightsPerPage = 10
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Handler{
		profiles:   deps.Profiles,
		messenger:  deps.Messenger,
		pipeline:   deps.Pipeline,
		recipient:  deps.Recipient,
		dispatcher: deps.Dispatcher,
		tracker:    deps.Tracker,
		counter:    deps.Counter,
		sessions:   NewSessions(cfg.SessionTTL),
		perPage:    cfg.HighlightsPerPage,
		logger:     log.WithField("component", "bot"),
	}
}

// Sessions returns the per-chat profile store
func (h *Handler) Sessions() *Sessions {
	return h.sessions
}

// HandleUpdate routes one update. Slow work is submitted to the dispatcher.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.ErrorWithFields("Update handler panicked", map[string]interface{}{
				"update_id": update.UpdateID,
				"panic":     fmt.Sprint(r),
				"stack":     string(debug.Stack()),
			})
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		h.count("callback")
		h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Chat != nil:
		if update.Message.IsCommand() {
			h.count("command")
			h.handleCommand(ctx, update.Message)
			return
		}
		h.count("message")
		h.handleText(ctx, update.Message)
	}
}

func (h *Handler) count(kind string) {
	if h.counter != nil {
		h.counter.UpdateReceived(kind)
	}
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		h.reply(ctx, chatID, msgUsage)
	case "start_tracking":
		h.startTracking(ctx, chatID)
	case "stop_tracking":
		h.stopTracking(ctx, chatID)
	default:
		h.reply(ctx, chatID, msgUnknownCommand)
	}
}

func (h *Handler) handleText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	username := ExtractUsername(msg.Text)
	if username == "" {
		h.reply(ctx, chatID, msgInvalidURL)
		return
	}

	h.sessions.Set(chatID, username)
	h.logger.DebugWithFields("Profile selected", map[string]interface{}{
		"chat_id":  chatID,
		"username": username,
	})
	if err := h.messenger.SendMenu(ctx, chatID, fmt.Sprintf(msgMenu, username), mainMenu()); err != nil {
		h.logger.WithError(err).Warn("Failed to send menu")
	}
}

func (h *Handler) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if err := h.messenger.AnswerCallback(ctx, cq.ID, ""); err != nil {
		h.logger.WithError(err).Debug("Failed to answer callback")
	}
	if cq.Message == nil || cq.Message.Chat == nil {
		return
	}
	chatID := cq.Message.Chat.ID

	username, ok := h.sessions.Get(chatID)
	if !ok {
		h.reply(ctx, chatID, msgSessionExpired)
		return
	}

	act, ok := parseCallback(cq.Data)
	if !ok {
		h.logger.WarnWithFields("Unknown callback data", map[string]interface{}{
			"chat_id": chatID,
			"data":    cq.Data,
		})
		h.reply(ctx, chatID, msgRequestFailed)
		return
	}

	messageID := cq.Message.MessageID
	h.submit(ctx, chatID, act.name()+":"+username, func(ctx context.Context) error {
		return h.perform(ctx, chatID, username, act, messageID)
	})
}

func (h *Handler) perform(ctx context.Context, chatID int64, username string, act action, messageID int) error {
	switch act.kind {
	case actionProfilePic:
		return h.sendProfilePicture(ctx, chatID, username)
	case actionStories:
		return h.sendStories(ctx, chatID, username)
	case actionHighlights:
		return h.sendHighlightMenu(ctx, chatID, username, 0, 0)
	case actionHighlightPage:
		return h.sendHighlightMenu(ctx, chatID, username, act.page, messageID)
	case actionHighlight:
		return h.sendHighlight(ctx, chatID, username, act.highlightID)
	case actionProfileInfo:
		return h.sendProfileInfo(ctx, chatID, username)
	default:
		return fmt.Errorf("unhandled action %d", act.kind)
	}
}

func (h *Handler) submit(ctx context.Context, chatID int64, name string, run func(ctx context.Context) error) {
	job := dispatch.Job{Name: name, ChatID: chatID, Run: run}
	if err := h.dispatcher.Submit(job); err != nil {
		h.logger.WithError(err).WarnWithFields("Job not accepted", map[string]interface{}{
			"chat_id": chatID,
			"job":     name,
		})
		h.reply(ctx, chatID, msgBusy)
	}
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if err := h.messenger.SendText(ctx, chatID, text); err != nil {
		h.logger.WithError(err).WarnWithFields("Failed to send reply", map[string]interface{}{
			"chat_id": chatID,
		})
	}
}

func (h *Handler) startTracking(ctx context.Context, chatID int64) {
	if h.tracker == nil {
		h.reply(ctx, chatID, msgTrackingDisabled)
		return
	}
	username, ok := h.sessions.Get(chatID)
	if !ok {
		h.reply(ctx, chatID, msgSendURLFirst)
		return
	}

	started, err := h.tracker.Track(ctx, username, chatID)
	switch {
	case err != nil:
		h.logger.WithError(err).Error("Failed to start tracking")
		h.reply(ctx, chatID, msgTrackingError)
	case !started:
		h.reply(ctx, chatID, msgTrackingActive)
	default:
		h.reply(ctx, chatID, fmt.Sprintf(msgTrackingStarted, username, describeSchedule(h.tracker.Schedule())))
	}
}

func (h *Handler) stopTracking(ctx context.Context, chatID int64) {
	if h.tracker == nil {
		h.reply(ctx, chatID, msgTrackingDisabled)
		return
	}
	username, ok := h.sessions.Get(chatID)
	if !ok {
		h.reply(ctx, chatID, msgSendURLFirst)
		return
	}

	stopped, err := h.tracker.Untrack(ctx, username, chatID)
	switch {
	case err != nil:
		h.logger.WithError(err).Error("Failed to stop tracking")
		h.reply(ctx, chatID, msgTrackingError)
	case !stopped:
		h.reply(ctx, chatID, msgTrackingNone)
	default:
		h.reply(ctx, chatID, fmt.Sprintf(msgTrackingStopped, username))
	}
}
