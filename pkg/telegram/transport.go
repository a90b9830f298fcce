package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"igrelay/pkg/config"
	errs "igrelay/pkg/errors"
	"igrelay/pkg/logger"
	"igrelay/pkg/retry"
)

const (
	// DefaultAPIEndpoint is the Bot API URL template (token, method)
	DefaultAPIEndpoint = tgbotapi.APIEndpoint

	defaultSendTimeout = 60 * time.Second
	defaultPollTimeout = 60

	// chat limiters are dropped wholesale once this many chats are tracked
	maxChatLimiters = 10000
)

// Button is one inline keyboard button
type Button struct {
	Text string
	Data string
}

// Options configures a Transport
type Options struct {
	Token                 string
	APIEndpoint           string
	SendTimeout           time.Duration
	PollTimeout           int
	MessagesPerSecond     float64
	ChatMessagesPerSecond float64
	Debug                 bool
	HTTPClient            *http.Client
}

// Transport sends messages and media to Telegram chats. Sends are throttled
// by a global limiter and a per-chat limiter. Every request is issued under
// the caller's context and SendTimeout, so a timed out or cancelled upload
// is aborted on the wire rather than left running.
type Transport struct {
	api         *tgbotapi.BotAPI
	client      *http.Client
	fs          afero.Fs
	log         logger.Logger
	sendTimeout time.Duration
	pollTimeout int

	global   *rate.Limiter
	chatRate rate.Limit
	chatMu   sync.RWMutex
	chats    map[int64]*rate.Limiter
}

// New connects to the Bot API and verifies the token with getMe. Media
// files are read from fs.
func New(opts Options, fs afero.Fs, log logger.Logger) (*Transport, error) {
	if opts.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	if opts.APIEndpoint == "" {
		opts.APIEndpoint = DefaultAPIEndpoint
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	if opts.MessagesPerSecond <= 0 {
		opts.MessagesPerSecond = 30
	}
	if opts.ChatMessagesPerSecond <= 0 {
		opts.ChatMessagesPerSecond = 1
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	client := opts.HTTPClient
	if client == nil {
		// long polls hold the connection for PollTimeout seconds
		client = &http.Client{Timeout: opts.SendTimeout + time.Duration(opts.PollTimeout)*time.Second}
	}

	api, err := tgbotapi.NewBotAPIWithClient(opts.Token, opts.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	api.Debug = opts.Debug

	return &Transport{
		api:         api,
		client:      client,
		fs:          fs,
		log:         log.WithField("component", "telegram"),
		sendTimeout: opts.SendTimeout,
		pollTimeout: opts.PollTimeout,
		global:      rate.NewLimiter(rate.Limit(opts.MessagesPerSecond), burst(opts.MessagesPerSecond)),
		chatRate:    rate.Limit(opts.ChatMessagesPerSecond),
		chats:       make(map[int64]*rate.Limiter),
	}, nil
}

// NewFromConfig creates a Transport from the telegram configuration section
func NewFromConfig(cfg config.TelegramConfig, fs afero.Fs, log logger.Logger) (*Transport, error) {
	return New(Options{
		Token:                 cfg.Token,
		APIEndpoint:           cfg.APIEndpoint,
		SendTimeout:           cfg.SendTimeout,
		PollTimeout:           cfg.PollTimeout,
		MessagesPerSecond:     cfg.MessagesPerSecond,
		ChatMessagesPerSecond: cfg.ChatMessagesPerSecond,
		Debug:                 cfg.Debug,
	}, fs, log)
}

func burst(perSecond float64) int {
	if perSecond < 1 {
		return 1
	}
	return int(perSecond)
}

// Username returns the bot's username as reported by getMe
func (t *Transport) Username() string {
	return t.api.Self.UserName
}

// SendText sends a plain text message
func (t *Transport) SendText(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	_, err := t.send(ctx, chatID, msg)
	return err
}

// SendMenu sends text with an inline keyboard, one slice per row
func (t *Transport) SendMenu(ctx context.Context, chatID int64, text string, rows [][]Button) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard(rows)
	_, err := t.send(ctx, chatID, msg)
	return err
}

// EditMenu replaces the text and keyboard of a message sent earlier
func (t *Transport) EditMenu(ctx context.Context, chatID int64, messageID int, text string, rows [][]Button) error {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, keyboard(rows))
	_, err := t.send(ctx, chatID, edit)
	return err
}

// SendPhoto uploads an image file with a caption
func (t *Transport) SendPhoto(ctx context.Context, chatID int64, path, caption string) error {
	return t.upload(ctx, chatID, path, func(file tgbotapi.RequestFileData) tgbotapi.Chattable {
		photo := tgbotapi.NewPhoto(chatID, file)
		photo.Caption = caption
		return photo
	})
}

// SendVideo uploads a video file with a caption
func (t *Transport) SendVideo(ctx context.Context, chatID int64, path, caption string) error {
	return t.upload(ctx, chatID, path, func(file tgbotapi.RequestFileData) tgbotapi.Chattable {
		video := tgbotapi.NewVideo(chatID, file)
		video.Caption = caption
		video.SupportsStreaming = true
		return video
	})
}

// SendDocument uploads a file as a document, without recompression
func (t *Transport) SendDocument(ctx context.Context, chatID int64, path, caption string) error {
	return t.upload(ctx, chatID, path, func(file tgbotapi.RequestFileData) tgbotapi.Chattable {
		doc := tgbotapi.NewDocument(chatID, file)
		doc.Caption = caption
		return doc
	})
}

// AnswerCallback acknowledges an inline button press
func (t *Transport) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := t.global.Wait(ctx); err != nil {
		return err
	}
	_, err := t.call(ctx, func(api *tgbotapi.BotAPI) (tgbotapi.Message, error) {
		_, err := api.Request(tgbotapi.NewCallback(callbackID, text))
		return tgbotapi.Message{}, err
	})
	return err
}

// Updates starts long polling and returns the update channel. Polling stops
// and the channel is closed when ctx is done.
func (t *Transport) Updates(ctx context.Context) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.pollTimeout
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := t.api.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		t.api.StopReceivingUpdates()
	}()

	t.log.InfoWithFields("Polling for updates", map[string]interface{}{
		"bot":          t.api.Self.UserName,
		"poll_timeout": t.pollTimeout,
	})
	return updates
}

func keyboard(rows [][]Button) tgbotapi.InlineKeyboardMarkup {
	markup := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		markup = append(markup, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(markup...)
}

func (t *Transport) upload(ctx context.Context, chatID int64, path string, build func(tgbotapi.RequestFileData) tgbotapi.Chattable) error {
	if _, err := t.fs.Stat(path); err != nil {
		return fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}

	// The file is opened per attempt; a rate-limited retry re-reads it.
	send := func(api *tgbotapi.BotAPI) (tgbotapi.Message, error) {
		f, err := t.fs.Open(path)
		if err != nil {
			return tgbotapi.Message{}, err
		}
		defer f.Close()
		return api.Send(build(tgbotapi.FileReader{Name: filepath.Base(path), Reader: f}))
	}

	if err := t.wait(ctx, chatID); err != nil {
		return err
	}
	_, err := t.call(ctx, send)
	return err
}

func (t *Transport) send(ctx context.Context, chatID int64, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := t.wait(ctx, chatID); err != nil {
		return tgbotapi.Message{}, err
	}
	return t.call(ctx, func(api *tgbotapi.BotAPI) (tgbotapi.Message, error) {
		return api.Send(c)
	})
}

// call runs one Bot API request under SendTimeout. A 429 with a retry_after
// hint is retried once after the hinted delay.
func (t *Transport) call(ctx context.Context, fn func(*tgbotapi.BotAPI) (tgbotapi.Message, error)) (tgbotapi.Message, error) {
	msg, err := t.attempt(ctx, fn)
	if err == nil {
		return msg, nil
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests && apiErr.RetryAfter > 0 {
		delay := time.Duration(apiErr.RetryAfter) * time.Second
		logger.LogRateLimit(t.log, "bot_api", delay)
		if werr := retry.Wait(ctx, delay); werr != nil {
			return tgbotapi.Message{}, werr
		}
		msg, err = t.attempt(ctx, fn)
	}
	if err != nil {
		return tgbotapi.Message{}, classify(err)
	}
	return msg, nil
}

func (t *Transport) attempt(ctx context.Context, fn func(*tgbotapi.BotAPI) (tgbotapi.Message, error)) (tgbotapi.Message, error) {
	sendCtx, cancel := context.WithTimeout(ctx, t.sendTimeout)
	defer cancel()

	msg, err := fn(t.bound(sendCtx))
	if err == nil {
		return msg, nil
	}
	if cerr := ctx.Err(); cerr != nil {
		return tgbotapi.Message{}, cerr
	}
	if errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
		return tgbotapi.Message{}, errs.New(errs.ErrorTypeNetwork, 0, "telegram: send timed out after %s", t.sendTimeout)
	}
	return tgbotapi.Message{}, err
}

// bound returns a copy of the bot whose requests carry ctx
func (t *Transport) bound(ctx context.Context) *tgbotapi.BotAPI {
	api := *t.api
	api.Client = contextClient{ctx: ctx, client: t.client}
	return &api
}

// contextClient attaches ctx to every request it issues
type contextClient struct {
	ctx    context.Context
	client *http.Client
}

func (c contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}

func classify(err error) error {
	var typed *errs.Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return errs.New(errs.FromStatusCode(apiErr.Code), apiErr.Code, "telegram: %s", apiErr.Message)
	}
	return errs.New(errs.ErrorTypeNetwork, 0, "telegram: %v", err)
}

func (t *Transport) wait(ctx context.Context, chatID int64) error {
	if err := t.global.Wait(ctx); err != nil {
		return err
	}
	return t.chatLimiter(chatID).Wait(ctx)
}

func (t *Transport) chatLimiter(chatID int64) *rate.Limiter {
	t.chatMu.RLock()
	l, ok := t.chats[chatID]
	t.chatMu.RUnlock()
	if ok {
		return l
	}

	t.chatMu.Lock()
	defer t.chatMu.Unlock()
	if l, ok := t.chats[chatID]; ok {
		return l
	}
	if len(t.chats) >= maxChatLimiters {
		t.chats = make(map[int64]*rate.Limiter)
	}
	l = rate.NewLimiter(t.chatRate, 1)
	t.chats[chatID] = l
	return l
}
