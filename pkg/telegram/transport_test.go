package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "igrelay/pkg/errors"
	"igrelay/pkg/logger"
)

const okMessage = `{"ok":true,"result":{"message_id":5,"date":0,"chat":{"id":7,"type":"private"}}}`

type apiCall struct {
	Method string
	Fields map[string]string
	File   string
	Data   []byte
}

// fakeBotAPI answers getMe and records every other call. With hold set, a
// call is only recorded if the client is still connected after hold.
type fakeBotAPI struct {
	mu      sync.Mutex
	calls   []apiCall
	hold    time.Duration
	respond func(method string, n int) (int, string)
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	w.Header().Set("Content-Type", "application/json")
	if method == "getMe" {
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"t","username":"testbot"}}`)
		return
	}

	call := apiCall{Method: method, Fields: map[string]string{}}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(32 << 20); err == nil {
			for k, v := range r.MultipartForm.Value {
				call.Fields[k] = v[0]
			}
			for k, files := range r.MultipartForm.File {
				call.File = k
				if fh, err := files[0].Open(); err == nil {
					call.Data, _ = io.ReadAll(fh)
					fh.Close()
				}
			}
		}
	} else if err := r.ParseForm(); err == nil {
		for k, v := range r.PostForm {
			call.Fields[k] = v[0]
		}
	}

	if f.hold > 0 {
		select {
		case <-time.After(f.hold):
		case <-r.Context().Done():
			return
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	n := len(f.calls)
	f.mu.Unlock()

	status, body := http.StatusOK, okMessage
	if f.respond != nil {
		status, body = f.respond(method, n)
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakeBotAPI) Calls() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiCall(nil), f.calls...)
}

func newTestTransport(t *testing.T, api *fakeBotAPI, fs afero.Fs) *Transport {
	t.Helper()
	return newTimedTransport(t, api, fs, 2*time.Second)
}

func newTimedTransport(t *testing.T, api *fakeBotAPI, fs afero.Fs, sendTimeout time.Duration) *Transport {
	t.Helper()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	tr, err := New(Options{
		Token:                 "123:abc",
		APIEndpoint:           server.URL + "/bot%s/%s",
		SendTimeout:           sendTimeout,
		MessagesPerSecond:     1000,
		ChatMessagesPerSecond: 1000,
		HTTPClient:            server.Client(),
	}, fs, logger.NewTestLogger())
	require.NoError(t, err)
	return tr
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New(Options{}, afero.NewMemMapFs(), nil)
	assert.Error(t, err)
}

func TestNewReadsBotIdentity(t *testing.T) {
	tr := newTestTransport(t, &fakeBotAPI{}, afero.NewMemMapFs())
	assert.Equal(t, "testbot", tr.Username())
}

func TestSendText(t *testing.T) {
	api := &fakeBotAPI{}
	tr := newTestTransport(t, api, afero.NewMemMapFs())

	require.NoError(t, tr.SendText(context.Background(), 7, "hello"))

	calls := api.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sendMessage", calls[0].Method)
	assert.Equal(t, "7", calls[0].Fields["chat_id"])
	assert.Equal(t, "hello", calls[0].Fields["text"])
}

func TestSendMenu(t *testing.T) {
	api := &fakeBotAPI{}
	tr := newTestTransport(t, api, afero.NewMemMapFs())

	rows := [][]Button{
		{{Text: "Stories", Data: "story"}},
		{{Text: "Next", Data: "highlights_next_1"}},
	}
	require.NoError(t, tr.SendMenu(context.Background(), 7, "Pick one", rows))

	calls := api.Calls()
	require.Len(t, calls, 1)
	markup := calls[0].Fields["reply_markup"]
	assert.Contains(t, markup, `"callback_data":"story"`)
	assert.Contains(t, markup, `"callback_data":"highlights_next_1"`)
}

func TestEditMenu(t *testing.T) {
	api := &fakeBotAPI{}
	tr := newTestTransport(t, api, afero.NewMemMapFs())

	require.NoError(t, tr.EditMenu(context.Background(), 7, 5, "Page 2", [][]Button{{{Text: "Back", Data: "highlights_prev_0"}}}))

	calls := api.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "editMessageText", calls[0].Method)
	assert.Equal(t, "5", calls[0].Fields["message_id"])
}

func TestUploads(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/stage/a.jpg", []byte("jpeg-bytes"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/stage/b.mp4", []byte("mp4-bytes"), 0o644))

	api := &fakeBotAPI{}
	tr := newTestTransport(t, api, fs)
	ctx := context.Background()

	require.NoError(t, tr.SendPhoto(ctx, 7, "/stage/a.jpg", "photo caption"))
	require.NoError(t, tr.SendVideo(ctx, 7, "/stage/b.mp4", "video caption"))
	require.NoError(t, tr.SendDocument(ctx, 7, "/stage/a.jpg", "doc caption"))

	calls := api.Calls()
	require.Len(t, calls, 3)

	assert.Equal(t, "sendPhoto", calls[0].Method)
	assert.Equal(t, "photo", calls[0].File)
	assert.Equal(t, "photo caption", calls[0].Fields["caption"])
	assert.Equal(t, []byte("jpeg-bytes"), calls[0].Data)

	assert.Equal(t, "sendVideo", calls[1].Method)
	assert.Equal(t, "video", calls[1].File)
	assert.Equal(t, []byte("mp4-bytes"), calls[1].Data)

	assert.Equal(t, "sendDocument", calls[2].Method)
	assert.Equal(t, "document", calls[2].File)
}

func TestUploadMissingFile(t *testing.T) {
	api := &fakeBotAPI{}
	tr := newTestTransport(t, api, afero.NewMemMapFs())

	err := tr.SendPhoto(context.Background(), 7, "/stage/missing.jpg", "")
	assert.Error(t, err)
	assert.Empty(t, api.Calls())
}

func TestRejectedSendIsTyped(t *testing.T) {
	api := &fakeBotAPI{respond: func(string, int) (int, string) {
		return http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`
	}}
	tr := newTestTransport(t, api, afero.NewMemMapFs())

	err := tr.SendText(context.Background(), 7, "hello")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeBadRequest))
	assert.Contains(t, err.Error(), "chat not found")
}

func TestRetryAfterHonored(t *testing.T) {
	var attempts atomic.Int32
	api := &fakeBotAPI{respond: func(string, int) (int, string) {
		if attempts.Add(1) == 1 {
			return http.StatusTooManyRequests, `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 1","parameters":{"retry_after":1}}`
		}
		return http.StatusOK, okMessage
	}}
	tr := newTestTransport(t, api, afero.NewMemMapFs())

	start := time.Now()
	require.NoError(t, tr.SendText(context.Background(), 7, "hello"))
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestSendRespectsCancelledContext(t *testing.T) {
	api := &fakeBotAPI{}
	tr := newTestTransport(t, api, afero.NewMemMapFs())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tr.SendText(ctx, 7, "hello")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, api.Calls())
}

func TestSendTimeoutAbortsUpload(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/stage/a.jpg", []byte("jpeg-bytes"), 0o644))

	api := &fakeBotAPI{hold: 500 * time.Millisecond}
	tr := newTimedTransport(t, api, fs, 100*time.Millisecond)

	start := time.Now()
	err := tr.SendPhoto(context.Background(), 7, "/stage/a.jpg", "late")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeNetwork))
	assert.Less(t, time.Since(start), 400*time.Millisecond)

	// the server would have accepted the upload once hold elapsed
	time.Sleep(600 * time.Millisecond)
	assert.Empty(t, api.Calls())
}

func TestCancelAbortsInFlightSend(t *testing.T) {
	api := &fakeBotAPI{hold: 500 * time.Millisecond}
	tr := newTestTransport(t, api, afero.NewMemMapFs())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := tr.SendText(ctx, 7, "hello")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	time.Sleep(600 * time.Millisecond)
	assert.Empty(t, api.Calls())
}

func TestAnswerCallback(t *testing.T) {
	api := &fakeBotAPI{respond: func(string, int) (int, string) {
		return http.StatusOK, `{"ok":true,"result":true}`
	}}
	tr := newTestTransport(t, api, afero.NewMemMapFs())

	require.NoError(t, tr.AnswerCallback(context.Background(), "cb-1", ""))

	calls := api.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "answerCallbackQuery", calls[0].Method)
	assert.Equal(t, "cb-1", calls[0].Fields["callback_query_id"])
}

func TestChatLimiterReused(t *testing.T) {
	tr := newTestTransport(t, &fakeBotAPI{}, afero.NewMemMapFs())

	a := tr.chatLimiter(7)
	assert.Same(t, a, tr.chatLimiter(7))
	assert.NotSame(t, a, tr.chatLimiter(8))
}

func TestChatAdapter(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/stage/a.jpg", []byte("x"), 0o644))

	api := &fakeBotAPI{}
	chat := Chat{Transport: newTestTransport(t, api, fs), ID: 9}
	ctx := context.Background()

	require.NoError(t, chat.Notify(ctx, "note"))
	require.NoError(t, chat.SendPhoto(ctx, "/stage/a.jpg", "cap"))

	calls := api.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "9", calls[0].Fields["chat_id"])
	assert.Equal(t, "9", calls[1].Fields["chat_id"])
}
