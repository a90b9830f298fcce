package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"igrelay/pkg/config"
	errs "igrelay/pkg/errors"
	"igrelay/pkg/logger"
	"igrelay/pkg/media"
	"igrelay/pkg/ratelimit"
	"igrelay/pkg/retry"
	"igrelay/pkg/storage"
)

// ClientConfig holds the settings of an Instagram client
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	Session    Session
	UserAgents []string
	// Limiter throttles every request, including CDN downloads
	Limiter ratelimit.Limiter
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	Backoff    retry.BackoffStrategy
	// MaxPages caps followers/following pagination (0 means no cap)
	MaxPages   int
	HTTPClient *http.Client
}

// Client talks to Instagram's private web API with a session's cookies
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	session    Session
	agents     *UserAgentPool
	limiter    ratelimit.Limiter
	retry      *retry.Config
	maxPages   int
	logger     logger.Logger

	// concurrent lookups of one username share a request that outlives
	// any single caller, bounded by lookupTimeout
	profiles      singleflight.Group
	lookupTimeout time.Duration
}

// NewClient creates a new Instagram API client
func NewClient(cfg ClientConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Backoff == nil {
		cfg.Backoff = retry.NewErrorTypeBackoff(2*time.Second, 2)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		httpClient: httpClient,
		headers: map[string]string{
			"Accept":           "*/*",
			"Accept-Language":  "en-US,en;q=0.9",
			"X-IG-App-ID":      AppID,
			"X-Requested-With": "XMLHttpRequest",
			"Referer":          BaseURL + "/",
		},
		baseURL:       cfg.BaseURL,
		session:       cfg.Session,
		agents:        NewUserAgentPool(cfg.UserAgents),
		limiter:       cfg.Limiter,
		maxPages:      cfg.MaxPages,
		lookupTimeout: cfg.Timeout * time.Duration(cfg.MaxRetries+1),
		retry: &retry.Config{
			MaxAttempts: cfg.MaxRetries + 1,
			Backoff:     cfg.Backoff,
			RetryIf:     retry.DefaultRetryIf,
			Logger:      log,
		},
		logger: log,
	}
}

// NewClientFromConfig builds a client from the application configuration
func NewClientFromConfig(cfg *config.Config, log logger.Logger) (*Client, error) {
	var agents []string
	if cfg.Instagram.UserAgentsFile != "" {
		loaded, err := LoadUserAgents(cfg.Instagram.UserAgentsFile)
		if err != nil {
			return nil, err
		}
		agents = loaded
	} else if cfg.Instagram.UserAgent != "" {
		agents = []string{cfg.Instagram.UserAgent}
	}

	var limiter ratelimit.Limiter
	switch {
	case cfg.RateLimit.RequestsPerMinute <= 0:
	case cfg.RateLimit.Algorithm == "token_bucket":
		limiter = ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute)
	default:
		limiter = ratelimit.NewPerMinute(cfg.RateLimit.RequestsPerMinute)
	}

	return NewClient(ClientConfig{
		Timeout: cfg.Instagram.RequestTimeout,
		Session: Session{
			SessionID: cfg.Instagram.SessionID,
			DSUserID:  cfg.Instagram.DSUserID,
			CSRFToken: cfg.Instagram.CSRFToken,
			RUR:       cfg.Instagram.RUR,
			MID:       cfg.Instagram.MID,
		},
		UserAgents: agents,
		Limiter:    limiter,
		MaxRetries: cfg.RateLimit.MaxRetries,
		Backoff:    retry.NewErrorTypeBackoff(cfg.RateLimit.RetryDelay, cfg.RateLimit.BackoffMultiplier),
		MaxPages:   cfg.Tracking.MaxPages,
	}, log), nil
}

// do performs one rate-limited GET and maps non-2xx statuses to typed errors
func (c *Client) do(ctx context.Context, rawURL string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("User-Agent", c.agents.Pick())
	if c.session.CSRFToken != "" {
		req.Header.Set("X-CSRFToken", c.session.CSRFToken)
	}
	for _, cookie := range c.session.cookies() {
		req.AddCookie(cookie)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"url":      redact(req.URL),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.New(errs.ErrorTypeNetwork, 0, "network error: %v", err)
	}

	logger.LogRequest(c.logger, req.Method, redact(req.URL), resp.StatusCode, duration)

	if err := c.checkResponseStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// getJSON fetches rawURL with retries and decodes the body into target
func (c *Client) getJSON(ctx context.Context, rawURL string, target interface{}) error {
	return retry.Do(ctx, func(ctx context.Context) error {
		resp, err := c.do(ctx, rawURL)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return errs.New(errs.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err)
		}

		if err := json.Unmarshal(body, target); err != nil {
			bodyPreview := string(body)
			if len(bodyPreview) > 200 {
				bodyPreview = bodyPreview[:200] + "..."
			}
			c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
				"url":          redactString(rawURL),
				"status":       resp.StatusCode,
				"error":        err.Error(),
				"body_preview": bodyPreview,
			})
			return errs.New(errs.ErrorTypeParsing, resp.StatusCode, "failed to parse JSON: %v", err)
		}
		return nil
	}, c.retry)
}

// checkResponseStatus checks the HTTP response status and returns appropriate errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	errType := errs.FromStatusCode(resp.StatusCode)
	message := http.StatusText(resp.StatusCode)

	var body apiMessage
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil && json.Unmarshal(data, &body) == nil && body.Message != "" {
		message = body.Message
		if body.Message == "login_required" || body.Message == "checkpoint_required" {
			errType = errs.ErrorTypeAuth
		}
	}

	fields := map[string]interface{}{
		"status":    resp.StatusCode,
		"url":       redact(resp.Request.URL),
		"type":      errType,
		"message":   message,
		"retryable": errs.IsRetryableStatusCode(resp.StatusCode),
	}

	wait := retryAfter(resp)
	switch errType {
	case errs.ErrorTypeRateLimit:
		logger.LogRateLimit(c.logger, resp.Request.URL.Path, wait)
	case errs.ErrorTypeServerError:
		c.logger.ErrorWithFields("server error", fields)
	default:
		c.logger.WarnWithFields("request rejected", fields)
	}

	return errs.New(errType, resp.StatusCode, "%s", message).WithRetryAfter(wait)
}

// VerifySession checks the cookies against Instagram and returns the logged-in username
func (c *Client) VerifySession(ctx context.Context) (string, error) {
	if !c.session.Valid() {
		return "", errs.New(errs.ErrorTypeAuth, 0, "no Instagram session configured")
	}

	var resp CurrentUserResponse
	if err := c.getJSON(ctx, CurrentUserURL(c.baseURL), &resp); err != nil {
		return "", err
	}
	if resp.User.Username == "" {
		return "", errs.New(errs.ErrorTypeAuth, 0, "session is not logged in")
	}
	return resp.User.Username, nil
}

// ResolveProfile fetches the profile of username
func (c *Client) ResolveProfile(ctx context.Context, username string) (*Profile, error) {
	username = SanitizeUsername(username)
	if !IsValidUsername(username) {
		return nil, errs.New(errs.ErrorTypeNotFound, 0, "invalid username %q", username)
	}

	ch := c.profiles.DoChan(username, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.lookupTimeout)
		defer cancel()
		return c.fetchProfile(ctx, username)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.DebugWithFields("profile lookup shared", map[string]interface{}{
				"username": username,
			})
		}
		profile := *res.Val.(*Profile)
		return &profile, nil
	}
}

func (c *Client) fetchProfile(ctx context.Context, username string) (*Profile, error) {
	c.logger.DebugWithFields("fetching user profile", map[string]interface{}{
		"username": username,
	})

	var resp ProfileResponse
	if err := c.getJSON(ctx, ProfileURL(c.baseURL, username), &resp); err != nil {
		return nil, fmt.Errorf("resolve profile %s: %w", username, err)
	}

	if resp.RequiresToLogin {
		return nil, errs.New(errs.ErrorTypeAuth, http.StatusUnauthorized, "Instagram requires authentication to view this profile")
	}
	if resp.Data.User == nil {
		return nil, errs.New(errs.ErrorTypeNotFound, http.StatusNotFound, "profile %s not found", username)
	}

	return resp.Data.User.toProfile(), nil
}

// Stories returns the profile's current stories in API order
func (c *Client) Stories(ctx context.Context, profile *Profile) ([]media.ContentItem, error) {
	items, err := c.reelItems(ctx, profile.ID, profile.Username)
	if err != nil {
		return nil, fmt.Errorf("fetch stories of %s: %w", profile.Username, err)
	}
	return items, nil
}

// Highlights lists the profile's highlights
func (c *Client) Highlights(ctx context.Context, profile *Profile) ([]Highlight, error) {
	var resp HighlightsTrayResponse
	if err := c.getJSON(ctx, HighlightsTrayURL(c.baseURL, profile.ID), &resp); err != nil {
		return nil, fmt.Errorf("fetch highlights of %s: %w", profile.Username, err)
	}

	highlights := make([]Highlight, 0, len(resp.Tray))
	for _, entry := range resp.Tray {
		highlights = append(highlights, Highlight{
			ID:         strings.TrimPrefix(entry.ID, highlightPrefix),
			Title:      entry.Title,
			MediaCount: entry.MediaCount,
		})
	}
	return highlights, nil
}

// HighlightItems returns the items of one highlight owned by owner
func (c *Client) HighlightItems(ctx context.Context, highlightID, owner string) ([]media.ContentItem, error) {
	items, err := c.reelItems(ctx, HighlightReelID(highlightID), owner)
	if err != nil {
		return nil, fmt.Errorf("fetch highlight %s: %w", highlightID, err)
	}
	return items, nil
}

func (c *Client) reelItems(ctx context.Context, reelID, owner string) ([]media.ContentItem, error) {
	var resp ReelsResponse
	if err := c.getJSON(ctx, ReelsMediaURL(c.baseURL, reelID), &resp); err != nil {
		return nil, err
	}

	reel, ok := resp.Reels[reelID]
	if !ok {
		return nil, nil
	}

	items := make([]media.ContentItem, 0, len(reel.Items))
	for _, ri := range reel.Items {
		if item, ok := ri.toContentItem(owner); ok {
			items = append(items, item)
		}
	}
	return items, nil
}

func (ri ReelItem) toContentItem(owner string) (media.ContentItem, bool) {
	if ri.User.Username != "" {
		owner = ri.User.Username
	}
	item := media.ContentItem{
		ID:         ri.ID,
		Owner:      owner,
		CapturedAt: time.Unix(ri.TakenAt, 0).UTC(),
		Kind:       media.KindImage,
	}

	switch {
	case ri.MediaType == MediaTypeVideo && len(ri.VideoVersions) > 0:
		item.Kind = media.KindVideo
		item.URL = ri.VideoVersions[0].URL
	case len(ri.ImageVersions2.Candidates) > 0:
		item.URL = ri.ImageVersions2.Candidates[0].URL
	}
	return item, item.URL != ""
}

// Followers returns the usernames following profile
func (c *Client) Followers(ctx context.Context, profile *Profile) ([]string, error) {
	return c.friendships(ctx, profile, RelationFollowers)
}

// Following returns the usernames profile follows
func (c *Client) Following(ctx context.Context, profile *Profile) ([]string, error) {
	return c.friendships(ctx, profile, RelationFollowing)
}

func (c *Client) friendships(ctx context.Context, profile *Profile, relation Relation) ([]string, error) {
	var (
		usernames []string
		maxID     string
	)

	for page := 0; c.maxPages <= 0 || page < c.maxPages; page++ {
		var resp FriendshipsResponse
		if err := c.getJSON(ctx, FriendshipsURL(c.baseURL, profile.ID, relation, maxID), &resp); err != nil {
			return nil, fmt.Errorf("fetch %s of %s: %w", relation, profile.Username, err)
		}
		for _, u := range resp.Users {
			usernames = append(usernames, u.Username)
		}
		if resp.NextMaxID == "" {
			return usernames, nil
		}
		maxID = resp.NextMaxID
	}

	c.logger.WarnWithFields("pagination capped", map[string]interface{}{
		"username":  profile.Username,
		"relation":  relation,
		"max_pages": c.maxPages,
		"collected": len(usernames),
	})
	return usernames, nil
}

// Download writes item into dir as "<captured UTC>_UTC_<owner>.<ext>"
func (c *Client) Download(ctx context.Context, item media.ContentItem, fs afero.Fs, dir string) error {
	if item.URL == "" {
		return errs.New(errs.ErrorTypeNotFound, 0, "item %s has no media URL", item.ID)
	}
	_, err := c.downloadTo(ctx, item.URL, fs, dir, MediaFileName(item))
	return err
}

// DownloadProfilePicture saves the largest profile picture into dir and returns its path
func (c *Client) DownloadProfilePicture(ctx context.Context, profile *Profile, fs afero.Fs, dir string) (string, error) {
	picURL := profile.HDProfilePicURL()
	if picURL == "" {
		return "", errs.New(errs.ErrorTypeNotFound, 0, "profile %s has no picture", profile.Username)
	}

	ext := fileExtension(picURL)
	if !media.IsMediaFile(ext) {
		ext = ".jpg"
	}
	return c.downloadTo(ctx, picURL, fs, dir, profile.Username+"_profile_pic"+ext)
}

func (c *Client) downloadTo(ctx context.Context, rawURL string, fs afero.Fs, dir, name string) (string, error) {
	store, err := storage.NewManager(fs, dir)
	if err != nil {
		return "", err
	}

	n, err := retry.DoWithResult(ctx, func(ctx context.Context) (int64, error) {
		resp, err := c.do(ctx, rawURL)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		n, err := store.Save(resp.Body, name)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return 0, ctxErr
			}
			return 0, errs.New(errs.ErrorTypeNetwork, resp.StatusCode, "download interrupted: %v", err)
		}
		return n, nil
	}, c.retry)
	if err != nil {
		return "", err
	}

	c.logger.DebugWithFields("media downloaded", map[string]interface{}{
		"file": name,
		"size": n,
	})
	return store.Path(name), nil
}

// MediaFileName names a downloaded item after its capture time and owner
func MediaFileName(item media.ContentItem) string {
	ext := fileExtension(item.URL)
	if !media.IsMediaFile(ext) {
		if item.Kind == media.KindVideo {
			ext = ".mp4"
		} else {
			ext = ".jpg"
		}
	}

	owner := SanitizeUsername(item.Owner)
	if !IsValidUsername(owner) {
		owner = "item"
	}
	return fmt.Sprintf("%s_UTC_%s%s", item.CapturedAt.UTC().Format("2006-01-02_15-04-05"), owner, ext)
}

func retryAfter(resp *http.Response) time.Duration {
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// redact drops the query string, which carries signed CDN tokens
func redact(u *url.URL) string {
	return u.Scheme + "://" + u.Host + u.Path
}

func redactString(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return redact(u)
}

var _ media.Downloader = (*Client)(nil)
