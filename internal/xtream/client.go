// Package xtream is a client for the Xtream Codes player_api.php interface.
package xtream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vodsync/vodsync/internal/config"
)

var (
	ErrAuthFailed         = errors.New("provider rejected credentials")
	ErrAPIError           = errors.New("provider API error")
	ErrServerError        = errors.New("provider server error")
	ErrRateLimited        = errors.New("provider rate limited")
	ErrUnexpectedPayload  = errors.New("unexpected provider payload")
	ErrMissingCredentials = errors.New("server url, username and password are required")
)

const maxBodyBytes = 256 << 20

// Credentials identifies one provider account.
type Credentials struct {
	ServerURL string
	Username  string
	Password  string
	UserAgent string
}

// Client talks to one provider account.
type Client struct {
	httpClient *http.Client
	creds      Credentials
	userAgent  string
	limiter    *rate.Limiter
	retry      RetryConfig
	logger     zerolog.Logger
}

// NewClient creates a client for creds using the shared provider settings.
func NewClient(cfg config.XtreamConfig, creds Credentials, logger zerolog.Logger) *Client {
	creds.ServerURL = strings.TrimRight(creds.ServerURL, "/")

	userAgent := cfg.UserAgent
	if creds.UserAgent != "" {
		userAgent = creds.UserAgent
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	retry := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		creds:      creds,
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(limit, burst),
		retry:      retry,
		logger:     logger.With().Str("component", "xtream").Str("server", redactURL(creds.ServerURL)).Logger(),
	}
}

// Authenticate verifies the credentials and returns the account info block.
func (c *Client) Authenticate(ctx context.Context) (*AuthInfo, error) {
	body, err := c.get(ctx, "", nil)
	if err != nil {
		return nil, err
	}

	var info AuthInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedPayload, err)
	}
	if !info.UserInfo.Auth.Valid || info.UserInfo.Auth.Value == 0 {
		return nil, ErrAuthFailed
	}
	return &info, nil
}

// GetVODCategories returns the movie categories.
func (c *Client) GetVODCategories(ctx context.Context) ([]Category, error) {
	return getList[Category](ctx, c, "get_vod_categories", nil)
}

// GetVODStreams returns every movie stream of the account.
func (c *Client) GetVODStreams(ctx context.Context) ([]VODStream, error) {
	return getList[VODStream](ctx, c, "get_vod_streams", nil)
}

// GetSeriesCategories returns the series categories.
func (c *Client) GetSeriesCategories(ctx context.Context) ([]Category, error) {
	return getList[Category](ctx, c, "get_series_categories", nil)
}

// GetSeries returns every series of the account.
func (c *Client) GetSeries(ctx context.Context) ([]Series, error) {
	return getList[Series](ctx, c, "get_series", nil)
}

// GetSeriesInfoRaw returns the undecoded get_series_info body.
func (c *Client) GetSeriesInfoRaw(ctx context.Context, seriesID string) ([]byte, error) {
	return c.get(ctx, "get_series_info", url.Values{"series_id": {seriesID}})
}

// GetSeriesInfo returns the info, seasons and raw episodes of one series.
func (c *Client) GetSeriesInfo(ctx context.Context, seriesID string) (*SeriesInfo, error) {
	body, err := c.GetSeriesInfoRaw(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	return ParseSeriesInfo(body)
}

// GetVODInfo returns the detail block of one movie stream.
func (c *Client) GetVODInfo(ctx context.Context, streamID string) (*VODInfo, error) {
	body, err := c.get(ctx, "get_vod_info", url.Values{"vod_id": {streamID}})
	if err != nil {
		return nil, err
	}
	var info VODInfo
	if isEmptyObject(body) {
		return &info, nil
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%w: get_vod_info: %v", ErrUnexpectedPayload, err)
	}
	return &info, nil
}

// ParseSeriesInfo decodes a get_series_info body.
func ParseSeriesInfo(body []byte) (*SeriesInfo, error) {
	var info SeriesInfo
	if isEmptyObject(body) {
		return &info, nil
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%w: get_series_info: %v", ErrUnexpectedPayload, err)
	}
	return &info, nil
}

// MovieURL returns the playback URL of a movie stream.
func (c *Client) MovieURL(streamID, ext string) string {
	return MovieURL(c.creds.ServerURL, c.creds.Username, c.creds.Password, streamID, ext)
}

// SeriesURL returns the playback URL of an episode stream.
func (c *Client) SeriesURL(streamID, ext string) string {
	return SeriesURL(c.creds.ServerURL, c.creds.Username, c.creds.Password, streamID, ext)
}

// MovieURL builds {server}/movie/{user}/{pass}/{stream_id}.{ext}.
func MovieURL(serverURL, username, password, streamID, ext string) string {
	return streamURL("movie", serverURL, username, password, streamID, ext)
}

// SeriesURL builds {server}/series/{user}/{pass}/{stream_id}.{ext}.
func SeriesURL(serverURL, username, password, streamID, ext string) string {
	return streamURL("series", serverURL, username, password, streamID, ext)
}

func streamURL(kind, serverURL, username, password, streamID, ext string) string {
	if ext == "" {
		ext = "mp4"
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s.%s",
		strings.TrimRight(serverURL, "/"), kind,
		url.PathEscape(username), url.PathEscape(password),
		streamID, strings.TrimPrefix(ext, "."))
}

func getList[T any](ctx context.Context, c *Client, action string, params url.Values) ([]T, error) {
	body, err := c.get(ctx, action, params)
	if err != nil {
		return nil, err
	}
	items, err := decodeList[T](body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnexpectedPayload, action, err)
	}
	c.logger.Debug().Str("action", action).Int("count", len(items)).Msg("Fetched provider list")
	return items, nil
}

// decodeList accepts a JSON array, null, an empty body, or an object keyed by
// index, which some panels send instead of an array.
func decodeList[T any](body []byte) ([]T, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) || bytes.Equal(body, []byte(`""`)) {
		return []T{}, nil
	}

	switch body[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, err
		}
		if items == nil {
			items = []T{}
		}
		return items, nil
	case '{':
		var byKey map[string]json.RawMessage
		if err := json.Unmarshal(body, &byKey); err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(byKey))
		for k := range byKey {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, errA := strconv.Atoi(keys[i])
			b, errB := strconv.Atoi(keys[j])
			if errA == nil && errB == nil {
				return a < b
			}
			return keys[i] < keys[j]
		})
		items := make([]T, 0, len(keys))
		for _, k := range keys {
			raw := bytes.TrimSpace(byKey[k])
			if len(raw) == 0 || raw[0] != '{' {
				continue
			}
			var item T
			if err := json.Unmarshal(raw, &item); err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected a list, got %q", truncate(string(body), 40))
	}
}

func (c *Client) get(ctx context.Context, action string, params url.Values) ([]byte, error) {
	if c.creds.ServerURL == "" || c.creds.Username == "" || c.creds.Password == "" {
		return nil, ErrMissingCredentials
	}

	query := url.Values{}
	query.Set("username", c.creds.Username)
	query.Set("password", c.creds.Password)
	if action != "" {
		query.Set("action", action)
	}
	for k, v := range params {
		query[k] = v
	}
	endpoint := fmt.Sprintf("%s/player_api.php?%s", c.creds.ServerURL, query.Encode())

	name := action
	if name == "" {
		name = "authenticate"
	}

	var body []byte
	err := withRetry(ctx, name, c.retry, c.logger, func() error {
		var err error
		body, err = c.doRequest(ctx, endpoint)
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrAuthFailed
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrServerError, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
