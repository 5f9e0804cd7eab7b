package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/samir777-eng/ebad-academy-sub001/core"
)

const defaultTimeout = 10 * time.Second

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the progression HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: &http.Client{Timeout: defaultTimeout},
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

func (c *Client) userPath(userID string, parts ...string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrEmptyUserID
	}
	p := c.baseURL + "/users/" + url.PathEscape(userID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p, nil
}

func (c *Client) do(ctx context.Context, method, u string, body, target any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, target)
}

func id(v int64) string { return strconv.FormatInt(v, 10) }

// SubmitQuiz grades answers for a lesson.
func (c *Client) SubmitQuiz(ctx context.Context, userID string, lessonID int64, answers []string) (QuizResult, error) {
	u, err := c.userPath(userID, "lessons", id(lessonID), "quiz")
	if err != nil {
		return QuizResult{}, err
	}
	if answers == nil {
		answers = []string{}
	}
	var res QuizResult
	err = c.do(ctx, http.MethodPost, u, map[string][]string{"answers": answers}, &res)
	return res, err
}

// CompleteLesson marks a lesson viewed.
func (c *Client) CompleteLesson(ctx context.Context, userID string, lessonID int64) (LessonCompletion, error) {
	u, err := c.userPath(userID, "lessons", id(lessonID), "complete")
	if err != nil {
		return LessonCompletion{}, err
	}
	var res LessonCompletion
	err = c.do(ctx, http.MethodPost, u, nil, &res)
	return res, err
}

// Attempts lists quiz attempts for a lesson, newest first.
func (c *Client) Attempts(ctx context.Context, userID string, lessonID int64) ([]core.QuizAttempt, error) {
	u, err := c.userPath(userID, "lessons", id(lessonID), "attempts")
	if err != nil {
		return nil, err
	}
	var body struct {
		Attempts []core.QuizAttempt `json:"attempts"`
	}
	err = c.do(ctx, http.MethodGet, u, nil, &body)
	return body.Attempts, err
}

// CheckLevel re-evaluates a level and unlocks the next one when complete.
func (c *Client) CheckLevel(ctx context.Context, userID string, levelID int64) (LevelProgress, error) {
	u, err := c.userPath(userID, "levels", id(levelID), "check")
	if err != nil {
		return LevelProgress{}, err
	}
	var res LevelProgress
	err = c.do(ctx, http.MethodPost, u, nil, &res)
	return res, err
}

// Levels lists the learner's level status rows.
func (c *Client) Levels(ctx context.Context, userID string) ([]core.UserLevelStatus, error) {
	u, err := c.userPath(userID, "levels")
	if err != nil {
		return nil, err
	}
	var body struct {
		Levels []core.UserLevelStatus `json:"levels"`
	}
	err = c.do(ctx, http.MethodGet, u, nil, &body)
	return body.Levels, err
}

// EarnedBadges lists the learner's awards with their earn times, oldest first.
func (c *Client) EarnedBadges(ctx context.Context, userID string) ([]core.UserBadge, error) {
	u, err := c.userPath(userID, "badges")
	if err != nil {
		return nil, err
	}
	var body struct {
		Badges []core.UserBadge `json:"badges"`
	}
	err = c.do(ctx, http.MethodGet, u, nil, &body)
	return body.Badges, err
}

// CheckBadges evaluates automatic badges and returns the ones newly granted.
func (c *Client) CheckBadges(ctx context.Context, userID string) ([]core.BadgeID, error) {
	u, err := c.userPath(userID, "badges", "check")
	if err != nil {
		return nil, err
	}
	var body struct {
		NewBadges []core.BadgeID `json:"new_badges"`
	}
	err = c.do(ctx, http.MethodPost, u, nil, &body)
	return body.NewBadges, err
}

// AwardBadge grants a badge by hand. It reports false when the learner
// already held it.
func (c *Client) AwardBadge(ctx context.Context, userID string, badgeID int64) (bool, error) {
	u, err := c.userPath(userID, "badges", id(badgeID))
	if err != nil {
		return false, err
	}
	var body struct {
		Awarded bool `json:"awarded"`
	}
	err = c.do(ctx, http.MethodPost, u, nil, &body)
	return body.Awarded, err
}

// Stats fetches the learner's aggregate counters.
func (c *Client) Stats(ctx context.Context, userID string) (Stats, error) {
	u, err := c.userPath(userID, "stats")
	if err != nil {
		return Stats{}, err
	}
	var st Stats
	err = c.do(ctx, http.MethodGet, u, nil, &st)
	return st, err
}

// Leaderboard returns the top learners.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]Standing, error) {
	u := fmt.Sprintf("%s/leaderboard?limit=%d", c.baseURL, limit)
	var body struct {
		Entries []Standing `json:"entries"`
	}
	err := c.do(ctx, http.MethodGet, u, nil, &body)
	return body.Entries, err
}

// Health calls /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	err := c.do(ctx, http.MethodGet, c.baseURL+"/healthz", nil, &hs)
	return hs, err
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values
// for userID, or for every learner when userID is empty.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, userID string) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	target := c.wsURL
	if userID != "" {
		target += "?user=" + url.QueryEscape(userID)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, target, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var evt core.Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return ""
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
