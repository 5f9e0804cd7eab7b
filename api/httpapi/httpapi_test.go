package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "github.com/samir777-eng/ebad-academy-sub001/adapters/memory"
	"github.com/samir777-eng/ebad-academy-sub001/analytics"
	"github.com/samir777-eng/ebad-academy-sub001/core"
	"github.com/samir777-eng/ebad-academy-sub001/engine"
	"github.com/samir777-eng/ebad-academy-sub001/leaderboard"
)

type fixture struct {
	handler http.Handler
	board   *leaderboard.SkipList
	funnel  *analytics.Funnel
}

func newFixture(t *testing.T, opts Options) fixture {
	t.Helper()
	ctx := context.Background()
	store := mem.New()
	require.NoError(t, store.PutLevel(ctx, core.Level{ID: 1, Number: 1, Title: "Foundations"}))
	require.NoError(t, store.PutLevel(ctx, core.Level{ID: 2, Number: 2, Title: "Practice"}))
	require.NoError(t, store.PutLesson(ctx, core.Lesson{ID: 11, LevelID: 1, Title: "Intro", Questions: []core.Question{
		{ID: 1, Position: 0, Type: core.QuestionMultipleChoice, CorrectAnswer: "A", Options: []string{"A", "B"}},
		{ID: 2, Position: 1, Type: core.QuestionTrueFalse, CorrectAnswer: "true"},
	}}))
	require.NoError(t, store.PutLesson(ctx, core.Lesson{ID: 21, LevelID: 2, Title: "Next"}))
	require.NoError(t, store.PutBadge(ctx, core.Badge{ID: 1, Name: "Ace", Criteria: core.PerfectScore{Value: 1}}))
	require.NoError(t, store.PutBadge(ctx, core.Badge{ID: 2, Name: "Mentor", Criteria: core.Manual{}}))

	bus := engine.NewEventBus(engine.DispatchSync)
	svc := engine.NewService(store, bus)
	board := leaderboard.NewSkipList()
	tracker := leaderboard.NewTracker(board, store)
	funnel := analytics.NewFunnel()
	dau := analytics.NewDAU()
	bus.SubscribeAll(func(_ context.Context, e core.Event) {
		tracker.OnEvent(e)
		funnel.OnEvent(e)
		dau.OnEvent(e)
	})

	if opts.PathPrefix == "" {
		opts.PathPrefix = "/api"
	}
	opts.Leaderboard = board
	opts.KPIs = funnel
	opts.Activity = dau
	return fixture{handler: NewMux(svc, nil, opts), board: board, funnel: funnel}
}

func (f fixture) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestSubmitQuiz(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do(t, http.MethodPost, "/api/users/alice/lessons/11/quiz", `{"answers":["A","true"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[engine.QuizResult](t, rec)
	assert.Equal(t, 100, res.Score)
	assert.True(t, res.Passed)
	assert.Equal(t, []core.BadgeID{1}, res.NewBadges)

	rec = f.do(t, http.MethodPost, "/api/users/alice/lessons/11/quiz", `{"answers":["B"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[engine.QuizResult](t, rec)
	assert.Equal(t, 0, res.Score)
	assert.False(t, res.Passed)
	assert.Equal(t, []core.BadgeID{}, res.NewBadges)
}

func TestSubmitQuiz_Errors(t *testing.T) {
	f := newFixture(t, Options{})
	tests := []struct {
		name string
		path string
		body string
		code int
		err  string
	}{
		{"bad lesson id", "/api/users/alice/lessons/abc/quiz", `{"answers":[]}`, http.StatusBadRequest, "invalid_input"},
		{"unknown lesson", "/api/users/alice/lessons/99/quiz", `{"answers":[]}`, http.StatusNotFound, "not_found"},
		{"blank user", "/api/users/%20/lessons/11/quiz", `{"answers":[]}`, http.StatusBadRequest, "invalid_input"},
		{"bad body", "/api/users/alice/lessons/11/quiz", `{"answer":1}`, http.StatusBadRequest, "invalid_body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.Equal(t, tt.err, decode[apiError](t, rec).Code)
		})
	}
}

func TestCompleteLessonUnlocksNextLevel(t *testing.T) {
	f := newFixture(t, Options{})
	rec := f.do(t, http.MethodPost, "/api/users/bob/lessons/11/quiz", `{"answers":["A","true"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[engine.QuizResult](t, rec).LevelUnlocked, "viewing is still required")

	rec = f.do(t, http.MethodPost, "/api/users/bob/lessons/11/complete", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decode[engine.LessonCompletion](t, rec)
	assert.True(t, done.FullyComplete)
	assert.True(t, done.LevelUnlocked)
	require.NotNil(t, done.NextLevelID)
	assert.Equal(t, core.LevelID(2), *done.NextLevelID)

	rec = f.do(t, http.MethodPost, "/api/users/bob/levels/1/check", "")
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode[levelProgressResponse](t, rec)
	assert.False(t, again.LevelUnlocked)
	assert.Equal(t, 100.0, again.CompletionPercentage)

	rec = f.do(t, http.MethodGet, "/api/users/bob/levels", "")
	require.Equal(t, http.StatusOK, rec.Code)
	levels := decode[struct {
		Levels []core.UserLevelStatus `json:"levels"`
	}](t, rec)
	assert.Len(t, levels.Levels, 2)

	rec = f.do(t, http.MethodGet, "/api/users/bob/lessons/11/attempts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"score":100`)
}

func TestCheckLevel_EmptyAndInvalid(t *testing.T) {
	f := newFixture(t, Options{})
	rec := f.do(t, http.MethodPost, "/api/users/bob/levels/77/check", "")
	assert.Equal(t, http.StatusOK, rec.Code, "a level with no lessons reports zero progress")
	rec = f.do(t, http.MethodPost, "/api/users/bob/levels/x/check", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBadges(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do(t, http.MethodPost, "/api/users/carol/badges/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"awarded": true}, decode[map[string]bool](t, rec))

	rec = f.do(t, http.MethodPost, "/api/users/carol/badges/2", "")
	assert.Equal(t, map[string]bool{"awarded": false}, decode[map[string]bool](t, rec))

	rec = f.do(t, http.MethodPost, "/api/users/carol/badges/404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/users/carol/badges/check", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"new_badges":[]}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/users/carol/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[statsResponse](t, rec)
	assert.Equal(t, []core.BadgeID{2}, st.Badges)
}

func TestLeaderboardAndKPIs(t *testing.T) {
	f := newFixture(t, Options{})
	f.do(t, http.MethodPost, "/api/users/alice/lessons/11/quiz", `{"answers":["A","true"]}`)
	f.do(t, http.MethodPost, "/api/users/bob/badges/2", "")
	f.do(t, http.MethodPost, "/api/users/alice/badges/2", "")

	rec := f.do(t, http.MethodGet, "/api/leaderboard?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	board := decode[struct {
		Entries []leaderboard.Entry `json:"entries"`
	}](t, rec)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, core.UserID("alice"), board.Entries[0].User)
	assert.Equal(t, int64(2), board.Entries[0].Badges)

	rec = f.do(t, http.MethodGet, "/api/leaderboard/bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rank":2`)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/leaderboard/nobody", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/leaderboard?limit=0", "").Code)

	rec = f.do(t, http.MethodGet, "/api/kpis", "")
	require.Equal(t, http.StatusOK, rec.Code)
	kpis := decode[kpiResponse](t, rec)
	assert.Equal(t, int64(1), kpis.QuizSubmissions)
	assert.Equal(t, int64(1), kpis.PerfectScores)
	require.NotNil(t, kpis.ActiveToday)
	assert.Equal(t, 2, *kpis.ActiveToday)
}

func TestLeaderboardLevelsMatchStats(t *testing.T) {
	f := newFixture(t, Options{})
	f.do(t, http.MethodPost, "/api/users/dina/lessons/11/quiz", `{"answers":["A","true"]}`)
	f.do(t, http.MethodPost, "/api/users/dina/lessons/11/complete", "")

	st := decode[statsResponse](t, f.do(t, http.MethodGet, "/api/users/dina/stats", ""))
	require.Equal(t, int64(2), st.LevelsUnlocked)

	rec := f.do(t, http.MethodGet, "/api/leaderboard/dina", "")
	require.Equal(t, http.StatusOK, rec.Code)
	standing := decode[struct {
		Entry leaderboard.Entry `json:"entry"`
	}](t, rec)
	assert.Equal(t, st.LevelsUnlocked, standing.Entry.Levels)
	assert.Equal(t, int64(len(st.Badges)), standing.Entry.Badges)
}

func TestEarnedBadgesRoute(t *testing.T) {
	f := newFixture(t, Options{})
	rec := f.do(t, http.MethodGet, "/api/users/erin/badges", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"badges":[]}`, rec.Body.String())

	f.do(t, http.MethodPost, "/api/users/erin/lessons/11/quiz", `{"answers":["A","true"]}`)
	f.do(t, http.MethodPost, "/api/users/erin/badges/2", "")

	rec = f.do(t, http.MethodGet, "/api/users/erin/badges", "")
	require.Equal(t, http.StatusOK, rec.Code)
	earned := decode[struct {
		Badges []core.UserBadge `json:"badges"`
	}](t, rec)
	require.Len(t, earned.Badges, 2)
	assert.ElementsMatch(t, []core.BadgeID{1, 2}, []core.BadgeID{earned.Badges[0].BadgeID, earned.Badges[1].BadgeID})
	for _, b := range earned.Badges {
		assert.Equal(t, core.UserID("erin"), b.UserID)
		assert.False(t, b.EarnedAt.IsZero())
	}

	rec = f.do(t, http.MethodGet, "/api/users/%20/badges", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndRouting(t *testing.T) {
	f := newFixture(t, Options{})
	rec := f.do(t, http.MethodGet, "/api/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)

	rec = f.do(t, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[apiError](t, rec).Code)

	rec = f.do(t, http.MethodGet, "/api/users/alice/badges/check", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	f := newFixture(t, Options{APIKeys: []string{"secret"}, CORSOrigins: []string{"*"}})

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/healthz", "").Code, "health stays public")
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/users/alice/stats", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/users/alice/stats", "", "X-API-Key", "wrong").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/users/alice/stats", "", "Authorization", "Bearer secret").Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, Options{CORSOrigins: []string{"https://academy.example"}})
	rec := f.do(t, http.MethodOptions, "/api/users/alice/stats", "",
		"Origin", "https://academy.example",
		"Access-Control-Request-Method", "GET")
	assert.Equal(t, "https://academy.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, Options{
		APIKeys:          []string{"k"},
		RateLimitEnabled: true,
		RateLimitRPM:     1,
		RateLimitBurst:   1,
	})
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/users/alice/stats", "", "X-API-Key", "k").Code)
	rec := f.do(t, http.MethodGet, "/api/users/alice/stats", "", "X-API-Key", "k")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newRateLimiter(60, 1, time.Minute)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	now = now.Add(2 * time.Minute)
	assert.True(t, l.allow("b"))
	l.mu.Lock()
	_, kept := l.visitors["a"]
	l.mu.Unlock()
	assert.False(t, kept)
}

func TestRoutePrefix(t *testing.T) {
	assert.Equal(t, "/", routePrefix(""))
	assert.Equal(t, "/", routePrefix("/"))
	assert.Equal(t, "/api", routePrefix("api/"))
	assert.Equal(t, "/v1/api", routePrefix("/v1/api"))
}
