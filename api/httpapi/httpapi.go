package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	wsadapter "github.com/samir777-eng/ebad-academy-sub001/adapters/websocket"
	"github.com/samir777-eng/ebad-academy-sub001/analytics"
	"github.com/samir777-eng/ebad-academy-sub001/core"
	"github.com/samir777-eng/ebad-academy-sub001/engine"
	"github.com/samir777-eng/ebad-academy-sub001/leaderboard"
	"github.com/samir777-eng/ebad-academy-sub001/realtime"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// CORSOrigins enables CORS for the listed origins ("*" for any).
	CORSOrigins []string
	// WSOrigins restricts WebSocket upgrades; empty accepts any origin.
	WSOrigins []string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles per-client rate limiting.
	RateLimitEnabled bool
	RateLimitRPM     int
	RateLimitBurst   int
	// RateLimitIdle is how long an idle client's limiter is kept.
	RateLimitIdle time.Duration
	// Leaderboard, KPIs and Activity are optional read models.
	Leaderboard leaderboard.Board
	KPIs        *analytics.Funnel
	Activity    *analytics.DAU
	Logger      *slog.Logger
}

// NewMux builds the progression REST API and WebSocket stream.
// Routes (under PathPrefix):
//   - GET  /healthz
//   - GET  /ws?user={id}
//   - POST /users/{user}/lessons/{lesson}/quiz      {"answers": [...]}
//   - POST /users/{user}/lessons/{lesson}/complete
//   - GET  /users/{user}/lessons/{lesson}/attempts
//   - POST /users/{user}/levels/{level}/check
//   - GET  /users/{user}/levels
//   - GET  /users/{user}/badges
//   - POST /users/{user}/badges/check
//   - POST /users/{user}/badges/{badge}
//   - GET  /users/{user}/stats
//   - GET  /leaderboard?limit=n, GET /leaderboard/{user}
//   - GET  /kpis
func NewMux(svc *engine.Service, hub *realtime.Hub, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{svc: svc, board: opts.Leaderboard, kpis: opts.KPIs, dau: opts.Activity, logger: logger, now: time.Now}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(logger), middleware.Recoverer)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	r.Route(routePrefix(opts.PathPrefix), func(r chi.Router) {
		r.Get("/healthz", h.health)

		r.Group(func(r chi.Router) {
			if len(opts.APIKeys) > 0 {
				r.Use(apiKeyAuth(opts.APIKeys))
			}
			if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
				r.Use(newRateLimiter(opts.RateLimitRPM, opts.RateLimitBurst, opts.RateLimitIdle).middleware)
			}
			if hub != nil {
				r.Handle("/ws", wsadapter.Handler(hub, opts.WSOrigins, logger))
			}
			r.Route("/users/{user}", func(r chi.Router) {
				r.Post("/lessons/{lesson}/quiz", h.submitQuiz)
				r.Post("/lessons/{lesson}/complete", h.completeLesson)
				r.Get("/lessons/{lesson}/attempts", h.attempts)
				r.Post("/levels/{level}/check", h.checkLevel)
				r.Get("/levels", h.levels)
				r.Get("/badges", h.earnedBadges)
				r.Post("/badges/check", h.checkBadges)
				r.Post("/badges/{badge}", h.awardBadge)
				r.Get("/stats", h.stats)
			})
			r.Get("/leaderboard", h.leaderboard)
			r.Get("/leaderboard/{user}", h.standing)
			r.Get("/kpis", h.kpiSnapshot)
		})
	})
	return r
}

func routePrefix(prefix string) string {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return "/"
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

type handlers struct {
	svc    *engine.Service
	board  leaderboard.Board
	kpis   *analytics.Funnel
	dau    *analytics.DAU
	logger *slog.Logger
	now    func() time.Time
}

const healthCheckUser = "healthcheck_user"

// health verifies storage with a read-only stats lookup.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "healthy", "checks": map[string]any{"storage": "ok"}}
	code := http.StatusOK
	if _, err := h.svc.Stats(r.Context(), healthCheckUser); err != nil {
		code = http.StatusServiceUnavailable
		status["status"] = "unhealthy"
		status["checks"] = map[string]any{"storage": "failed"}
	}
	writeJSONStatus(w, code, status)
}

type quizRequest struct {
	Answers []string `json:"answers"`
}

func (h *handlers) submitQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "body must be {\"answers\": [...]}", nil)
		return
	}
	res, err := h.svc.SubmitQuiz(r.Context(), chi.URLParam(r, "user"), chi.URLParam(r, "lesson"), req.Answers)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *handlers) completeLesson(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.CompleteLesson(r.Context(), chi.URLParam(r, "user"), chi.URLParam(r, "lesson"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *handlers) attempts(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.AttemptHistory(r.Context(), chi.URLParam(r, "user"), chi.URLParam(r, "lesson"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"attempts": nonNil(list)})
}

// levelProgressResponse exposes LevelProgress, whose badge list is internal.
type levelProgressResponse struct {
	LevelUnlocked        bool          `json:"level_unlocked"`
	NextLevelID          *core.LevelID `json:"next_level_id,omitempty"`
	CompletionPercentage float64       `json:"completion_percentage"`
}

func (h *handlers) checkLevel(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.CheckAndUnlockNextLevel(r.Context(), chi.URLParam(r, "user"), chi.URLParam(r, "level"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, levelProgressResponse{
		LevelUnlocked:        p.LevelUnlocked,
		NextLevelID:          p.NextLevelID,
		CompletionPercentage: p.CompletionPercentage,
	})
}

func (h *handlers) levels(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.LevelStatuses(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"levels": nonNil(list)})
}

func (h *handlers) earnedBadges(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.EarnedBadges(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"badges": nonNil(list)})
}

func (h *handlers) checkBadges(w http.ResponseWriter, r *http.Request) {
	ids, err := h.svc.CheckAndAwardBadges(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"new_badges": nonNil(ids)})
}

func (h *handlers) awardBadge(w http.ResponseWriter, r *http.Request) {
	ok, err := h.svc.ManuallyAwardBadge(r.Context(), chi.URLParam(r, "user"), chi.URLParam(r, "badge"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"awarded": ok})
}

type statsResponse struct {
	UserID           core.UserID    `json:"user_id"`
	LessonsCompleted int64          `json:"lessons_completed"`
	QuizzesPassed    int64          `json:"quizzes_passed"`
	PerfectScores    int64          `json:"perfect_scores"`
	LevelsUnlocked   int64          `json:"levels_unlocked"`
	Badges           []core.BadgeID `json:"badges"`
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, statsResponse{
		UserID:           st.UserID,
		LessonsCompleted: st.LessonsCompleted,
		QuizzesPassed:    st.QuizzesPassed,
		PerfectScores:    st.PerfectScores,
		LevelsUnlocked:   st.LevelsUnlocked,
		Badges:           nonNil(st.BadgeIDs()),
	})
}

func (h *handlers) leaderboard(w http.ResponseWriter, r *http.Request) {
	if h.board == nil {
		writeError(w, http.StatusNotFound, "not_found", "leaderboard disabled", nil)
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer in [1, 100]", nil)
			return
		}
		limit = n
	}
	writeJSON(w, map[string]any{"entries": h.board.TopN(limit)})
}

func (h *handlers) standing(w http.ResponseWriter, r *http.Request) {
	if h.board == nil {
		writeError(w, http.StatusNotFound, "not_found", "leaderboard disabled", nil)
		return
	}
	user, err := core.NormalizeUserID(core.UserID(chi.URLParam(r, "user")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	e, ok := h.board.Get(user)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "learner has no standing", nil)
		return
	}
	rank, _ := h.board.Rank(user)
	writeJSON(w, map[string]any{"entry": e, "rank": rank})
}

func (h *handlers) kpiSnapshot(w http.ResponseWriter, _ *http.Request) {
	if h.kpis == nil {
		writeError(w, http.StatusNotFound, "not_found", "kpis disabled", nil)
		return
	}
	resp := kpiResponse{Snapshot: h.kpis.Snapshot()}
	if h.dau != nil {
		n := h.dau.CountAt(h.now())
		resp.ActiveToday = &n
	}
	writeJSON(w, resp)
}

// kpiResponse adds today's active learners to the funnel snapshot.
type kpiResponse struct {
	analytics.Snapshot
	ActiveToday *int `json:"active_today,omitempty"`
}

// fail maps engine errors onto the apiError envelope. Store failures are
// logged and reported without their cause.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidIdentifier):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	default:
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, v any) { writeJSONStatus(w, http.StatusOK, v) }

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	writeJSONStatus(w, status, apiError{Code: code, Message: msg, Details: details})
}
