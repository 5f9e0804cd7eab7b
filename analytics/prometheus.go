package analytics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/samir777-eng/ebad-academy-sub001/core"
)

// PrometheusHook exports progression events as Prometheus counters.
type PrometheusHook struct {
	quizzes  *prometheus.CounterVec
	scores   prometheus.Histogram
	lessons  prometheus.Counter
	unlocks  *prometheus.CounterVec
	progress prometheus.Counter
	badges   *prometheus.CounterVec
}

// NewPrometheusHook registers the progression collectors on reg.
func NewPrometheusHook(reg prometheus.Registerer, namespace string) (*PrometheusHook, error) {
	h := &PrometheusHook{
		quizzes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quiz_submissions_total",
			Help:      "Graded quiz submissions by outcome.",
		}, []string{"outcome"}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quiz_score_percent",
			Help:      "Distribution of quiz scores.",
			Buckets:   []float64{20, 40, float64(core.PassingScore), 80, 90, 100},
		}),
		lessons: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lessons_completed_total",
			Help:      "Lessons marked completed.",
		}),
		unlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "level_unlocks_total",
			Help:      "Levels unlocked by the cascade.",
		}, []string{"level_id"}),
		progress: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "level_progress_updates_total",
			Help:      "Level completion percentage recalculations.",
		}),
		badges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "badges_awarded_total",
			Help:      "Badges granted to learners.",
		}, []string{"badge_id"}),
	}
	for _, c := range []prometheus.Collector{h.quizzes, h.scores, h.lessons, h.unlocks, h.progress, h.badges} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *PrometheusHook) OnEvent(e core.Event) {
	switch e.Type {
	case core.EventQuizGraded:
		outcome := "failed"
		if e.Passed {
			outcome = "passed"
		}
		h.quizzes.WithLabelValues(outcome).Inc()
		h.scores.Observe(float64(e.Score))
	case core.EventLessonCompleted:
		h.lessons.Inc()
	case core.EventLevelProgressed:
		h.progress.Inc()
	case core.EventLevelUnlocked:
		h.unlocks.WithLabelValues(strconv.FormatInt(int64(e.LevelID), 10)).Inc()
	case core.EventBadgeAwarded:
		h.badges.WithLabelValues(strconv.FormatInt(int64(e.BadgeID), 10)).Inc()
	}
}
