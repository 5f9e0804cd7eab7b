package analytics

import (
	"sort"
	"sync"
	"time"

	"github.com/samir777-eng/ebad-academy-sub001/core"
)

// Hook receives domain events for KPI aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

// HookFunc adapts a function to Hook.
type HookFunc func(e core.Event)

func (f HookFunc) OnEvent(e core.Event) { f(e) }

func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

// DAU tracks daily active learners.
type DAU struct {
	mu   sync.Mutex
	days map[string]map[core.UserID]struct{}
}

func NewDAU() *DAU { return &DAU{days: map[string]map[core.UserID]struct{}{}} }

func (d *DAU) OnEvent(e core.Event) {
	day := dayKey(e.Time)
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.days[day]
	if m == nil {
		m = map[core.UserID]struct{}{}
		d.days[day] = m
	}
	m[e.UserID] = struct{}{}
}

// CountAt returns the active learners on t's UTC day.
func (d *DAU) CountAt(t time.Time) int { return d.Count(dayKey(t)) }

func (d *DAU) Count(day string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days[day])
}

// Funnel aggregates learning KPIs: quiz volume and pass rate, lesson
// completions, unlocks per level and badge holders.
type Funnel struct {
	mu             sync.RWMutex
	quizzes        int64
	passed         int64
	perfect        int64
	scoreSum       int64
	lessons        int64
	unlocksByLevel map[core.LevelID]int64
	badgeHolders   map[core.BadgeID]map[core.UserID]struct{}
	learners       map[core.UserID]struct{}
	quizzesByDay   map[string]int64
	lastEventAt    time.Time
}

func NewFunnel() *Funnel {
	return &Funnel{
		unlocksByLevel: map[core.LevelID]int64{},
		badgeHolders:   map[core.BadgeID]map[core.UserID]struct{}{},
		learners:       map[core.UserID]struct{}{},
		quizzesByDay:   map[string]int64{},
	}
}

func (f *Funnel) OnEvent(e core.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.learners[e.UserID] = struct{}{}
	if e.Time.After(f.lastEventAt) {
		f.lastEventAt = e.Time
	}
	switch e.Type {
	case core.EventQuizGraded:
		f.quizzes++
		f.scoreSum += int64(e.Score)
		f.quizzesByDay[dayKey(e.Time)]++
		if e.Passed {
			f.passed++
		}
		if e.Score == 100 {
			f.perfect++
		}
	case core.EventLessonCompleted:
		f.lessons++
	case core.EventLevelUnlocked:
		f.unlocksByLevel[e.LevelID]++
	case core.EventBadgeAwarded:
		holders := f.badgeHolders[e.BadgeID]
		if holders == nil {
			holders = map[core.UserID]struct{}{}
			f.badgeHolders[e.BadgeID] = holders
		}
		holders[e.UserID] = struct{}{}
	}
}

// Snapshot is a point-in-time copy of the funnel.
type Snapshot struct {
	Learners         int                    `json:"learners"`
	QuizSubmissions  int64                  `json:"quiz_submissions"`
	QuizzesPassed    int64                  `json:"quizzes_passed"`
	PerfectScores    int64                  `json:"perfect_scores"`
	PassRate         float64                `json:"pass_rate"`
	AverageScore     float64                `json:"average_score"`
	LessonsCompleted int64                  `json:"lessons_completed"`
	UnlocksByLevel   map[core.LevelID]int64 `json:"unlocks_by_level"`
	BadgeHolders     map[core.BadgeID]int   `json:"badge_holders"`
	QuizzesByDay     []DayCount             `json:"quizzes_by_day"`
	LastEventAt      time.Time              `json:"last_event_at"`
}

// DayCount is one day's quiz submission total.
type DayCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

func (f *Funnel) Snapshot() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s := Snapshot{
		Learners:         len(f.learners),
		QuizSubmissions:  f.quizzes,
		QuizzesPassed:    f.passed,
		PerfectScores:    f.perfect,
		LessonsCompleted: f.lessons,
		UnlocksByLevel:   make(map[core.LevelID]int64, len(f.unlocksByLevel)),
		BadgeHolders:     make(map[core.BadgeID]int, len(f.badgeHolders)),
		QuizzesByDay:     make([]DayCount, 0, len(f.quizzesByDay)),
		LastEventAt:      f.lastEventAt,
	}
	if f.quizzes > 0 {
		s.PassRate = float64(f.passed) / float64(f.quizzes)
		s.AverageScore = float64(f.scoreSum) / float64(f.quizzes)
	}
	for id, n := range f.unlocksByLevel {
		s.UnlocksByLevel[id] = n
	}
	for id, holders := range f.badgeHolders {
		s.BadgeHolders[id] = len(holders)
	}
	for day, n := range f.quizzesByDay {
		s.QuizzesByDay = append(s.QuizzesByDay, DayCount{Day: day, Count: n})
	}
	sort.Slice(s.QuizzesByDay, func(i, j int) bool { return s.QuizzesByDay[i].Day < s.QuizzesByDay[j].Day })
	return s
}
