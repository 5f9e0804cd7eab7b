package leaderboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samir777-eng/ebad-academy-sub001/core"
)

// Entry is one learner's standing. Learners rank by badges earned, then by
// levels unlocked, then by user id.
type Entry struct {
	User   core.UserID `json:"user_id"`
	Badges int64       `json:"badges"`
	Levels int64       `json:"levels_unlocked"`
}

// Board abstracts standings operations.
type Board interface {
	Update(e Entry)
	Remove(user core.UserID)
	TopN(n int) []Entry
	Get(user core.UserID) (Entry, bool)
	Rank(user core.UserID) (int, bool)
}

// StatsReader loads a learner's persisted counters. engine.Storage satisfies it.
type StatsReader interface {
	GetUserStats(ctx context.Context, user core.UserID) (core.UserStats, error)
}

const loadTimeout = 5 * time.Second

// Tracker keeps a Board current from progression events. Each event that can
// move a standing reloads the learner's stats, so the board always agrees
// with storage however many levels a single unlock covered.
type Tracker struct {
	mu     sync.Mutex
	board  Board
	stats  StatsReader
	logger *slog.Logger
}

func NewTracker(board Board, stats StatsReader) *Tracker {
	return &Tracker{board: board, stats: stats, logger: slog.Default()}
}

// Board returns the tracked board.
func (t *Tracker) Board() Board { return t.board }

// Seed replaces a learner's standing with persisted stats.
func (t *Tracker) Seed(stats core.UserStats) {
	t.board.Update(Entry{User: stats.UserID, Badges: int64(len(stats.Badges)), Levels: stats.LevelsUnlocked})
}

// OnEvent refreshes the learner behind badge, unlock and level progress
// events. Load failures keep the previous standing.
func (t *Tracker) OnEvent(e core.Event) {
	switch e.Type {
	case core.EventBadgeAwarded, core.EventLevelUnlocked, core.EventLevelProgressed:
	default:
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	t.mu.Lock()
	defer t.mu.Unlock()
	stats, err := t.stats.GetUserStats(ctx, e.UserID)
	if err != nil {
		t.logger.Warn("leaderboard refresh failed", "user_id", string(e.UserID), "error", err)
		return
	}
	stats.UserID = e.UserID
	t.Seed(stats)
}
