package leaderboard_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "github.com/samir777-eng/ebad-academy-sub001/adapters/memory"
	"github.com/samir777-eng/ebad-academy-sub001/core"
	"github.com/samir777-eng/ebad-academy-sub001/engine"
	"github.com/samir777-eng/ebad-academy-sub001/leaderboard"
)

func trackedService(t *testing.T) (*engine.Service, *leaderboard.Tracker) {
	t.Helper()
	ctx := context.Background()
	store := mem.New()
	for _, l := range []core.Level{{ID: 10, Number: 1}, {ID: 20, Number: 2}, {ID: 30, Number: 3}} {
		require.NoError(t, store.PutLevel(ctx, l))
	}
	for _, l := range []core.Lesson{
		{ID: 101, LevelID: 10, Questions: []core.Question{{ID: 1, CorrectAnswer: "T"}}},
		{ID: 201, LevelID: 20, Questions: []core.Question{{ID: 2, CorrectAnswer: "T"}}},
	} {
		require.NoError(t, store.PutLesson(ctx, l))
	}
	require.NoError(t, store.PutBadge(ctx, core.Badge{ID: 1, Name: "Climber", Criteria: core.LevelCompleted{Value: 3}}))

	bus := engine.NewEventBus(engine.DispatchSync)
	tracker := leaderboard.NewTracker(leaderboard.NewSkipList(), store)
	bus.SubscribeAll(func(_ context.Context, e core.Event) { tracker.OnEvent(e) })
	return engine.NewService(store, bus), tracker
}

func TestTracker_MatchesStatsAfterSkippedLevelCascade(t *testing.T) {
	svc, tracker := trackedService(t)
	ctx := context.Background()

	// viewing a level 20 lesson bootstraps its status row without an unlock event
	_, err := svc.CompleteLesson(ctx, "u1", "201")
	require.NoError(t, err)
	e, ok := tracker.Board().Get("u1")
	require.True(t, ok)
	assert.Equal(t, int64(1), e.Levels)

	// passing it completes level 20 and the cascade heals 10, 20 and 30 at once
	res, err := svc.SubmitQuiz(ctx, "u1", "201", []string{"T"})
	require.NoError(t, err)
	require.True(t, res.LevelUnlocked)

	stats, err := svc.Stats(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.LevelsUnlocked)

	e, ok = tracker.Board().Get("u1")
	require.True(t, ok)
	assert.Equal(t, stats.LevelsUnlocked, e.Levels)
	assert.Equal(t, int64(len(stats.Badges)), e.Badges)
	assert.Equal(t, int64(1), e.Badges)
}
