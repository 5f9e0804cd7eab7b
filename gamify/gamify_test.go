package gamify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samir777-eng/ebad-academy-sub001/adapters/curriculumfile"
	mem "github.com/samir777-eng/ebad-academy-sub001/adapters/memory"
	"github.com/samir777-eng/ebad-academy-sub001/analytics"
	"github.com/samir777-eng/ebad-academy-sub001/core"
	"github.com/samir777-eng/ebad-academy-sub001/engine"
	"github.com/samir777-eng/ebad-academy-sub001/realtime"
)

var starter = curriculumfile.Curriculum{
	Levels: []core.Level{{ID: 1, Number: 1, Title: "One"}, {ID: 2, Number: 2, Title: "Two"}},
	Lessons: []core.Lesson{{ID: 1, LevelID: 1, Title: "Basics", Questions: []core.Question{
		{ID: 1, Type: core.QuestionTrueFalse, CorrectAnswer: "true"},
	}}},
	Badges: []core.Badge{{ID: 1, Name: "Climber", Criteria: core.LevelCompleted{Value: 2}}},
}

func TestNew_WiresHubHooksAndNotifiers(t *testing.T) {
	ctx := context.Background()
	hub := realtime.NewHub()
	funnel := analytics.NewFunnel()
	var mu sync.Mutex
	var notified []core.EventType

	p, err := New(ctx,
		WithStorage(mem.New()),
		WithCurriculum(starter),
		WithDispatchMode(engine.DispatchSync),
		WithRealtime(hub),
		WithHooks(funnel),
		WithNotifier(engine.NotifierFunc(func(_ context.Context, e core.Event) error {
			mu.Lock()
			defer mu.Unlock()
			notified = append(notified, e.Type)
			return errors.New("endpoint down")
		})),
	)
	require.NoError(t, err)
	defer p.Close()

	_, ch := hub.Subscribe(16, "alice")
	_, err = p.SubmitQuiz(ctx, "alice", "1", []string{"true"})
	require.NoError(t, err)
	done, err := p.CompleteLesson(ctx, "alice", "1")
	require.NoError(t, err)
	assert.True(t, done.LevelUnlocked)

	select {
	case ev := <-ch:
		assert.Equal(t, core.EventQuizGraded, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("hub received nothing")
	}
	assert.Equal(t, int64(1), funnel.Snapshot().QuizSubmissions)
	mu.Lock()
	assert.ElementsMatch(t, []core.EventType{core.EventLevelUnlocked, core.EventBadgeAwarded}, notified)
	mu.Unlock()
}

func TestNew_Defaults(t *testing.T) {
	p, err := New(context.Background(), WithCurriculum(starter))
	require.NoError(t, err)
	defer p.Close()

	res, err := p.SubmitQuiz(context.Background(), "bob", "1", []string{"false"})
	require.NoError(t, err)
	assert.False(t, res.Passed)
}

type readOnlyStore struct{ engine.Storage }

func TestNew_CurriculumNeedsWriter(t *testing.T) {
	_, err := New(context.Background(), WithStorage(readOnlyStore{mem.New()}), WithCurriculum(starter))
	require.ErrorIs(t, err, errCurriculumUnsupported)
}
