package curriculumfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samir777-eng/ebad-academy-sub001/adapters/memory"
	"github.com/samir777-eng/ebad-academy-sub001/core"
)

const sampleYAML = `
levels:
  - id: 1
    number: 1
    title: Foundations
  - id: 2
    number: 2
    title: Practice
lessons:
  - id: 10
    level_id: 1
    branch_id: 1
    title: Pillars
    questions:
      - id: 100
        position: 0
        type: multiple_choice
        correct_answer: B
        options: [A, B, C]
      - id: 101
        position: 1
        type: true_false
        correct_answer: "true"
badges:
  - id: 1
    name: First Step
    criteria: {type: lessons_completed, value: 1}
  - id: 2
    name: Mentor
    criteria: {type: manual}
`

func TestLoadYAMLAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curriculum.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	store := memory.New()
	c, err := LoadInto(context.Background(), path, store)
	require.NoError(t, err)
	assert.Len(t, c.Levels, 2)

	lesson, err := store.GetLesson(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, lesson.Questions, 2)
	assert.Equal(t, core.LessonID(10), lesson.Questions[0].LessonID)
	assert.Equal(t, []string{"A", "B", "C"}, lesson.Questions[0].Options)
	assert.Equal(t, "true", lesson.Questions[1].CorrectAnswer)

	badge, err := store.GetBadge(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, core.LessonsCompleted{Value: 1}, badge.Criteria)

	auto, err := store.ListAutoBadges(context.Background())
	require.NoError(t, err)
	assert.Len(t, auto, 1)
}

func TestSaveAndLoadJSON(t *testing.T) {
	c, err := DecodeYAML([]byte(sampleYAML))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "curriculum.json")
	require.NoError(t, Save(path, c))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, loaded)
}

func TestValidateRejectsBrokenDocuments(t *testing.T) {
	cases := map[string]string{
		"duplicate number":   `{"levels":[{"id":1,"number":1},{"id":2,"number":1}]}`,
		"unknown level":      `{"levels":[{"id":1,"number":1}],"lessons":[{"id":5,"level_id":9}]}`,
		"duplicate lesson":   `{"levels":[{"id":1,"number":1}],"lessons":[{"id":5,"level_id":1},{"id":5,"level_id":1}]}`,
		"zero badge id":      `{"badges":[{"id":0,"name":"x","criteria":{"type":"manual"}}]}`,
		"duplicate position": `{"levels":[{"id":1,"number":1}],"lessons":[{"id":5,"level_id":1,"questions":[{"id":1,"position":0},{"id":2,"position":0}]}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeJSON([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestDecodeRejectsBadCriteriaAndUnknownFields(t *testing.T) {
	_, err := DecodeJSON([]byte(`{"badges":[{"id":1,"name":"x","criteria":{"type":"streak","value":2}}]}`))
	assert.ErrorIs(t, err, core.ErrInvalidCriteria)

	_, err = DecodeJSON([]byte(`{"levels":[],"points":{}}`))
	assert.Error(t, err)
}
