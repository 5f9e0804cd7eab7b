package core

import (
	"encoding/json"
	"fmt"
)

// CriteriaType is the serialized tag of a badge rule.
type CriteriaType string

const (
	CriteriaLessonsCompleted CriteriaType = "lessons_completed"
	CriteriaLevelCompleted   CriteriaType = "level_completed"
	CriteriaQuizzesPassed    CriteriaType = "quizzes_passed"
	CriteriaPerfectScore     CriteriaType = "perfect_score"
	CriteriaManual           CriteriaType = "manual"
)

// Criteria is a decoded badge rule. The set of implementations is closed;
// blobs are decoded once at the storage boundary with DecodeCriteria.
type Criteria interface {
	Type() CriteriaType
	// Satisfied reports whether stats meet the rule. Manual rules never are.
	Satisfied(stats UserStats) bool
	isCriteria()
}

// LessonsCompleted requires at least Value completed lessons.
type LessonsCompleted struct{ Value int64 }

// LevelCompleted requires at least Value unlocked levels, i.e. Value-1 finished ones.
type LevelCompleted struct{ Value int64 }

// QuizzesPassed requires at least Value passed attempts.
type QuizzesPassed struct{ Value int64 }

// PerfectScore requires at least Value attempts scoring 100.
type PerfectScore struct{ Value int64 }

// Manual badges are only awarded by an explicit admin action.
type Manual struct{}

func (LessonsCompleted) Type() CriteriaType { return CriteriaLessonsCompleted }
func (LevelCompleted) Type() CriteriaType { return CriteriaLevelCompleted }
func (QuizzesPassed) Type() CriteriaType { return CriteriaQuizzesPassed }
func (PerfectScore) Type() CriteriaType { return CriteriaPerfectScore }
func (Manual) Type() CriteriaType { return CriteriaManual }

func (c LessonsCompleted) Satisfied(s UserStats) bool { return s.LessonsCompleted >= c.Value }
func (c LevelCompleted) Satisfied(s UserStats) bool { return s.LevelsUnlocked >= c.Value }
func (c QuizzesPassed) Satisfied(s UserStats) bool { return s.QuizzesPassed >= c.Value }
func (c PerfectScore) Satisfied(s UserStats) bool { return s.PerfectScores >= c.Value }
func (Manual) Satisfied(UserStats) bool { return false }

func (LessonsCompleted) isCriteria() {}
func (LevelCompleted) isCriteria() {}
func (QuizzesPassed) isCriteria() {}
func (PerfectScore) isCriteria() {}
func (Manual) isCriteria() {}

type criteriaWire struct {
	Type  CriteriaType `json:"type"`
	Value *int64       `json:"value,omitempty"`
}

// DecodeCriteria parses the serialized {type, value?} form. Threshold rules
// require a non-negative value; unknown tags are rejected.
func DecodeCriteria(raw []byte) (Criteria, error) {
	var w criteriaWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCriteria, err)
	}
	if w.Type == CriteriaManual {
		return Manual{}, nil
	}
	if w.Value == nil || *w.Value < 0 {
		return nil, fmt.Errorf("%w: %q needs a non-negative value", ErrInvalidCriteria, w.Type)
	}
	v := *w.Value
	switch w.Type {
	case CriteriaLessonsCompleted:
		return LessonsCompleted{Value: v}, nil
	case CriteriaLevelCompleted:
		return LevelCompleted{Value: v}, nil
	case CriteriaQuizzesPassed:
		return QuizzesPassed{Value: v}, nil
	case CriteriaPerfectScore:
		return PerfectScore{Value: v}, nil
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidCriteria, w.Type)
}

// EncodeCriteria renders c in the serialized {type, value?} form.
func EncodeCriteria(c Criteria) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil criteria", ErrInvalidCriteria)
	}
	w := criteriaWire{Type: c.Type()}
	switch v := c.(type) {
	case LessonsCompleted:
		w.Value = &v.Value
	case LevelCompleted:
		w.Value = &v.Value
	case QuizzesPassed:
		w.Value = &v.Value
	case PerfectScore:
		w.Value = &v.Value
	}
	return json.Marshal(w)
}

// Badge is a globally authored achievement.
type Badge struct {
	ID          BadgeID  `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Criteria    Criteria `json:"-"`
}

type badgeJSON struct {
	ID          BadgeID         `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Icon        string          `json:"icon,omitempty"`
	Criteria    json.RawMessage `json:"criteria"`
}

func (b Badge) MarshalJSON() ([]byte, error) {
	crit, err := EncodeCriteria(b.Criteria)
	if err != nil {
		return nil, err
	}
	return json.Marshal(badgeJSON{ID: b.ID, Name: b.Name, Description: b.Description, Icon: b.Icon, Criteria: crit})
}

func (b *Badge) UnmarshalJSON(data []byte) error {
	var raw badgeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	crit, err := DecodeCriteria(raw.Criteria)
	if err != nil {
		return fmt.Errorf("badge %d: %w", raw.ID, err)
	}
	*b = Badge{ID: raw.ID, Name: raw.Name, Description: raw.Description, Icon: raw.Icon, Criteria: crit}
	return nil
}

// IsAutomatic reports whether the badge is evaluated by the rule evaluator.
func (b Badge) IsAutomatic() bool {
	return b.Criteria != nil && b.Criteria.Type() != CriteriaManual
}
