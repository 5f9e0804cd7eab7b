package core

import (
	"math"
	"sort"
)

// PassingScore is the minimum rounded percentage that passes a quiz.
const PassingScore = 60

// Grade is the outcome of scoring one submission.
type Grade struct {
	Score          int  `json:"score"`
	CorrectAnswers int  `json:"correct_answers"`
	TotalQuestions int  `json:"total_questions"`
	Passed         bool `json:"passed"`
}

// GradeAnswers scores answers positionally against the lesson questions.
// Comparison is exact string equality. Only min(len(questions), len(answers))
// positions are compared; missing answers count as incorrect. A lesson without
// questions scores 0.
func GradeAnswers(questions []Question, answers []string) Grade {
	ordered := make([]Question, len(questions))
	copy(ordered, questions)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	g := Grade{TotalQuestions: len(ordered)}
	n := min(len(ordered), len(answers))
	for i := 0; i < n; i++ {
		if ordered[i].CorrectAnswer == answers[i] {
			g.CorrectAnswers++
		}
	}
	g.Score = Percent(g.CorrectAnswers, g.TotalQuestions)
	g.Passed = g.Score >= PassingScore
	return g
}

// Percent returns round(100*part/total), or 0 when total is not positive.
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}

// CompletionPercentage is the unrounded share of fully complete lessons.
func CompletionPercentage(complete, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * float64(complete) / float64(total)
}
