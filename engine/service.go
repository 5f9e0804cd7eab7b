package engine

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samir777-eng/ebad-academy-sub001/core"
)

const tracerName = "github.com/samir777-eng/ebad-academy-sub001/engine"

// Service wires storage, the event bus and the progression rules into one API.
type Service struct {
	storage Storage
	bus     *EventBus
	clock   Clock
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the timestamp source.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger used for swallowed downstream failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracer replaces the tracer taken from the global otel provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func NewService(storage Storage, bus *EventBus, opts ...Option) *Service {
	if storage == nil || bus == nil {
		panic("NewService requires non-nil storage and bus")
	}
	s := &Service{
		storage: storage,
		bus:     bus,
		clock:   SystemClock(),
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Subscribe convenience method.
func (s *Service) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

// AttachNotifier forwards level_unlocked and badge_awarded events to n.
// Notifier errors are logged and never reach the caller of an entry point.
// Pair with an async bus to keep delivery off the request path.
func (s *Service) AttachNotifier(n Notifier) func() {
	handler := func(ctx context.Context, ev core.Event) {
		if err := n.Notify(ctx, ev); err != nil {
			s.logger.Warn("notification failed",
				"event_id", ev.ID,
				"event_type", string(ev.Type),
				"user_id", string(ev.UserID),
				"error", err)
		}
	}
	u1 := s.bus.Subscribe(core.EventLevelUnlocked, handler)
	u2 := s.bus.Subscribe(core.EventBadgeAwarded, handler)
	return func() {
		u1()
		u2()
	}
}

func (s *Service) publish(ctx context.Context, ev core.Event) {
	s.bus.Publish(ctx, ev)
}

func (s *Service) startSpan(ctx context.Context, name string, user core.UserID) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("user.id", string(user))))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// QuizResult is returned by SubmitQuiz.
type QuizResult struct {
	Score                int            `json:"score"`
	Passed               bool           `json:"passed"`
	CorrectAnswers       int            `json:"correct_answers"`
	TotalQuestions       int            `json:"total_questions"`
	AttemptID            core.AttemptID `json:"attempt_id"`
	LevelUnlocked        bool           `json:"level_unlocked"`
	NextLevelID          *core.LevelID  `json:"next_level_id,omitempty"`
	CompletionPercentage float64        `json:"completion_percentage"`
	NewBadges            []core.BadgeID `json:"new_badges"`
}

// SubmitQuiz grades answers for a lesson, records the attempt and then
// advances level progress and badges. Once the attempt is stored the grade
// is always returned; later failures only degrade the progression fields.
func (s *Service) SubmitQuiz(ctx context.Context, userID, lessonID string, answers []string) (res QuizResult, err error) {
	user, err := core.NormalizeUserID(core.UserID(userID))
	if err != nil {
		return QuizResult{}, err
	}
	lid, err := core.ParseID[core.LessonID]("lesson", lessonID)
	if err != nil {
		return QuizResult{}, err
	}
	ctx, span := s.startSpan(ctx, "engine.SubmitQuiz", user)
	span.SetAttributes(attribute.Int64("lesson.id", int64(lid)))
	defer func() { endSpan(span, err) }()

	lesson, err := s.storage.GetLesson(ctx, lid)
	if err != nil {
		return QuizResult{}, err
	}
	grade := core.GradeAnswers(lesson.Questions, answers)
	attempt, err := s.storage.RecordAttempt(ctx, core.QuizAttempt{
		UserID:         user,
		LessonID:       lid,
		Score:          grade.Score,
		TotalQuestions: grade.TotalQuestions,
		CorrectAnswers: grade.CorrectAnswers,
		Passed:         grade.Passed,
		AttemptDate:    s.clock.Now(),
	})
	if err != nil {
		return QuizResult{}, err
	}
	s.publish(ctx, core.NewQuizGraded(user, attempt))
	span.SetAttributes(attribute.Int("quiz.score", grade.Score), attribute.Bool("quiz.passed", grade.Passed))

	res = QuizResult{
		Score:          grade.Score,
		Passed:         grade.Passed,
		CorrectAnswers: grade.CorrectAnswers,
		TotalQuestions: grade.TotalQuestions,
		AttemptID:      attempt.ID,
		NewBadges:      []core.BadgeID{},
	}
	p := s.advance(ctx, user, lesson.LevelID)
	res.LevelUnlocked, res.NextLevelID, res.CompletionPercentage = p.LevelUnlocked, p.NextLevelID, p.CompletionPercentage
	res.NewBadges = p.newBadges
	return res, nil
}

// LessonCompletion is returned by CompleteLesson.
type LessonCompletion struct {
	LessonID             core.LessonID  `json:"lesson_id"`
	FullyComplete        bool           `json:"fully_complete"`
	LevelUnlocked        bool           `json:"level_unlocked"`
	NextLevelID          *core.LevelID  `json:"next_level_id,omitempty"`
	CompletionPercentage float64        `json:"completion_percentage"`
	NewBadges            []core.BadgeID `json:"new_badges"`
}

// CompleteLesson records that the learner finished viewing a lesson and
// re-evaluates the lesson's level. Progression failures degrade like SubmitQuiz.
func (s *Service) CompleteLesson(ctx context.Context, userID, lessonID string) (res LessonCompletion, err error) {
	user, err := core.NormalizeUserID(core.UserID(userID))
	if err != nil {
		return LessonCompletion{}, err
	}
	lid, err := core.ParseID[core.LessonID]("lesson", lessonID)
	if err != nil {
		return LessonCompletion{}, err
	}
	ctx, span := s.startSpan(ctx, "engine.CompleteLesson", user)
	defer func() { endSpan(span, err) }()

	lesson, err := s.storage.GetLesson(ctx, lid)
	if err != nil {
		return LessonCompletion{}, err
	}
	now := s.clock.Now()
	changed, err := s.storage.MarkLessonCompleted(ctx, user, lid, now)
	if err != nil {
		return LessonCompletion{}, err
	}
	if changed {
		s.publish(ctx, core.NewLessonCompleted(user, lid, now))
	}

	res = LessonCompletion{LessonID: lid, NewBadges: []core.BadgeID{}}
	full, err := LessonFullyComplete(ctx, s.storage, user, lid)
	if err != nil {
		s.logger.Warn("completion check failed", "user_id", string(user), "lesson_id", int64(lid), "error", err)
	}
	res.FullyComplete = full
	p := s.advance(ctx, user, lesson.LevelID)
	res.LevelUnlocked, res.NextLevelID, res.CompletionPercentage = p.LevelUnlocked, p.NextLevelID, p.CompletionPercentage
	res.NewBadges = p.newBadges
	return res, nil
}

// advance runs the level calculator then the badge evaluator. Errors are
// logged and leave zero values in place. newBadges holds every award made
// along the way, never nil.
func (s *Service) advance(ctx context.Context, user core.UserID, level core.LevelID) LevelProgress {
	progress, err := s.checkLevel(ctx, user, level)
	if err != nil {
		s.logger.Error("level progression failed", "user_id", string(user), "level_id", int64(level), "error", err)
		progress = LevelProgress{}
	}
	awarded, err := s.awardBadges(ctx, user)
	if err != nil {
		s.logger.Error("badge evaluation failed", "user_id", string(user), "error", err)
	}
	progress.newBadges = mergeBadges(progress.newBadges, awarded)
	return progress
}

func mergeBadges(a, b []core.BadgeID) []core.BadgeID {
	out := make([]core.BadgeID, 0, len(a)+len(b))
	seen := make(map[core.BadgeID]struct{}, len(a)+len(b))
	for _, list := range [][]core.BadgeID{a, b} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// AttemptHistory lists a learner's attempts for a lesson, newest first.
func (s *Service) AttemptHistory(ctx context.Context, userID, lessonID string) ([]core.QuizAttempt, error) {
	user, err := core.NormalizeUserID(core.UserID(userID))
	if err != nil {
		return nil, err
	}
	lid, err := core.ParseID[core.LessonID]("lesson", lessonID)
	if err != nil {
		return nil, err
	}
	return s.storage.ListAttempts(ctx, user, lid)
}

// LevelStatuses returns every status row held by the learner.
func (s *Service) LevelStatuses(ctx context.Context, userID string) ([]core.UserLevelStatus, error) {
	user, err := core.NormalizeUserID(core.UserID(userID))
	if err != nil {
		return nil, err
	}
	return s.storage.ListLevelStatuses(ctx, user)
}

// EarnedBadges lists the learner's awards, oldest first.
func (s *Service) EarnedBadges(ctx context.Context, userID string) ([]core.UserBadge, error) {
	user, err := core.NormalizeUserID(core.UserID(userID))
	if err != nil {
		return nil, err
	}
	return s.storage.ListUserBadges(ctx, user)
}

// Stats returns the aggregate counters used by badge rules.
func (s *Service) Stats(ctx context.Context, userID string) (core.UserStats, error) {
	user, err := core.NormalizeUserID(core.UserID(userID))
	if err != nil {
		return core.UserStats{}, err
	}
	return s.storage.GetUserStats(ctx, user)
}
