package sqlx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	libsqlx "github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/samir777-eng/ebad-academy-sub001/core"
	"github.com/samir777-eng/ebad-academy-sub001/engine"
)

// Store is a relational Storage implementation over sqlx.
// Queries are written with ? placeholders and rebound per driver.
type Store struct {
	db     *libsqlx.DB
	driver Driver
}

// NewWithDB wraps an existing connection. The schema is not touched.
func NewWithDB(db *libsqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *libsqlx.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

type levelRow struct {
	ID     int64  `db:"id"`
	Number int    `db:"level_number"`
	Title  string `db:"title"`
}

func (r levelRow) toCore() core.Level {
	return core.Level{ID: core.LevelID(r.ID), Number: r.Number, Title: r.Title}
}

type lessonRow struct {
	ID       int64  `db:"id"`
	LevelID  int64  `db:"level_id"`
	BranchID int64  `db:"branch_id"`
	Title    string `db:"title"`
}

func (r lessonRow) toCore() core.Lesson {
	return core.Lesson{ID: core.LessonID(r.ID), LevelID: core.LevelID(r.LevelID), BranchID: core.BranchID(r.BranchID), Title: r.Title}
}

type questionRow struct {
	ID            int64  `db:"id"`
	LessonID      int64  `db:"lesson_id"`
	SortOrder     int    `db:"sort_order"`
	Type          string `db:"question_type"`
	CorrectAnswer string `db:"correct_answer"`
	Options       string `db:"options"`
}

type badgeRow struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Icon        string `db:"icon"`
	Criteria    string `db:"criteria"`
}

func (r badgeRow) toCore() (core.Badge, error) {
	c, err := core.DecodeCriteria([]byte(r.Criteria))
	if err != nil {
		return core.Badge{}, fmt.Errorf("badge %d: %w", r.ID, err)
	}
	return core.Badge{ID: core.BadgeID(r.ID), Name: r.Name, Description: r.Description, Icon: r.Icon, Criteria: c}, nil
}

type attemptRow struct {
	ID             int64  `db:"id"`
	UserID         string `db:"user_id"`
	LessonID       int64  `db:"lesson_id"`
	Score          int    `db:"score"`
	TotalQuestions int    `db:"total_questions"`
	CorrectAnswers int    `db:"correct_answers"`
	Passed         bool   `db:"passed"`
	AttemptDate    int64  `db:"attempt_date"`
}

func (r attemptRow) toCore() core.QuizAttempt {
	return core.QuizAttempt{
		ID:             core.AttemptID(r.ID),
		UserID:         core.UserID(r.UserID),
		LessonID:       core.LessonID(r.LessonID),
		Score:          r.Score,
		TotalQuestions: r.TotalQuestions,
		CorrectAnswers: r.CorrectAnswers,
		Passed:         r.Passed,
		AttemptDate:    fromMillis(r.AttemptDate),
	}
}

type statusRow struct {
	UserID     string        `db:"user_id"`
	LevelID    int64         `db:"level_id"`
	IsUnlocked bool          `db:"is_unlocked"`
	Percentage float64       `db:"completion_percentage"`
	UnlockedAt sql.NullInt64 `db:"unlocked_at"`
}

func (r statusRow) toCore() core.UserLevelStatus {
	st := core.UserLevelStatus{
		UserID:               core.UserID(r.UserID),
		LevelID:              core.LevelID(r.LevelID),
		IsUnlocked:           r.IsUnlocked,
		CompletionPercentage: r.Percentage,
	}
	if r.UnlockedAt.Valid {
		t := fromMillis(r.UnlockedAt.Int64)
		st.UnlockedAt = &t
	}
	return st
}

func millis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", core.ErrStoreFailure, op, err)
}

func notFoundOr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return storeErr(op, err)
}

// isUniqueViolation recognises duplicate-key errors from every supported driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// upsertSQL builds an insert that updates the named columns on a key collision.
func (s *Store) upsertSQL(table string, cols, keys, updates []string) string {
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	set := make([]string, len(updates))
	if s.driver == DriverMySQL {
		for i, c := range updates {
			set[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
		}
		q += " ON DUPLICATE KEY UPDATE " + strings.Join(set, ", ")
	} else {
		for i, c := range updates {
			set[i] = fmt.Sprintf("%s = excluded.%s", c, c)
		}
		q += fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(keys, ", "), strings.Join(set, ", "))
	}
	return s.db.Rebind(q)
}

// insertAbsentSQL builds an insert that does nothing on a key collision.
func (s *Store) insertAbsentSQL(table string, cols, keys []string) string {
	values := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	if s.driver == DriverMySQL {
		return fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), values)
	}
	return s.db.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING",
		table, strings.Join(cols, ", "), values, strings.Join(keys, ", ")))
}

// setOnce runs a guarded update and, when it touches nothing, an insert of
// the missing row. It reports whether either statement changed a row.
func (s *Store) setOnce(ctx context.Context, tx *libsqlx.Tx, update string, updateArgs []any, insert string, insertArgs []any) (bool, error) {
	res, err := tx.ExecContext(ctx, update, updateArgs...)
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, err
	} else if n > 0 {
		return true, nil
	}
	res, err = tx.ExecContext(ctx, insert, insertArgs...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *libsqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storeErr("begin", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

// Curriculum

func (s *Store) PutLevel(ctx context.Context, level core.Level) error {
	q := s.upsertSQL("levels", []string{"id", "level_number", "title"}, []string{"id"}, []string{"level_number", "title"})
	if _, err := s.db.ExecContext(ctx, q, int64(level.ID), level.Number, level.Title); err != nil {
		return storeErr("put level", err)
	}
	return nil
}

// PutLesson upserts the lesson and replaces its questions.
func (s *Store) PutLesson(ctx context.Context, lesson core.Lesson) error {
	return s.withTx(ctx, func(tx *libsqlx.Tx) error {
		q := s.upsertSQL("lessons", []string{"id", "level_id", "branch_id", "title"}, []string{"id"}, []string{"level_id", "branch_id", "title"})
		if _, err := tx.ExecContext(ctx, q, int64(lesson.ID), int64(lesson.LevelID), int64(lesson.BranchID), lesson.Title); err != nil {
			return storeErr("put lesson", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM questions WHERE lesson_id = ?`), int64(lesson.ID)); err != nil {
			return storeErr("clear questions", err)
		}
		insert := tx.Rebind(`INSERT INTO questions (id, lesson_id, sort_order, question_type, correct_answer, options) VALUES (?, ?, ?, ?, ?, ?)`)
		for _, qn := range lesson.Questions {
			opts, err := json.Marshal(qn.Options)
			if err != nil {
				return fmt.Errorf("encode options of question %d: %w", qn.ID, err)
			}
			if _, err := tx.ExecContext(ctx, insert, int64(qn.ID), int64(lesson.ID), qn.Position, string(qn.Type), qn.CorrectAnswer, string(opts)); err != nil {
				return storeErr("put question", err)
			}
		}
		return nil
	})
}

func (s *Store) PutBadge(ctx context.Context, badge core.Badge) error {
	raw, err := core.EncodeCriteria(badge.Criteria)
	if err != nil {
		return err
	}
	q := s.upsertSQL("badges", []string{"id", "name", "description", "icon", "criteria"}, []string{"id"}, []string{"name", "description", "icon", "criteria"})
	if _, err := s.db.ExecContext(ctx, q, int64(badge.ID), badge.Name, badge.Description, badge.Icon, string(raw)); err != nil {
		return storeErr("put badge", err)
	}
	return nil
}

func (s *Store) GetLesson(ctx context.Context, id core.LessonID) (core.Lesson, error) {
	var row lessonRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT id, level_id, branch_id, title FROM lessons WHERE id = ?`), int64(id))
	if err != nil {
		return core.Lesson{}, notFoundOr(fmt.Sprintf("lesson %d", id), err)
	}
	var qrows []questionRow
	err = s.db.SelectContext(ctx, &qrows, s.db.Rebind(`SELECT id, lesson_id, sort_order, question_type, correct_answer, options FROM questions WHERE lesson_id = ? ORDER BY sort_order, id`), int64(id))
	if err != nil {
		return core.Lesson{}, storeErr("list questions", err)
	}
	lesson := row.toCore()
	lesson.Questions = make([]core.Question, 0, len(qrows))
	for _, q := range qrows {
		var opts []string
		if q.Options != "" && q.Options != "null" {
			if err := json.Unmarshal([]byte(q.Options), &opts); err != nil {
				return core.Lesson{}, fmt.Errorf("decode options of question %d: %w", q.ID, err)
			}
		}
		lesson.Questions = append(lesson.Questions, core.Question{
			ID:            core.QuestionID(q.ID),
			LessonID:      core.LessonID(q.LessonID),
			Position:      q.SortOrder,
			Type:          core.QuestionType(q.Type),
			CorrectAnswer: q.CorrectAnswer,
			Options:       opts,
		})
	}
	return lesson, nil
}

func (s *Store) ListLessonsByLevel(ctx context.Context, level core.LevelID) ([]core.Lesson, error) {
	var rows []lessonRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT id, level_id, branch_id, title FROM lessons WHERE level_id = ? ORDER BY id`), int64(level))
	if err != nil {
		return nil, storeErr("list lessons", err)
	}
	out := make([]core.Lesson, len(rows))
	for i, r := range rows {
		out[i] = r.toCore()
	}
	return out, nil
}

func (s *Store) GetLevel(ctx context.Context, id core.LevelID) (core.Level, error) {
	var row levelRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT id, level_number, title FROM levels WHERE id = ?`), int64(id))
	if err != nil {
		return core.Level{}, notFoundOr(fmt.Sprintf("level %d", id), err)
	}
	return row.toCore(), nil
}

func (s *Store) GetLevelByNumber(ctx context.Context, number int) (core.Level, error) {
	var row levelRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT id, level_number, title FROM levels WHERE level_number = ?`), number)
	if err != nil {
		return core.Level{}, notFoundOr(fmt.Sprintf("level number %d", number), err)
	}
	return row.toCore(), nil
}

func (s *Store) ListLevelsUpTo(ctx context.Context, number int) ([]core.Level, error) {
	var rows []levelRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT id, level_number, title FROM levels WHERE level_number <= ? ORDER BY level_number`), number)
	if err != nil {
		return nil, storeErr("list levels", err)
	}
	out := make([]core.Level, len(rows))
	for i, r := range rows {
		out[i] = r.toCore()
	}
	return out, nil
}

func (s *Store) GetBadge(ctx context.Context, id core.BadgeID) (core.Badge, error) {
	var row badgeRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT id, name, description, icon, criteria FROM badges WHERE id = ?`), int64(id))
	if err != nil {
		return core.Badge{}, notFoundOr(fmt.Sprintf("badge %d", id), err)
	}
	return row.toCore()
}

// ListAutoBadges decodes every badge and keeps the non-manual ones. A badge
// with undecodable criteria fails the whole call rather than being skipped.
func (s *Store) ListAutoBadges(ctx context.Context) ([]core.Badge, error) {
	var rows []badgeRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, name, description, icon, criteria FROM badges ORDER BY id`); err != nil {
		return nil, storeErr("list badges", err)
	}
	out := make([]core.Badge, 0, len(rows))
	for _, r := range rows {
		b, err := r.toCore()
		if err != nil {
			return nil, err
		}
		if b.IsAutomatic() {
			out = append(out, b)
		}
	}
	return out, nil
}

// Progress

func (s *Store) HasCompletedLesson(ctx context.Context, user core.UserID, lesson core.LessonID) (bool, error) {
	var completed bool
	err := s.db.GetContext(ctx, &completed, s.db.Rebind(`SELECT completed FROM user_progress WHERE user_id = ? AND lesson_id = ?`), string(user), int64(lesson))
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("read progress", err)
	}
	return completed, nil
}

func (s *Store) HasPassedQuiz(ctx context.Context, user core.UserID, lesson core.LessonID) (bool, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM quiz_attempts WHERE user_id = ? AND lesson_id = ? AND passed = ?`), string(user), int64(lesson), true)
	if err != nil {
		return false, storeErr("count passed attempts", err)
	}
	return n > 0, nil
}

func (s *Store) RecordAttempt(ctx context.Context, attempt core.QuizAttempt) (core.QuizAttempt, error) {
	err := s.withTx(ctx, func(tx *libsqlx.Tx) error {
		args := []any{string(attempt.UserID), int64(attempt.LessonID), attempt.Score, attempt.TotalQuestions,
			attempt.CorrectAnswers, attempt.Passed, millis(attempt.AttemptDate)}
		insert := `INSERT INTO quiz_attempts (user_id, lesson_id, score, total_questions, correct_answers, passed, attempt_date) VALUES (?, ?, ?, ?, ?, ?, ?)`
		if s.driver == DriverPostgres {
			var id int64
			if err := tx.QueryRowxContext(ctx, tx.Rebind(insert+" RETURNING id"), args...).Scan(&id); err != nil {
				return storeErr("insert attempt", err)
			}
			attempt.ID = core.AttemptID(id)
		} else {
			res, err := tx.ExecContext(ctx, tx.Rebind(insert), args...)
			if err != nil {
				return storeErr("insert attempt", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return storeErr("attempt id", err)
			}
			attempt.ID = core.AttemptID(id)
		}

		q := s.upsertSQL("user_progress", []string{"user_id", "lesson_id", "completed", "score", "updated_at"},
			[]string{"user_id", "lesson_id"}, []string{"score", "updated_at"})
		if _, err := tx.ExecContext(ctx, q, string(attempt.UserID), int64(attempt.LessonID), false, attempt.Score, millis(attempt.AttemptDate)); err != nil {
			return storeErr("upsert progress score", err)
		}
		return nil
	})
	if err != nil {
		return core.QuizAttempt{}, err
	}
	return attempt, nil
}

func (s *Store) ListAttempts(ctx context.Context, user core.UserID, lesson core.LessonID) ([]core.QuizAttempt, error) {
	var rows []attemptRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT id, user_id, lesson_id, score, total_questions, correct_answers, passed, attempt_date
FROM quiz_attempts WHERE user_id = ? AND lesson_id = ? ORDER BY attempt_date DESC, id DESC`), string(user), int64(lesson))
	if err != nil {
		return nil, storeErr("list attempts", err)
	}
	out := make([]core.QuizAttempt, len(rows))
	for i, r := range rows {
		out[i] = r.toCore()
	}
	return out, nil
}

func (s *Store) MarkLessonCompleted(ctx context.Context, user core.UserID, lesson core.LessonID, at time.Time) (bool, error) {
	var changed bool
	err := s.withTx(ctx, func(tx *libsqlx.Tx) error {
		var err error
		changed, err = s.setOnce(ctx, tx,
			s.db.Rebind(`UPDATE user_progress SET completed = ?, updated_at = ? WHERE user_id = ? AND lesson_id = ? AND completed = ?`),
			[]any{true, millis(at), string(user), int64(lesson), false},
			s.insertAbsentSQL("user_progress", []string{"user_id", "lesson_id", "completed", "score", "updated_at"}, []string{"user_id", "lesson_id"}),
			[]any{string(user), int64(lesson), true, 0, millis(at)})
		if err != nil {
			return storeErr("mark lesson completed", err)
		}
		return nil
	})
	return changed, err
}

// Levels

func (s *Store) GetLevelStatus(ctx context.Context, user core.UserID, level core.LevelID) (core.UserLevelStatus, error) {
	var row statusRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT user_id, level_id, is_unlocked, completion_percentage, unlocked_at
FROM user_level_status WHERE user_id = ? AND level_id = ?`), string(user), int64(level))
	if err != nil {
		return core.UserLevelStatus{}, notFoundOr(fmt.Sprintf("level status %s/%d", user, level), err)
	}
	return row.toCore(), nil
}

func (s *Store) ListLevelStatuses(ctx context.Context, user core.UserID) ([]core.UserLevelStatus, error) {
	var rows []statusRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT user_id, level_id, is_unlocked, completion_percentage, unlocked_at
FROM user_level_status WHERE user_id = ? ORDER BY level_id`), string(user))
	if err != nil {
		return nil, storeErr("list level statuses", err)
	}
	out := make([]core.UserLevelStatus, len(rows))
	for i, r := range rows {
		out[i] = r.toCore()
	}
	return out, nil
}

func (s *Store) UpsertLevelCompletion(ctx context.Context, user core.UserID, level core.LevelID, pct float64, at time.Time) error {
	q := s.upsertSQL("user_level_status", []string{"user_id", "level_id", "is_unlocked", "completion_percentage", "unlocked_at"},
		[]string{"user_id", "level_id"}, []string{"completion_percentage"})
	if _, err := s.db.ExecContext(ctx, q, string(user), int64(level), true, pct, millis(at)); err != nil {
		return storeErr("upsert level completion", err)
	}
	return nil
}

func (s *Store) UnlockLevels(ctx context.Context, user core.UserID, levels []core.LevelID, at time.Time) (bool, error) {
	if len(levels) == 0 {
		return false, nil
	}
	cols := []string{"user_id", "level_id", "is_unlocked", "completion_percentage", "unlocked_at"}
	keys := []string{"user_id", "level_id"}
	q := s.upsertSQL("user_level_status", cols, keys, []string{"is_unlocked", "unlocked_at"})
	target := levels[len(levels)-1]
	var changed bool
	err := s.withTx(ctx, func(tx *libsqlx.Tx) error {
		var err error
		// the target row is flipped first so concurrent cascades serialise on it
		changed, err = s.setOnce(ctx, tx,
			s.db.Rebind(`UPDATE user_level_status SET is_unlocked = ?, unlocked_at = ? WHERE user_id = ? AND level_id = ? AND is_unlocked = ?`),
			[]any{true, millis(at), string(user), int64(target), false},
			s.insertAbsentSQL("user_level_status", cols, keys),
			[]any{string(user), int64(target), true, 0.0, millis(at)})
		if err != nil {
			return storeErr(fmt.Sprintf("unlock level %d", target), err)
		}
		for _, level := range levels {
			if _, err := tx.ExecContext(ctx, q, string(user), int64(level), true, 0.0, millis(at)); err != nil {
				return storeErr(fmt.Sprintf("unlock level %d", level), err)
			}
		}
		return nil
	})
	return changed, err
}

// Badges

func (s *Store) GetUserStats(ctx context.Context, user core.UserID) (core.UserStats, error) {
	var counts struct {
		Lessons  int64 `db:"lessons"`
		Passed   int64 `db:"passed"`
		Perfect  int64 `db:"perfect"`
		Unlocked int64 `db:"unlocked"`
	}
	err := s.db.GetContext(ctx, &counts, s.db.Rebind(`SELECT
  (SELECT COUNT(*) FROM user_progress WHERE user_id = ? AND completed = ?) AS lessons,
  (SELECT COUNT(*) FROM quiz_attempts WHERE user_id = ? AND passed = ?) AS passed,
  (SELECT COUNT(*) FROM quiz_attempts WHERE user_id = ? AND score = 100) AS perfect,
  (SELECT COUNT(*) FROM user_level_status WHERE user_id = ? AND is_unlocked = ?) AS unlocked`),
		string(user), true, string(user), true, string(user), string(user), true)
	if err != nil {
		return core.UserStats{}, storeErr("load stats", err)
	}
	var badgeIDs []int64
	if err := s.db.SelectContext(ctx, &badgeIDs, s.db.Rebind(`SELECT badge_id FROM user_badges WHERE user_id = ?`), string(user)); err != nil {
		return core.UserStats{}, storeErr("list user badges", err)
	}
	stats := core.UserStats{
		UserID:           user,
		LessonsCompleted: counts.Lessons,
		QuizzesPassed:    counts.Passed,
		PerfectScores:    counts.Perfect,
		LevelsUnlocked:   counts.Unlocked,
		Badges:           make(map[core.BadgeID]struct{}, len(badgeIDs)),
	}
	for _, id := range badgeIDs {
		stats.Badges[core.BadgeID(id)] = struct{}{}
	}
	return stats, nil
}

func (s *Store) HasBadge(ctx context.Context, user core.UserID, badge core.BadgeID) (bool, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM user_badges WHERE user_id = ? AND badge_id = ?`), string(user), int64(badge))
	if err != nil {
		return false, storeErr("check badge", err)
	}
	return n > 0, nil
}

func (s *Store) CreateUserBadge(ctx context.Context, award core.UserBadge) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO user_badges (user_id, badge_id, earned_at) VALUES (?, ?, ?)`),
		string(award.UserID), int64(award.BadgeID), millis(award.EarnedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("user badge %s/%d: %w", award.UserID, award.BadgeID, core.ErrBenignDuplicate)
	}
	if err != nil {
		return storeErr("award badge", err)
	}
	return nil
}

// ListUserBadges returns a learner's awards ordered by earn time.
func (s *Store) ListUserBadges(ctx context.Context, user core.UserID) ([]core.UserBadge, error) {
	var rows []struct {
		BadgeID  int64 `db:"badge_id"`
		EarnedAt int64 `db:"earned_at"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT badge_id, earned_at FROM user_badges WHERE user_id = ? ORDER BY earned_at, badge_id`), string(user)); err != nil {
		return nil, storeErr("list user badges", err)
	}
	out := make([]core.UserBadge, len(rows))
	for i, r := range rows {
		out[i] = core.UserBadge{UserID: user, BadgeID: core.BadgeID(r.BadgeID), EarnedAt: fromMillis(r.EarnedAt)}
	}
	return out, nil
}

var (
	_ engine.Storage          = (*Store)(nil)
	_ engine.CurriculumWriter = (*Store)(nil)
)
