package sqlx_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	libsqlx "github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	storage "github.com/samir777-eng/ebad-academy-sub001/adapters/sqlx"
	"github.com/samir777-eng/ebad-academy-sub001/core"
)

func newMockStore(t *testing.T, driver storage.Driver) (*storage.Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	xdb := storage.NewWithDB(libsqlx.NewDb(db, string(driver)), driver)
	cleanup := func() {
		_ = db.Close()
	}
	return xdb, mock, cleanup
}

var at = time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)

func TestSQLMock_RecordAttempt_Postgres(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO quiz_attempts .* RETURNING id`).
		WithArgs("u1", int64(101), 67, 3, 2, true, at.UnixMilli()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec(`INSERT INTO user_progress .* ON CONFLICT \(user_id, lesson_id\) DO UPDATE SET score = excluded.score, updated_at = excluded.updated_at`).
		WithArgs("u1", int64(101), false, 67, at.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := store.RecordAttempt(context.Background(), core.QuizAttempt{
		UserID: "u1", LessonID: 101, Score: 67, TotalQuestions: 3, CorrectAnswers: 2, Passed: true, AttemptDate: at,
	})
	require.NoError(t, err)
	require.Equal(t, core.AttemptID(7), got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_RecordAttempt_RollsBack(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO quiz_attempts`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(8)))
	mock.ExpectExec(`INSERT INTO user_progress`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := store.RecordAttempt(context.Background(), core.QuizAttempt{UserID: "u1", LessonID: 101, AttemptDate: at})
	require.ErrorIs(t, err, core.ErrStoreFailure)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_RecordAttempt_MySQL(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverMySQL)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO quiz_attempts \(user_id, lesson_id, score, total_questions, correct_answers, passed, attempt_date\) VALUES \(\?, \?, \?, \?, \?, \?, \?\)$`).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec(`INSERT INTO user_progress .* ON DUPLICATE KEY UPDATE score = VALUES\(score\), updated_at = VALUES\(updated_at\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := store.RecordAttempt(context.Background(), core.QuizAttempt{UserID: "u1", LessonID: 5, AttemptDate: at})
	require.NoError(t, err)
	require.Equal(t, core.AttemptID(42), got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_CreateUserBadge_Duplicate(t *testing.T) {
	cases := []struct {
		driver storage.Driver
		err    error
	}{
		{storage.DriverPostgres, &pgconn.PgError{Code: "23505"}},
		{storage.DriverMySQL, &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.driver), func(t *testing.T) {
			store, mock, cleanup := newMockStore(t, tc.driver)
			defer cleanup()

			mock.ExpectExec(`INSERT INTO user_badges`).
				WithArgs("u1", int64(3), at.UnixMilli()).
				WillReturnError(tc.err)

			err := store.CreateUserBadge(context.Background(), core.UserBadge{UserID: "u1", BadgeID: 3, EarnedAt: at})
			require.ErrorIs(t, err, core.ErrBenignDuplicate)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLMock_CreateUserBadge_Failure(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO user_badges`).WillReturnError(&pgconn.PgError{Code: "40001"})
	err := store.CreateUserBadge(context.Background(), core.UserBadge{UserID: "u1", BadgeID: 3, EarnedAt: at})
	require.ErrorIs(t, err, core.ErrStoreFailure)
	require.False(t, errors.Is(err, core.ErrBenignDuplicate))
}

func TestSQLMock_GetLesson_NotFound(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectQuery(`SELECT id, level_id, branch_id, title FROM lessons WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "level_id", "branch_id", "title"}))

	_, err := store.GetLesson(context.Background(), 9)
	require.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_GetLesson_WithQuestions(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectQuery(`SELECT id, level_id, branch_id, title FROM lessons`).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "level_id", "branch_id", "title"}).AddRow(4, 1, 2, "Wudu"))
	mock.ExpectQuery(`FROM questions WHERE lesson_id = \$1 ORDER BY sort_order, id`).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "lesson_id", "sort_order", "question_type", "correct_answer", "options"}).
			AddRow(1, 4, 0, "multiple_choice", "B", `["A","B"]`).
			AddRow(2, 4, 1, "true_false", "true", `null`))

	l, err := store.GetLesson(context.Background(), 4)
	require.NoError(t, err)
	require.Equal(t, core.LevelID(1), l.LevelID)
	require.Len(t, l.Questions, 2)
	require.Equal(t, []string{"A", "B"}, l.Questions[0].Options)
	require.Equal(t, core.QuestionTrueFalse, l.Questions[1].Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_GetUserStats(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectQuery(`SELECT\s+\(SELECT COUNT\(\*\) FROM user_progress`).
		WithArgs("u1", true, "u1", true, "u1", "u1", true).
		WillReturnRows(sqlmock.NewRows([]string{"lessons", "passed", "perfect", "unlocked"}).AddRow(4, 3, 1, 2))
	mock.ExpectQuery(`SELECT badge_id FROM user_badges`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"badge_id"}).AddRow(2).AddRow(5))

	stats, err := store.GetUserStats(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, int64(4), stats.LessonsCompleted)
	require.Equal(t, int64(3), stats.QuizzesPassed)
	require.Equal(t, int64(1), stats.PerfectScores)
	require.Equal(t, int64(2), stats.LevelsUnlocked)
	require.Equal(t, []core.BadgeID{2, 5}, stats.BadgeIDs())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_UnlockLevels(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE user_level_status SET is_unlocked = \$1, unlocked_at = \$2 WHERE user_id = \$3 AND level_id = \$4 AND is_unlocked = \$5`).
		WithArgs(true, at.UnixMilli(), "u1", int64(2), false).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO user_level_status .* ON CONFLICT \(user_id, level_id\) DO NOTHING`).
		WithArgs("u1", int64(2), true, 0.0, at.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	for _, id := range []int64{1, 2} {
		mock.ExpectExec(`INSERT INTO user_level_status .* ON CONFLICT \(user_id, level_id\) DO UPDATE SET is_unlocked = excluded.is_unlocked, unlocked_at = excluded.unlocked_at`).
			WithArgs("u1", id, true, 0.0, at.UnixMilli()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	changed, err := store.UnlockLevels(context.Background(), "u1", []core.LevelID{1, 2}, at)
	require.NoError(t, err)
	require.True(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_UnlockLevels_AlreadyUnlocked(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverMySQL)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE user_level_status SET is_unlocked = \?`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT IGNORE INTO user_level_status`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO user_level_status .* ON DUPLICATE KEY UPDATE is_unlocked = VALUES\(is_unlocked\)`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	changed, err := store.UnlockLevels(context.Background(), "u1", []core.LevelID{4}, at)
	require.NoError(t, err)
	require.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_MarkLessonCompleted(t *testing.T) {
	cases := []struct {
		name     string
		updated  int64
		inserted int64
		changed  bool
	}{
		{"flips existing row", 1, -1, true},
		{"inserts missing row", 0, 1, true},
		{"already completed", 0, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
			defer cleanup()

			mock.ExpectBegin()
			mock.ExpectExec(`UPDATE user_progress SET completed = \$1, updated_at = \$2 WHERE user_id = \$3 AND lesson_id = \$4 AND completed = \$5`).
				WithArgs(true, at.UnixMilli(), "u1", int64(9), false).
				WillReturnResult(sqlmock.NewResult(0, tc.updated))
			if tc.inserted >= 0 {
				mock.ExpectExec(`INSERT INTO user_progress .* ON CONFLICT \(user_id, lesson_id\) DO NOTHING`).
					WithArgs("u1", int64(9), true, 0, at.UnixMilli()).
					WillReturnResult(sqlmock.NewResult(0, tc.inserted))
			}
			mock.ExpectCommit()

			changed, err := store.MarkLessonCompleted(context.Background(), "u1", 9, at)
			require.NoError(t, err)
			require.Equal(t, tc.changed, changed)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLMock_UpsertLevelCompletion_KeepsUnlockState(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverMySQL)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO user_level_status .* ON DUPLICATE KEY UPDATE completion_percentage = VALUES\(completion_percentage\)$`).
		WithArgs("u1", int64(3), true, 50.0, at.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.UpsertLevelCompletion(context.Background(), "u1", 3, 50, at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_ListAutoBadges_RejectsBadCriteria(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectQuery(`SELECT id, name, description, icon, criteria FROM badges`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "icon", "criteria"}).
			AddRow(1, "Mentor", "", "", `{"type":"manual"}`).
			AddRow(2, "Broken", "", "", `{"type":"streak","value":3}`))

	_, err := store.ListAutoBadges(context.Background())
	require.ErrorIs(t, err, core.ErrInvalidCriteria)
}
