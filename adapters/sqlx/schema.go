package sqlx

import (
	"context"
	"fmt"
	"strings"
)

type dialect struct {
	serial    string
	double    string
	inlineIdx bool
}

func (d Driver) dialect() dialect {
	switch d {
	case DriverMySQL:
		return dialect{serial: "BIGINT AUTO_INCREMENT PRIMARY KEY", double: "DOUBLE", inlineIdx: true}
	case DriverSQLite:
		return dialect{serial: "INTEGER PRIMARY KEY AUTOINCREMENT", double: "REAL"}
	default:
		return dialect{serial: "BIGSERIAL PRIMARY KEY", double: "DOUBLE PRECISION"}
	}
}

// Timestamps are stored as unix milliseconds so every dialect shares one encoding.
func schemaStatements(driver Driver) []string {
	d := driver.dialect()
	attemptIdx := ""
	if d.inlineIdx {
		attemptIdx = ",\n  INDEX idx_quiz_attempts_user_lesson (user_id, lesson_id)"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS levels (
  id BIGINT PRIMARY KEY,
  level_number INTEGER NOT NULL UNIQUE,
  title VARCHAR(255) NOT NULL DEFAULT ''
)`,
		`CREATE TABLE IF NOT EXISTS lessons (
  id BIGINT PRIMARY KEY,
  level_id BIGINT NOT NULL REFERENCES levels(id),
  branch_id BIGINT NOT NULL DEFAULT 0,
  title VARCHAR(255) NOT NULL DEFAULT ''
)`,
		`CREATE TABLE IF NOT EXISTS questions (
  id BIGINT PRIMARY KEY,
  lesson_id BIGINT NOT NULL REFERENCES lessons(id),
  sort_order INTEGER NOT NULL,
  question_type VARCHAR(32) NOT NULL,
  correct_answer TEXT NOT NULL,
  options TEXT NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS badges (
  id BIGINT PRIMARY KEY,
  name VARCHAR(255) NOT NULL,
  description TEXT NOT NULL,
  icon VARCHAR(255) NOT NULL DEFAULT '',
  criteria TEXT NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS user_progress (
  user_id VARCHAR(191) NOT NULL,
  lesson_id BIGINT NOT NULL,
  completed BOOLEAN NOT NULL DEFAULT FALSE,
  score INTEGER NOT NULL DEFAULT 0,
  updated_at BIGINT NOT NULL,
  PRIMARY KEY (user_id, lesson_id)
)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS quiz_attempts (
  id %s,
  user_id VARCHAR(191) NOT NULL,
  lesson_id BIGINT NOT NULL,
  score INTEGER NOT NULL,
  total_questions INTEGER NOT NULL,
  correct_answers INTEGER NOT NULL,
  passed BOOLEAN NOT NULL,
  attempt_date BIGINT NOT NULL%s
)`, d.serial, attemptIdx),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS user_level_status (
  user_id VARCHAR(191) NOT NULL,
  level_id BIGINT NOT NULL,
  is_unlocked BOOLEAN NOT NULL DEFAULT FALSE,
  completion_percentage %s NOT NULL DEFAULT 0,
  unlocked_at BIGINT NULL,
  PRIMARY KEY (user_id, level_id)
)`, d.double),
		`CREATE TABLE IF NOT EXISTS user_badges (
  user_id VARCHAR(191) NOT NULL,
  badge_id BIGINT NOT NULL,
  earned_at BIGINT NOT NULL,
  PRIMARY KEY (user_id, badge_id)
)`,
	}
	if !d.inlineIdx {
		stmts = append(stmts,
			`CREATE INDEX IF NOT EXISTS idx_quiz_attempts_user_lesson ON quiz_attempts (user_id, lesson_id)`,
			`CREATE INDEX IF NOT EXISTS idx_lessons_level ON lessons (level_id)`,
		)
	}
	return stmts
}

// Migrate creates missing tables. It is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.driver) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			head, _, _ := strings.Cut(stmt, "(")
			return fmt.Errorf("migrate %s: %w", strings.TrimSpace(head), err)
		}
	}
	return nil
}
