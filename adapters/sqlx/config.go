package sqlx

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // driver: mysql
	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	libsqlx "github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // driver: sqlite
)

// Driver selects the SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

func init() {
	// sqlx has no bind type registered for the modernc driver name
	libsqlx.BindDriver("sqlite", libsqlx.QUESTION)
}

// Config holds connection settings for Open.
type Config struct {
	Driver          Driver        `json:"driver" yaml:"driver" env:"PROGRESSION_SQL_DRIVER"`
	DSN             string        `json:"dsn" yaml:"dsn" env:"PROGRESSION_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns" env:"PROGRESSION_SQL_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns" env:"PROGRESSION_SQL_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" env:"PROGRESSION_SQL_CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `json:"auto_migrate" yaml:"auto_migrate" env:"PROGRESSION_SQL_AUTO_MIGRATE"`
}

// DefaultConfig returns pool settings suited to driver.
func DefaultConfig(driver Driver) Config {
	cfg := Config{
		Driver:          driver,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		AutoMigrate:     true,
	}
	switch driver {
	case DriverSQLite:
		// one writer avoids SQLITE_BUSY under concurrent upserts
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.DSN = "file:progression.db?mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	case DriverPostgres:
		cfg.DSN = "postgres://localhost:5432/progression?sslmode=disable"
	case DriverMySQL:
		cfg.DSN = "root@tcp(localhost:3306)/progression?parseTime=true"
	}
	return cfg
}

func (d Driver) sqlName() (string, error) {
	switch d {
	case DriverPostgres:
		return "pgx", nil
	case DriverMySQL:
		return "mysql", nil
	case DriverSQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported driver: %s", d)
	}
}

// Open connects, verifies the connection and bootstraps the schema when
// AutoMigrate is set.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	name, err := cfg.Driver.sqlName()
	if err != nil {
		return nil, err
	}
	db, err := libsqlx.Open(name, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	s := NewWithDB(db, cfg.Driver)
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}
