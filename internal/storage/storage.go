// Package storage persists NearHelp entities in PostgreSQL (lib/pq) or,
// for development and tests, an embedded SQLite database (modernc.org/sqlite).
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const queryTimeout = 5 * time.Second

type Config struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
}

// Store is constructed once at startup and hands out one typed store per entity.
type Store struct {
	db *sqlx.DB

	Users         *UserStore
	Tasks         *TaskStore
	Helpers       *HelperStore
	Comments      *CommentStore
	Notifications *NotificationStore
}

// Open connects to the database named by cfg.DSN, verifies the connection
// and creates the schema if needed. DSNs starting with "sqlite://" or
// "file:" select SQLite, everything else is handed to lib/pq.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	driver, dsn := driverFor(cfg.DSN)
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}

	if driver == "sqlite" {
		// One writer at a time; SQLite would answer SQLITE_BUSY otherwise.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxIdleTime(cfg.MaxIdleTime)
	}

	pctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}

	if _, err := db.ExecContext(pctx, schemaFor(driver)); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create schema: %w", err)
	}

	return New(db), nil
}

// New wraps an already opened database.
func New(db *sqlx.DB) *Store {
	return &Store{
		db:            db,
		Users:         &UserStore{db: db},
		Tasks:         &TaskStore{db: db},
		Helpers:       &HelperStore{db: db},
		Comments:      &CommentStore{db: db},
		Notifications: &NotificationStore{db: db},
	}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func driverFor(dsn string) (driver, source string) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite", sqliteSource(strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasPrefix(dsn, "file:"):
		return "sqlite", sqliteSource(dsn)
	default:
		return "postgres", dsn
	}
}

func sqliteSource(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

// now is the clock every store stamps rows with. Microsecond precision is
// what PostgreSQL keeps.
var now = func() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
