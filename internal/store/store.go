// Package store maps the ticketing entities onto relational tables through dbx.
// Every repository method lives on Queries so the same code runs on the pool
// and inside a transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pocketbase/dbx"
	_ "modernc.org/sqlite"

	"ticketing/internal/status"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var errNoRows = sql.ErrNoRows

const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"

type Store struct {
	db     *dbx.DB
	driver string
}

// Open connects to the database and applies the schema.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if strings.Contains(dsn, "?") {
			dsn += "&" + sqlitePragmas
		} else {
			dsn += "?" + sqlitePragmas
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := dbx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// sqlite allows a single writer; one connection keeps transactions strictly serial
		db.DB().SetMaxOpenConns(1)
	} else {
		db.DB().SetMaxOpenConns(25)
		db.DB().SetMaxIdleConns(5)
		db.DB().SetConnMaxLifetime(30 * time.Minute)
	}

	s := &Store{db: db, driver: driver}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Driver() string {
	return s.driver
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.DB().PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Q returns repository queries running directly on the pool.
// Never call it from inside a Transactional callback.
func (s *Store) Q(ctx context.Context) *Queries {
	return &Queries{b: s.db, ctx: ctx}
}

// Transactional runs fn inside one transaction. Any error returned by fn, or a panic,
// rolls back every statement fn issued.
func (s *Store) Transactional(ctx context.Context, fn func(q *Queries) error) error {
	return s.db.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
		return fn(&Queries{b: tx, ctx: ctx})
	})
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.NewQuery(stmt).WithContext(ctx).Execute(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	slog.Debug("Database schema applied", "driver", s.driver, "statements", len(schema))
	return nil
}

// Queries exposes the repository operations over a pool or a transaction.
type Queries struct {
	b   dbx.Builder
	ctx context.Context
}

func (q *Queries) selectFrom(table string, cols ...string) *dbx.SelectQuery {
	return q.b.Select(cols...).From(table).WithContext(q.ctx)
}

func (q *Queries) insert(table string, params dbx.Params) error {
	_, err := q.b.Insert(table, params).WithContext(q.ctx).Execute()
	return translate(err, table)
}

func (q *Queries) update(table string, params dbx.Params, where dbx.Expression) (int64, error) {
	res, err := q.b.Update(table, params, where).WithContext(q.ctx).Execute()
	if err != nil {
		return 0, translate(err, table)
	}
	return res.RowsAffected()
}

func (q *Queries) delete(table string, where dbx.Expression) (int64, error) {
	res, err := q.b.Delete(table, where).WithContext(q.ctx).Execute()
	if err != nil {
		return 0, translate(err, table)
	}
	return res.RowsAffected()
}

func (q *Queries) count(table string, where dbx.Expression) (int, error) {
	var n int
	query := q.selectFrom(table, "COUNT(*)")
	if where != nil {
		query = query.Where(where)
	}
	if err := query.Row(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func newID() string {
	return uuid.NewString()
}

func now() time.Time {
	return time.Now().UTC()
}

func offset(page, perPage int) (int64, int64) {
	if perPage <= 0 {
		perPage = 15
	}
	if page <= 0 {
		page = 1
	}
	return int64((page - 1) * perPage), int64(perPage)
}

// translate maps driver errors onto the error taxonomy.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return status.Errorf(status.ErrNotFound, "%s not found", singular(what))
	case isUniqueViolation(err):
		return status.Errorf(status.ErrConflict, "%s already exists", singular(what))
	case isForeignKeyViolation(err):
		return status.Errorf(status.ErrInvalidRequest, "%s references a missing record", singular(what))
	}
	return fmt.Errorf("%s: %w", what, err)
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func isForeignKeyViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "foreign key constraint") || strings.Contains(msg, "violates foreign key")
}

func singular(table string) string {
	switch table {
	case "categories":
		return "category"
	case "ticket_types":
		return "ticket type"
	}
	return strings.TrimSuffix(table, "s")
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                 TEXT PRIMARY KEY,
		email              TEXT NOT NULL UNIQUE,
		password_hash      TEXT NOT NULL,
		name               TEXT NOT NULL DEFAULT '',
		role               TEXT NOT NULL,
		is_verified        BOOLEAN NOT NULL DEFAULT FALSE,
		verified_at        TIMESTAMP NULL,
		otp                TEXT NOT NULL DEFAULT '',
		otp_expires_at     TIMESTAMP NULL,
		login_attempts     INTEGER NOT NULL DEFAULT 0,
		reset_code         TEXT NOT NULL DEFAULT '',
		reset_expires_at   TIMESTAMP NULL,
		tokens_valid_after TIMESTAMP NULL,
		created_at         TIMESTAMP NOT NULL,
		updated_at         TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMP NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id            TEXT PRIMARY KEY,
		title         TEXT NOT NULL,
		description   TEXT NOT NULL,
		start_date    TIMESTAMP NOT NULL,
		end_date      TIMESTAMP NOT NULL,
		location      TEXT NOT NULL,
		status        TEXT NOT NULL,
		max_attendees INTEGER NOT NULL DEFAULT 0,
		category_id   TEXT NOT NULL REFERENCES categories (id),
		image_url     TEXT NOT NULL DEFAULT '',
		organizer_id  TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		created_at    TIMESTAMP NOT NULL,
		updated_at    TIMESTAMP NOT NULL,
		CHECK (end_date > start_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_organizer ON events (organizer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_events_category ON events (category_id)`,
	`CREATE TABLE IF NOT EXISTS ticket_types (
		id          TEXT PRIMARY KEY,
		event_id    TEXT NOT NULL REFERENCES events (id) ON DELETE CASCADE,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price       NUMERIC(12, 2) NOT NULL,
		quantity    INTEGER NOT NULL CHECK (quantity >= 0),
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMP NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ticket_types_event ON ticket_types (event_id)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		event_id       TEXT NOT NULL REFERENCES events (id) ON DELETE CASCADE,
		order_number   TEXT NOT NULL UNIQUE,
		total_amount   NUMERIC(12, 2) NOT NULL,
		status         TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		created_at     TIMESTAMP NOT NULL,
		updated_at     TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders (user_id)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id             TEXT PRIMARY KEY,
		ticket_number  TEXT NOT NULL UNIQUE,
		qr_code        TEXT NOT NULL UNIQUE,
		event_id       TEXT NOT NULL REFERENCES events (id) ON DELETE CASCADE,
		user_id        TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		order_id       TEXT NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
		ticket_type_id TEXT NOT NULL REFERENCES ticket_types (id) ON DELETE CASCADE,
		price_paid     NUMERIC(12, 2) NOT NULL,
		status         TEXT NOT NULL,
		check_in_time  TIMESTAMP NULL,
		checked_in_by  TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMP NOT NULL,
		updated_at     TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_type_status ON tickets (ticket_type_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_event_user ON tickets (event_id, user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_order ON tickets (order_id)`,
	`CREATE TABLE IF NOT EXISTS uploads (
		file_key   TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		event_id   TEXT NOT NULL DEFAULT '',
		size       INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_uploads_user ON uploads (user_id)`,
}
