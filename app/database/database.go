package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/lysyi3m/news-comb/app/realtime"
)

// Publisher receives committed row changes.
type Publisher interface {
	Publish(evt realtime.Event)
}

// DB wraps the SQLite connection shared by all repositories.
type DB struct {
	conn      *sql.DB
	path      string
	schema    uint
	publisher Publisher
}

// Open creates or opens the database at path and applies pending migrations.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{conn: conn, path: path}

	if db.schema, err = migrateUp(db); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Path() string {
	return db.path
}

// SchemaVersion is the migration version applied by Open.
func (db *DB) SchemaVersion() uint {
	return db.schema
}

// SetPublisher registers the receiver of change events. Call before serving.
func (db *DB) SetPublisher(p Publisher) {
	db.publisher = p
}

func (db *DB) publish(table realtime.Table, typ realtime.EventType, record any) {
	if db.publisher == nil {
		return
	}
	db.publisher.Publish(realtime.Event{Table: table, Type: typ, Record: record})
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func query(ctx context.Context, q queryer, b sq.Sqlizer) (*sql.Rows, error) {
	stmt, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return q.QueryContext(ctx, stmt, args...)
}

func exec(ctx context.Context, q queryer, b sq.Sqlizer) (sql.Result, error) {
	stmt, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build statement: %w", err)
	}
	return q.ExecContext(ctx, stmt, args...)
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
