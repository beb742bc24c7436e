// Package sqlstore implements ports.CheckpointStore on a SQL database.
//
// SQLite (github.com/mattn/go-sqlite3) and PostgreSQL (pgx stdlib driver) are
// supported. The schema is managed by embedded goose migrations that run on
// Open. Each conversation is one row holding the JSON checkpoint; the version
// column backs compare-and-swap.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/tollgate/pkg/domain"
	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx PostgreSQL driver as "pgx"
	_ "github.com/mattn/go-sqlite3"    // register the SQLite driver as "sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Dialect selects the SQL flavor.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) driver() (string, database.Dialect, error) {
	switch d {
	case SQLite:
		return "sqlite3", database.DialectSQLite3, nil
	case Postgres:
		return "pgx", database.DialectPostgres, nil
	default:
		return "", "", fmt.Errorf("unsupported sql dialect %q", d)
	}
}

// Store implements ports.CheckpointStore on database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to the database, applies pending migrations and returns a Store.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	driverName, _, err := dialect.driver()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == SQLite {
		// SQLite allows a single writer; serialize through one connection.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s, err := New(ctx, db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection and applies pending migrations.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	if err := migrate(ctx, db, dialect); err != nil {
		return nil, err
	}
	return &Store{db: db, dialect: dialect}, nil
}

func migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	_, gooseDialect, err := dialect.driver()
	if err != nil {
		return err
	}
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(gooseDialect, db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the connection, mainly for tests and health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Load retrieves the checkpoint of a conversation.
func (s *Store) Load(ctx context.Context, conversationID string) (*domain.Checkpoint, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT payload FROM checkpoints WHERE conversation_id = ?`),
		conversationID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var cp domain.Checkpoint
	if err := json.Unmarshal([]byte(payload), &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return &cp, nil
}

// Save upserts the checkpoint.
func (s *Store) Save(ctx context.Context, cp *domain.Checkpoint) error {
	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO checkpoints (conversation_id, version, next_step, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (conversation_id) DO UPDATE SET
			version = excluded.version,
			next_step = excluded.next_step,
			payload = excluded.payload,
			updated_at = excluded.updated_at`),
		cp.ConversationID, cp.Version, string(cp.Next), string(payload), stamp(cp),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// CompareAndSwap persists cp only if the stored version equals expected.
// expected == 0 inserts and requires that no row exists.
func (s *Store) CompareAndSwap(ctx context.Context, cp *domain.Checkpoint, expected int64) error {
	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	var res sql.Result
	if expected == 0 {
		res, err = s.db.ExecContext(ctx, s.rebind(`
			INSERT INTO checkpoints (conversation_id, version, next_step, payload, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (conversation_id) DO NOTHING`),
			cp.ConversationID, cp.Version, string(cp.Next), string(payload), stamp(cp),
		)
	} else {
		res, err = s.db.ExecContext(ctx, s.rebind(`
			UPDATE checkpoints
			SET version = ?, next_step = ?, payload = ?, updated_at = ?
			WHERE conversation_id = ? AND version = ?`),
			cp.Version, string(cp.Next), string(payload), stamp(cp), cp.ConversationID, expected,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to swap checkpoint: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to swap checkpoint: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: conversation %s expected version %d", domain.ErrVersionConflict, cp.ConversationID, expected)
	}
	return nil
}

// Delete removes the checkpoint of a conversation.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM checkpoints WHERE conversation_id = ?`), conversationID)
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// List returns all conversation IDs, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT conversation_id FROM checkpoints ORDER BY conversation_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByNext returns the conversations whose next step is step, e.g. every
// conversation awaiting approval.
func (s *Store) ListByNext(ctx context.Context, step domain.StepID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT conversation_id FROM checkpoints WHERE next_step = ? ORDER BY conversation_id`),
		string(step),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func stamp(cp *domain.Checkpoint) int64 {
	if cp.UpdatedAt.IsZero() {
		return time.Now().UnixMilli()
	}
	return cp.UpdatedAt.UnixMilli()
}
