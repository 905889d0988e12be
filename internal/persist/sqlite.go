package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/dshills/scriptstorm/internal/engine/command"
	"github.com/dshills/scriptstorm/internal/engine/linestore"
	"github.com/dshills/scriptstorm/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS scripts (
	id         TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	version    INTEGER NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS script_versions (
	script_id  TEXT NOT NULL,
	version    INTEGER NOT NULL,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (script_id, version)
);
`

// Version is one stored revision of a script.
type Version struct {
	Number    int
	CreatedAt time.Time
}

// SQLiteStore is a Service backed by a SQLite database.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	lines  *linestore.Store
	now    func() time.Time
	logger *logging.Logger
	closed bool
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithLineStore sets the parser/serializer used to apply edits.
func WithLineStore(ls *linestore.Store) SQLiteOption {
	return func(s *SQLiteStore) {
		if ls != nil {
			s.lines = ls
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l *logging.Logger) SQLiteOption {
	return func(s *SQLiteStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used for version timestamps.
func WithClock(now func() time.Time) SQLiteOption {
	return func(s *SQLiteStore) {
		if now != nil {
			s.now = now
		}
	}
}

// OpenSQLite opens (creating if needed) a store at path. Use ":memory:"
// for a private in-memory database.
func OpenSQLite(ctx context.Context, path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps an
	// in-memory database alive for the store's lifetime.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		lines:  linestore.New(),
		now:    time.Now,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("persist")
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Load returns the latest stored content and version.
func (s *SQLiteStore) Load(ctx context.Context, documentID string) (string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", 0, ErrClosed
	}

	var content string
	var version int
	err := s.db.QueryRowContext(ctx,
		`SELECT content, version FROM scripts WHERE id = ?`, documentID,
	).Scan(&content, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, ErrNotFound
	}
	if err != nil {
		return "", 0, fmt.Errorf("load %s: %w", documentID, err)
	}
	return content, version, nil
}

// Versions lists stored versions, oldest first.
func (s *SQLiteStore) Versions(ctx context.Context, documentID string) ([]Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT version, created_at FROM script_versions WHERE script_id = ? ORDER BY version`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", documentID, err)
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		var v Version
		var created string
		if err := rows.Scan(&v.Number, &created); err != nil {
			return nil, err
		}
		v.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, v)
	}
	return out, rows.Err()
}

// ApplyEdits implements Service.
func (s *SQLiteStore) ApplyEdits(ctx context.Context, documentID string, commands []command.Command, currentContent string) (EditResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return EditResponse{}, ErrClosed
	}

	current, err := s.currentVersion(ctx, documentID)
	if err != nil {
		return EditResponse{}, err
	}

	outcome, err := command.Apply(commands, s.lines.Parse(currentContent))
	if err != nil {
		return EditResponse{}, err
	}
	if !outcome.Modified {
		s.logger.Debug("edit batch for %s changed nothing, version stays %d", documentID, current)
		return EditResponse{Script: ScriptInfo{VersionNumber: current}}, nil
	}

	content, err := s.lines.Serialize(outcome.Doc)
	if err != nil {
		return EditResponse{}, err
	}
	version, err := s.store(ctx, documentID, content, current)
	if err != nil {
		return EditResponse{}, err
	}
	return EditResponse{
		EditResult: &EditResult{Results: outcome.Results, Content: content},
		Script:     ScriptInfo{VersionNumber: version},
	}, nil
}

// Save implements Service.
func (s *SQLiteStore) Save(ctx context.Context, documentID string, content string) (ScriptInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ScriptInfo{}, ErrClosed
	}

	var stored string
	var current int
	err := s.db.QueryRowContext(ctx,
		`SELECT content, version FROM scripts WHERE id = ?`, documentID,
	).Scan(&stored, &current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return ScriptInfo{}, fmt.Errorf("save %s: %w", documentID, err)
	}
	if err == nil && sameContent(stored, content) {
		return ScriptInfo{VersionNumber: current}, nil
	}

	version, err := s.store(ctx, documentID, content, current)
	if err != nil {
		return ScriptInfo{}, err
	}
	return ScriptInfo{VersionNumber: version}, nil
}

func (s *SQLiteStore) currentVersion(ctx context.Context, documentID string) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM scripts WHERE id = ?`, documentID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read version of %s: %w", documentID, err)
	}
	return version, nil
}

// store writes content as version current+1.
func (s *SQLiteStore) store(ctx context.Context, documentID, content string, current int) (int, error) {
	version := current + 1
	now := s.now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO scripts (id, content, version, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET content = excluded.content, version = excluded.version, updated_at = excluded.updated_at`,
		documentID, content, version, now); err != nil {
		return 0, fmt.Errorf("write %s: %w", documentID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO script_versions (script_id, version, content, created_at) VALUES (?, ?, ?, ?)`,
		documentID, version, content, now); err != nil {
		return 0, fmt.Errorf("record version %d of %s: %w", version, documentID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("stored %s version %d", documentID, version)
	return version, nil
}

// sameContent compares two envelopes ignoring metadata, which carries a
// timestamp that changes on every serialize.
func sameContent(a, b string) bool {
	for _, path := range []string{"content", "format", "chapters", "pageCount"} {
		if gjson.Get(a, path).Raw != gjson.Get(b, path).Raw {
			return false
		}
	}
	return true
}
