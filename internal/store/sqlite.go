package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rcliao/companion/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create db dir: %v", ErrStoreUnavailable, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %v", ErrStoreUnavailable, err)
	}

	s := &SQLiteStore{
		db:   db,
		path: dbPath,
		now:  time.Now,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", ErrStoreUnavailable, err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		thought    TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at DESC, id DESC);

	CREATE TABLE IF NOT EXISTS memories (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		content    TEXT NOT NULL,
		importance TEXT NOT NULL DEFAULT 'low',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at DESC, id DESC);

	CREATE TABLE IF NOT EXISTS gallery (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		prompt     TEXT NOT NULL,
		media_url  TEXT NOT NULL,
		seed       INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_gallery_created ON gallery(created_at DESC, id DESC);

	CREATE TABLE IF NOT EXISTS preferences (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// conn returns the live handle while holding the read lock. Callers must call release.
func (s *SQLiteStore) conn() (*sql.DB, func(), error) {
	s.mu.RLock()
	if s.db == nil {
		s.mu.RUnlock()
		return nil, nil, ErrStoreUnavailable
	}
	return s.db, s.mu.RUnlock, nil
}

func (s *SQLiteStore) stamp(at time.Time) time.Time {
	if at.IsZero() {
		at = s.now()
	}
	return time.UnixMilli(at.UnixMilli()).UTC()
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, p AppendMessageParams) (*model.ChatMessage, error) {
	if !model.ValidRoles[p.Role] {
		return nil, fmt.Errorf("invalid role %q (valid: user, assistant)", p.Role)
	}
	db, release, err := s.conn()
	if err != nil {
		return nil, err
	}
	defer release()

	at := s.stamp(p.At)
	var thought *string
	if p.Thought != "" {
		thought = &p.Thought
	}

	res, err := db.ExecContext(ctx,
		`INSERT INTO messages (role, content, thought, created_at) VALUES (?, ?, ?, ?)`,
		string(p.Role), p.Content, thought, at.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &model.ChatMessage{
		ID:        id,
		Role:      p.Role,
		Content:   p.Content,
		Thought:   p.Thought,
		CreatedAt: at,
	}, nil
}

func (s *SQLiteStore) RecentMessages(ctx context.Context, p Page) ([]model.ChatMessage, error) {
	db, release, err := s.conn()
	if err != nil {
		return nil, err
	}
	defer release()

	limit, offset := p.window(100)
	rows, err := db.QueryContext(ctx,
		`SELECT id, role, content, thought, created_at FROM messages
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.ChatMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *SQLiteStore) AppendMemory(ctx context.Context, p AppendMemoryParams) (*model.Memory, error) {
	importance := p.Importance
	if importance == "" {
		importance = model.ImportanceLow
	}
	if !model.ValidImportance[importance] {
		return nil, fmt.Errorf("invalid importance %q (valid: low, medium)", importance)
	}
	db, release, err := s.conn()
	if err != nil {
		return nil, err
	}
	defer release()

	at := s.stamp(p.At)
	res, err := db.ExecContext(ctx,
		`INSERT INTO memories (content, importance, created_at) VALUES (?, ?, ?)`,
		p.Content, string(importance), at.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.Memory{ID: id, Content: p.Content, Importance: importance, CreatedAt: at}, nil
}

func (s *SQLiteStore) RecentMemories(ctx context.Context, p Page) ([]model.Memory, error) {
	db, release, err := s.conn()
	if err != nil {
		return nil, err
	}
	defer release()

	limit, offset := p.window(50)
	rows, err := db.QueryContext(ctx,
		`SELECT id, content, importance, created_at FROM memories
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

func (s *SQLiteStore) AppendGalleryItem(ctx context.Context, p AppendGalleryParams) (*model.GalleryItem, error) {
	if p.MediaURL == "" {
		return nil, fmt.Errorf("media url is required")
	}
	db, release, err := s.conn()
	if err != nil {
		return nil, err
	}
	defer release()

	at := s.stamp(p.At)
	res, err := db.ExecContext(ctx,
		`INSERT INTO gallery (prompt, media_url, seed, created_at) VALUES (?, ?, ?, ?)`,
		p.Prompt, p.MediaURL, p.Seed, at.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("insert gallery item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.GalleryItem{ID: id, Prompt: p.Prompt, MediaURL: p.MediaURL, Seed: p.Seed, CreatedAt: at}, nil
}

func (s *SQLiteStore) RecentGallery(ctx context.Context, p Page) ([]model.GalleryItem, error) {
	db, release, err := s.conn()
	if err != nil {
		return nil, err
	}
	defer release()

	limit, offset := p.window(100)
	rows, err := db.QueryContext(ctx,
		`SELECT id, prompt, media_url, seed, created_at FROM gallery
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.GalleryItem
	for rows.Next() {
		var g model.GalleryItem
		var createdAt int64
		if err := rows.Scan(&g.ID, &g.Prompt, &g.MediaURL, &g.Seed, &createdAt); err != nil {
			return nil, err
		}
		g.CreatedAt = time.UnixMilli(createdAt).UTC()
		items = append(items, g)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) ClearTable(ctx context.Context, t Table) error {
	if !ValidTables[t] {
		return fmt.Errorf("invalid table %q", t)
	}
	db, release, err := s.conn()
	if err != nil {
		return err
	}
	defer release()

	// Table names come from the closed set above.
	_, err = db.ExecContext(ctx, `DELETE FROM `+string(t))
	return err
}

// HardReset clears every table in one transaction.
func (s *SQLiteStore) HardReset(ctx context.Context) error {
	db, release, err := s.conn()
	if err != nil {
		return err
	}
	defer release()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range []Table{TableMessages, TableMemories, TableGallery, TablePreferences} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+string(t)); err != nil {
			return fmt.Errorf("clear %s: %w", t, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetPreference(ctx context.Context, key string) (string, bool, error) {
	db, release, err := s.conn()
	if err != nil {
		return "", false, err
	}
	defer release()

	var value string
	err = db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *SQLiteStore) SetPreference(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("preference key is required")
	}
	db, release, err := s.conn()
	if err != nil {
		return err
	}
	defer release()

	_, err = db.ExecContext(ctx,
		`INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.now().UnixMilli())
	return err
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (p Page) window(defaultLimit int) (int, int) {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row scanner) (model.ChatMessage, error) {
	var m model.ChatMessage
	var role string
	var thought sql.NullString
	var createdAt int64

	if err := row.Scan(&m.ID, &role, &m.Content, &thought, &createdAt); err != nil {
		return m, err
	}
	m.Role = model.Role(role)
	if thought.Valid {
		m.Thought = thought.String
	}
	m.CreatedAt = time.UnixMilli(createdAt).UTC()
	return m, nil
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var importance string
	var createdAt int64

	if err := row.Scan(&m.ID, &m.Content, &importance, &createdAt); err != nil {
		return m, err
	}
	m.Importance = model.Importance(importance)
	m.CreatedAt = time.UnixMilli(createdAt).UTC()
	return m, nil
}
