package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rcliao/companion/internal/model"
)

// Snapshot is a full export of the log, each table oldest first.
type Snapshot struct {
	ExportedAt  time.Time           `json:"exported_at"`
	Messages    []model.ChatMessage `json:"messages"`
	Memories    []model.Memory      `json:"memories"`
	Gallery     []model.GalleryItem `json:"gallery"`
	Preferences map[string]string   `json:"preferences"`
}

// ExportAll returns every record in the store.
func (s *SQLiteStore) ExportAll(ctx context.Context) (*Snapshot, error) {
	db, release, err := s.conn()
	if err != nil {
		return nil, err
	}
	defer release()

	snap := &Snapshot{ExportedAt: s.now().UTC(), Preferences: map[string]string{}}

	rows, err := db.QueryContext(ctx,
		`SELECT id, role, content, thought, created_at FROM messages ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		snap.Messages = append(snap.Messages, m)
	}
	rows.Close()

	rows, err = db.QueryContext(ctx,
		`SELECT id, content, importance, created_at FROM memories ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		snap.Memories = append(snap.Memories, m)
	}
	rows.Close()

	rows, err = db.QueryContext(ctx,
		`SELECT id, prompt, media_url, seed, created_at FROM gallery ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var g model.GalleryItem
		var createdAt int64
		if err := rows.Scan(&g.ID, &g.Prompt, &g.MediaURL, &g.Seed, &createdAt); err != nil {
			rows.Close()
			return nil, err
		}
		g.CreatedAt = time.UnixMilli(createdAt).UTC()
		snap.Gallery = append(snap.Gallery, g)
	}
	rows.Close()

	rows, err = db.QueryContext(ctx, `SELECT key, value FROM preferences ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		snap.Preferences[k] = v
	}

	return snap, rows.Err()
}

// Import appends the records of a snapshot, keeping their original timestamps.
// IDs are reassigned by the store. Returns the number of records appended.
func (s *SQLiteStore) Import(ctx context.Context, snap *Snapshot) (int, error) {
	imported := 0
	for _, m := range snap.Messages {
		if _, err := s.AppendMessage(ctx, AppendMessageParams{
			Role: m.Role, Content: m.Content, Thought: m.Thought, At: m.CreatedAt,
		}); err != nil {
			return imported, fmt.Errorf("import message %d: %w", m.ID, err)
		}
		imported++
	}
	for _, m := range snap.Memories {
		if _, err := s.AppendMemory(ctx, AppendMemoryParams{
			Content: m.Content, Importance: m.Importance, At: m.CreatedAt,
		}); err != nil {
			return imported, fmt.Errorf("import memory %d: %w", m.ID, err)
		}
		imported++
	}
	for _, g := range snap.Gallery {
		if _, err := s.AppendGalleryItem(ctx, AppendGalleryParams{
			Prompt: g.Prompt, MediaURL: g.MediaURL, Seed: g.Seed, At: g.CreatedAt,
		}); err != nil {
			return imported, fmt.Errorf("import gallery item %d: %w", g.ID, err)
		}
		imported++
	}
	for k, v := range snap.Preferences {
		if err := s.SetPreference(ctx, k, v); err != nil {
			return imported, fmt.Errorf("import preference %s: %w", k, err)
		}
	}
	return imported, nil
}
