// Package store provides the companion's append-only record log and its SQLite implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rcliao/companion/internal/model"
)

// ErrStoreUnavailable is returned when the store was never opened or has been closed.
var ErrStoreUnavailable = errors.New("store unavailable")

// Table names a logical record table.
type Table string

const (
	TableMessages    Table = "messages"
	TableMemories    Table = "memories"
	TableGallery     Table = "gallery"
	TablePreferences Table = "preferences"
)

// ValidTables are the tables that may be cleared.
var ValidTables = map[Table]bool{
	TableMessages:    true,
	TableMemories:    true,
	TableGallery:     true,
	TablePreferences: true,
}

// Page selects a window of records, newest first.
type Page struct {
	Limit  int
	Offset int
}

// AppendMessageParams holds parameters for appending a chat message.
type AppendMessageParams struct {
	Role    model.Role
	Content string
	Thought string
	At      time.Time // zero means now
}

// AppendMemoryParams holds parameters for appending a memory.
type AppendMemoryParams struct {
	Content    string
	Importance model.Importance
	At         time.Time
}

// AppendGalleryParams holds parameters for appending a gallery item.
type AppendGalleryParams struct {
	Prompt   string
	MediaURL string
	Seed     int64
	At       time.Time
}

// Store defines the record log. Records are immutable once appended; only whole tables may be
// cleared.
type Store interface {
	// AppendMessage stores a chat message and returns it with its assigned ID.
	AppendMessage(ctx context.Context, p AppendMessageParams) (*model.ChatMessage, error)

	// RecentMessages returns messages newest first.
	RecentMessages(ctx context.Context, p Page) ([]model.ChatMessage, error)

	AppendMemory(ctx context.Context, p AppendMemoryParams) (*model.Memory, error)
	RecentMemories(ctx context.Context, p Page) ([]model.Memory, error)

	AppendGalleryItem(ctx context.Context, p AppendGalleryParams) (*model.GalleryItem, error)
	RecentGallery(ctx context.Context, p Page) ([]model.GalleryItem, error)

	// ClearTable removes every record of a table.
	ClearTable(ctx context.Context, t Table) error

	// HardReset clears every table, preferences included, all or nothing.
	HardReset(ctx context.Context) error

	// GetPreference returns the stored value and whether it exists.
	GetPreference(ctx context.Context, key string) (string, bool, error)
	SetPreference(ctx context.Context, key, value string) error

	// Close closes the store.
	Close() error
}
