package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcliao/companion/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndRecentMessage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	msg, err := s.AppendMessage(ctx, AppendMessageParams{
		Role: model.RoleUser, Content: "hello jaan",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if msg.ID == 0 {
		t.Error("expected non-zero ID")
	}

	got, err := s.RecentMessages(ctx, Page{Limit: 1})
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if got[0].ID != msg.ID || got[0].Content != "hello jaan" || got[0].Role != model.RoleUser {
		t.Errorf("round trip mismatch: %+v vs %+v", got[0], msg)
	}
	if !got[0].CreatedAt.Equal(msg.CreatedAt) {
		t.Errorf("expected created_at %v, got %v", msg.CreatedAt, got[0].CreatedAt)
	}
}

func TestMessageIDsMonotonic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var last int64
	for i := 0; i < 5; i++ {
		m, err := s.AppendMessage(ctx, AppendMessageParams{Role: model.RoleAssistant, Content: "x"})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if m.ID <= last {
			t.Errorf("expected id > %d, got %d", last, m.ID)
		}
		last = m.ID
	}
}

func TestRecentMessagesNewestFirstWithOffset(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, c := range []string{"one", "two", "three", "four"} {
		s.AppendMessage(ctx, AppendMessageParams{
			Role: model.RoleUser, Content: c, At: base.Add(time.Duration(i) * time.Minute),
		})
	}

	page, _ := s.RecentMessages(ctx, Page{Limit: 2})
	if len(page) != 2 || page[0].Content != "four" || page[1].Content != "three" {
		t.Fatalf("unexpected first page: %+v", page)
	}

	page, _ = s.RecentMessages(ctx, Page{Limit: 2, Offset: 2})
	if len(page) != 2 || page[0].Content != "two" || page[1].Content != "one" {
		t.Fatalf("unexpected second page: %+v", page)
	}
}

func TestSameTimestampOrdersByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.AppendMessage(ctx, AppendMessageParams{Role: model.RoleUser, Content: "first", At: at})
	s.AppendMessage(ctx, AppendMessageParams{Role: model.RoleAssistant, Content: "second", At: at})

	got, _ := s.RecentMessages(ctx, Page{Limit: 1})
	if got[0].Content != "second" {
		t.Errorf("expected later append first, got %q", got[0].Content)
	}
}

func TestInvalidRole(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AppendMessage(context.Background(), AppendMessageParams{Role: "system", Content: "x"})
	if err == nil {
		t.Error("expected error for invalid role")
	}
}

func TestThoughtPersisted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.AppendMessage(ctx, AppendMessageParams{Role: model.RoleAssistant, Content: "hi", Thought: "finally"})
	got, _ := s.RecentMessages(ctx, Page{Limit: 1})
	if got[0].Thought != "finally" {
		t.Errorf("expected thought 'finally', got %q", got[0].Thought)
	}
}

func TestMemoriesAndGallery(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem, err := s.AppendMemory(ctx, AppendMemoryParams{Content: "likes chai", Importance: model.ImportanceMedium})
	if err != nil {
		t.Fatalf("append memory: %v", err)
	}
	if mem.Importance != model.ImportanceMedium {
		t.Errorf("expected medium, got %q", mem.Importance)
	}

	mems, _ := s.RecentMemories(ctx, Page{})
	if len(mems) != 1 || mems[0].Content != "likes chai" {
		t.Errorf("unexpected memories: %+v", mems)
	}

	def, _ := s.AppendMemory(ctx, AppendMemoryParams{Content: "default"})
	if def.Importance != model.ImportanceLow {
		t.Errorf("expected default importance low, got %q", def.Importance)
	}

	if _, err := s.AppendMemory(ctx, AppendMemoryParams{Content: "x", Importance: "critical"}); err == nil {
		t.Error("expected error for invalid importance")
	}

	item, err := s.AppendGalleryItem(ctx, AppendGalleryParams{Prompt: "sunset", MediaURL: "https://img/1.png", Seed: 778822})
	if err != nil {
		t.Fatalf("append gallery: %v", err)
	}
	items, _ := s.RecentGallery(ctx, Page{Limit: 10})
	if len(items) != 1 || items[0].ID != item.ID || items[0].Seed != 778822 {
		t.Errorf("unexpected gallery: %+v", items)
	}

	if _, err := s.AppendGalleryItem(ctx, AppendGalleryParams{Prompt: "x"}); err == nil {
		t.Error("expected error for missing media url")
	}
}

func TestClearTable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.AppendMessage(ctx, AppendMessageParams{Role: model.RoleUser, Content: "a"})
	s.AppendMemory(ctx, AppendMemoryParams{Content: "m"})

	if err := s.ClearTable(ctx, TableMessages); err != nil {
		t.Fatalf("clear: %v", err)
	}

	msgs, _ := s.RecentMessages(ctx, Page{})
	if len(msgs) != 0 {
		t.Errorf("expected no messages, got %d", len(msgs))
	}
	mems, _ := s.RecentMemories(ctx, Page{})
	if len(mems) != 1 {
		t.Errorf("expected memories untouched, got %d", len(mems))
	}

	if err := s.ClearTable(ctx, Table("sqlite_master")); err == nil {
		t.Error("expected error for unknown table")
	}
}

func TestHardReset(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.AppendMessage(ctx, AppendMessageParams{Role: model.RoleUser, Content: "a"})
	s.AppendMemory(ctx, AppendMemoryParams{Content: "m"})
	s.AppendGalleryItem(ctx, AppendGalleryParams{MediaURL: "u"})
	s.SetPreference(ctx, "currentMood", "40")

	if err := s.HardReset(ctx); err != nil {
		t.Fatalf("hard reset: %v", err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalRecords != 0 || st.Preferences != 0 {
		t.Errorf("expected empty store, got %+v", st)
	}
}

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, ok, err := s.GetPreference(ctx, "currentMood")
	if err != nil || ok {
		t.Fatalf("expected absent preference, got ok=%v err=%v", ok, err)
	}

	s.SetPreference(ctx, "currentMood", "70")
	s.SetPreference(ctx, "currentMood", "55")

	v, ok, err := s.GetPreference(ctx, "currentMood")
	if err != nil || !ok || v != "55" {
		t.Errorf("expected 55, got %q ok=%v err=%v", v, ok, err)
	}

	if err := s.SetPreference(ctx, "", "x"); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestClosedStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.Close()

	_, err := s.AppendMessage(ctx, AppendMessageParams{Role: model.RoleUser, Content: "x"})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
	_, err = s.RecentMessages(ctx, Page{})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
	_, _, err = s.GetPreference(ctx, "k")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}

func TestOpenFailureUnavailable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewSQLiteStore(filepath.Join(blocker, "sub", "test.db"))
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)

	at := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	src.AppendMessage(ctx, AppendMessageParams{Role: model.RoleUser, Content: "hi", At: at})
	src.AppendMessage(ctx, AppendMessageParams{Role: model.RoleAssistant, Content: "hey", Thought: "yay", At: at.Add(time.Second)})
	src.AppendMemory(ctx, AppendMemoryParams{Content: "m", Importance: model.ImportanceMedium, At: at})
	src.AppendGalleryItem(ctx, AppendGalleryParams{Prompt: "p", MediaURL: "u", Seed: 1, At: at})
	src.SetPreference(ctx, "showThoughts", "true")

	snap, err := src.ExportAll(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(snap.Messages) != 2 || snap.Messages[0].Content != "hi" {
		t.Fatalf("expected oldest-first messages, got %+v", snap.Messages)
	}

	dst := newTestStore(t)
	n, err := dst.Import(ctx, snap)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4 records imported, got %d", n)
	}

	got, _ := dst.RecentMessages(ctx, Page{Limit: 1})
	if got[0].Content != "hey" || got[0].Thought != "yay" || !got[0].CreatedAt.Equal(at.Add(time.Second)) {
		t.Errorf("unexpected newest imported message: %+v", got[0])
	}
	v, ok, _ := dst.GetPreference(ctx, "showThoughts")
	if !ok || v != "true" {
		t.Errorf("expected preference imported, got %q", v)
	}
}
