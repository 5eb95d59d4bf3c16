package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rcliao/companion/internal/model"
)

func TestContextHistoryOldestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		s.AppendMessage(ctx, AppendMessageParams{
			Role: model.RoleUser, Content: string(rune('a' + i)), At: base.Add(time.Duration(i) * time.Second),
		})
	}

	result, err := BuildContext(ctx, s, ContextParams{HistoryLimit: 6})
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if len(result.History) != 6 {
		t.Fatalf("expected 6 history messages, got %d", len(result.History))
	}
	if result.History[0].Content != "c" || result.History[5].Content != "h" {
		t.Errorf("expected c..h oldest first, got %q..%q", result.History[0].Content, result.History[5].Content)
	}
	if len(result.Memories) != 0 {
		t.Errorf("expected no memories, got %d", len(result.Memories))
	}
}

func TestContextPrefersImportantMemories(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	s.AppendMemory(ctx, AppendMemoryParams{Content: "low one", Importance: model.ImportanceLow, At: now})
	s.AppendMemory(ctx, AppendMemoryParams{Content: "medium one", Importance: model.ImportanceMedium, At: now})

	result, err := BuildContext(ctx, s, ContextParams{Now: now})
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if len(result.Memories) != 2 {
		t.Fatalf("expected 2 memories, got %d", len(result.Memories))
	}
	if result.Memories[0].Content != "medium one" {
		t.Errorf("expected medium memory first, got %q", result.Memories[0].Content)
	}
}

func TestContextBudgetLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Now()
	s.AppendMemory(ctx, AppendMemoryParams{Content: strings.Repeat("x", 150), At: now})
	s.AppendMemory(ctx, AppendMemoryParams{Content: strings.Repeat("y", 150), At: now})

	result, err := BuildContext(ctx, s, ContextParams{Budget: 240, Now: now})
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if len(result.Memories) != 1 {
		t.Fatalf("expected 1 memory within budget, got %d", len(result.Memories))
	}
	if result.Used > result.Budget {
		t.Errorf("used %d exceeds budget %d", result.Used, result.Budget)
	}
}

func TestContextExcerpt(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Now()
	s.AppendMemory(ctx, AppendMemoryParams{Content: strings.Repeat("z", 500), At: now})

	result, _ := BuildContext(ctx, s, ContextParams{Budget: 200, Now: now})
	if len(result.Memories) != 1 || !result.Memories[0].Excerpt {
		t.Fatalf("expected one excerpt, got %+v", result.Memories)
	}
	if !strings.HasSuffix(result.Memories[0].Content, "...") {
		t.Errorf("expected excerpt to end with ellipsis")
	}
}
