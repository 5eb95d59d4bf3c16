package store

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rcliao/companion/internal/model"
)

// ContextParams holds parameters for prompt context assembly.
type ContextParams struct {
	HistoryLimit int // most recent messages to include
	Budget       int // max chars of memory content
	Now          time.Time
}

// ContextMemory is a scored memory selected for the prompt.
type ContextMemory struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Excerpt bool    `json:"excerpt,omitempty"`
}

// ContextResult is the assembled context for one outgoing request.
type ContextResult struct {
	History  []model.ChatMessage `json:"history"` // oldest first
	Memories []ContextMemory     `json:"memories"`
	Budget   int                 `json:"budget"`
	Used     int                 `json:"used"`
}

// BuildContext collects the recent conversation and packs the best memories into the budget.
func BuildContext(ctx context.Context, s Store, p ContextParams) (*ContextResult, error) {
	limit := p.HistoryLimit
	if limit <= 0 {
		limit = 6
	}
	budget := p.Budget
	if budget <= 0 {
		budget = 1200
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}

	recent, err := s.RecentMessages(ctx, Page{Limit: limit})
	if err != nil {
		return nil, err
	}
	history := make([]model.ChatMessage, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		history = append(history, recent[i])
	}

	memories, err := s.RecentMemories(ctx, Page{Limit: 50})
	if err != nil {
		return nil, err
	}

	result := &ContextResult{History: history, Budget: budget, Memories: []ContextMemory{}}
	if len(memories) == 0 {
		return result, nil
	}

	type scored struct {
		memory model.Memory
		score  float64
	}
	candidates := make([]scored, 0, len(memories))
	for _, m := range memories {
		// Recency: exponential decay over days
		age := now.Sub(m.CreatedAt).Hours() / 24.0
		if age < 0 {
			age = 0
		}
		recency := math.Exp(-0.1 * age)
		score := recency*0.6 + importanceScore(m.Importance)*0.4
		candidates = append(candidates, scored{memory: m, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	used := 0
	for _, c := range candidates {
		contentLen := len(c.memory.Content)
		if used+contentLen <= budget {
			result.Memories = append(result.Memories, ContextMemory{
				Content: c.memory.Content,
				Score:   math.Round(c.score*100) / 100,
			})
			used += contentLen
		} else if remaining := budget - used; remaining >= 100 {
			// Partial fit
			excerpt := truncateRunes(c.memory.Content, remaining) + "..."
			result.Memories = append(result.Memories, ContextMemory{
				Content: excerpt,
				Score:   math.Round(c.score*100) / 100,
				Excerpt: true,
			})
			used += len(excerpt)
			break
		} else {
			break
		}
	}
	result.Used = used

	return result, nil
}

func importanceScore(i model.Importance) float64 {
	switch i {
	case model.ImportanceMedium:
		return 1.0
	case model.ImportanceLow:
		return 0.5
	default:
		return 0.5
	}
}

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
