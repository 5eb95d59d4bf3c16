package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/companion/internal/model"
)

// SearchParams holds parameters for searching the conversation.
type SearchParams struct {
	Query string
	Role  model.Role // empty matches both
	Limit int
}

// SearchMessages finds messages whose content or thought contains the query, newest first.
func (s *SQLiteStore) SearchMessages(ctx context.Context, p SearchParams) ([]model.ChatMessage, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	db, release, err := s.conn()
	if err != nil {
		return nil, err
	}
	defer release()

	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	query := "%" + p.Query + "%"
	where := []string{"(content LIKE ? OR thought LIKE ?)"}
	args := []interface{}{query, query}

	if p.Role != "" {
		where = append(where, "role = ?")
		args = append(args, string(p.Role))
	}

	sql := fmt.Sprintf(`
		SELECT id, role, content, thought, created_at
		FROM messages
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, strings.Join(where, " AND "))
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.ChatMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}
