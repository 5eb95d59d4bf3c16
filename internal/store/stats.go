package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath       string `json:"db_path"`
	DBSizeBytes  int64  `json:"db_size_bytes"`
	Messages     int    `json:"messages"`
	Memories     int    `json:"memories"`
	Gallery      int    `json:"gallery"`
	Preferences  int    `json:"preferences"`
	TotalRecords int    `json:"total"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	db, release, err := s.conn()
	if err != nil {
		return nil, err
	}
	defer release()

	st := &Stats{DBPath: s.path}

	// DB file size
	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	counts := []struct {
		table Table
		dest  *int
	}{
		{TableMessages, &st.Messages},
		{TableMemories, &st.Memories},
		{TableGallery, &st.Gallery},
		{TablePreferences, &st.Preferences},
	}
	for _, c := range counts {
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+string(c.table)).Scan(c.dest); err != nil {
			return st, err
		}
	}
	st.TotalRecords = st.Messages + st.Memories + st.Gallery

	return st, nil
}
