package statestore

import (
	"context"
	"database/sql"
	"fmt"

	"nrgchamp/homectl/internal/extid"
)

// tagID resolves id to its row id, upserting the tag on first write.
func (s *Store) tagID(ctx context.Context, id extid.ID) (int64, error) {
	var tagID int64
	err := s.db.sql.QueryRowContext(ctx, `SELECT id FROM tags WHERE channel = ? AND name = ?`, id.Type, id.Variant).Scan(&tagID)
	if err == nil {
		return tagID, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup tag %s: %w", id, err)
	}
	res, err := s.db.sql.ExecContext(ctx, `INSERT INTO tags(channel, name) VALUES (?, ?)`, id.Type, id.Variant)
	if err != nil {
		return 0, fmt.Errorf("insert tag %s: %w", id, err)
	}
	return res.LastInsertId()
}

// AllTags enumerates every known tag; used by the startup preload step.
func (s *Store) AllTags(ctx context.Context) ([]extid.ID, error) {
	rows, err := s.db.sql.QueryContext(ctx, `SELECT channel, name FROM tags`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var out []extid.ID
	for rows.Next() {
		var channel, name string
		if err := rows.Scan(&channel, &name); err != nil {
			return nil, err
		}
		out = append(out, extid.New(channel, name))
	}
	return out, rows.Err()
}
