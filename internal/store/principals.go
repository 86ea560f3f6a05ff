package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Principal is the slice of an authenticated user this system owns: the
// identity key and a point balance. Identity itself lives in the external
// auth subsystem.
type Principal struct {
	ID     string `json:"id"`
	Points int    `json:"points"`
}

// GetPrincipal returns a principal's point balance. Principals the store
// has never rewarded report zero points rather than ErrNotFound, since
// their existence is authoritative upstream.
func (s *Store) GetPrincipal(ctx context.Context, id string) (Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, points FROM principals WHERE id = ?`, id)
	var p Principal
	if err := row.Scan(&p.ID, &p.Points); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Principal{ID: id}, nil
		}
		return Principal{}, fmt.Errorf("get principal: %w", err)
	}
	return p, nil
}

// AddPoints applies a signed atomic increment to a principal's balance,
// creating the row on first award.
func (s *Store) AddPoints(ctx context.Context, id string, delta int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO principals (id, points) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET points = points + excluded.points`,
		id, delta)
	if err != nil {
		return fmt.Errorf("add points: %w", err)
	}
	return nil
}
