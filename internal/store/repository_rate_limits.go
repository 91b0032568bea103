package store

import (
	"context"
	"fmt"
	"time"
)

func (s *Store) CountRequests(ctx context.Context, wallet, endpoint string, since time.Time) (int, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()
	var n int
	err := s.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM rate_limit_entries
		 WHERE wallet = $1 AND endpoint = $2 AND requested_at > $3`,
		wallet, endpoint, timestamptzParam(since)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}
	return n, nil
}

func (s *Store) RecordRequest(ctx context.Context, wallet, endpoint string, at time.Time) error {
	ctx, cancel := s.op(ctx)
	defer cancel()
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO rate_limit_entries (id, wallet, endpoint, requested_at) VALUES ($1, $2, $3, $4)`,
		NewIDAt(at), wallet, endpoint, timestamptzParam(at))
	if err != nil {
		return fmt.Errorf("record request: %w", err)
	}
	return nil
}

func (s *Store) DeleteRateEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()
	tag, err := s.Pool.Exec(ctx, `DELETE FROM rate_limit_entries WHERE requested_at < $1`, timestamptzParam(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete rate entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
