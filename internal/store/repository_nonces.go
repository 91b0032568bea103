package store

import (
	"context"
	"fmt"
	"time"
)

// ConsumeNonce inserts the nonce once. It returns false when the nonce was
// already present, including when a concurrent request won the insert.
func (s *Store) ConsumeNonce(ctx context.Context, nonce, wallet string, at time.Time) (bool, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()
	tag, err := s.Pool.Exec(ctx,
		`INSERT INTO nonces (nonce, wallet, consumed_at) VALUES ($1, $2, $3)
		 ON CONFLICT (nonce) DO NOTHING`,
		nonce, wallet, timestamptzParam(at))
	if err != nil {
		return false, fmt.Errorf("consume nonce: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) DeleteNoncesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()
	tag, err := s.Pool.Exec(ctx, `DELETE FROM nonces WHERE consumed_at < $1`, timestamptzParam(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete nonces: %w", err)
	}
	return tag.RowsAffected(), nil
}
