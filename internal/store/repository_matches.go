package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"match-reward-engine/internal/match"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// RecordAcceptedMatch registers the match and its daily usage in one
// transaction. It returns ErrAlreadyRecorded when the match id is taken,
// in which case nothing is written.
func (s *Store) RecordAcceptedMatch(ctx context.Context, m AcceptedMatch) error {
	ctx, cancel := s.op(ctx)
	defer cancel()

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin record match: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO processed_matches (match_id, wallet, placement, player_count, reward, risk_score, processed_at)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
		 ON CONFLICT (match_id) DO NOTHING`,
		m.MatchID, m.Wallet, m.Placement, m.PlayerCount, numericParam(m.Reward), m.RiskScore, timestamptzParam(m.ProcessedAt))
	if err != nil {
		return fmt.Errorf("insert processed match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyRecorded
	}

	day := match.DayBucket(m.ProcessedAt)
	usage := []struct {
		typ    match.UsageType
		amount decimal.Decimal
	}{
		{match.UsageMatch, decimal.NewFromInt(1)},
		{match.UsageReward, m.Reward},
	}
	for _, u := range usage {
		if err := addUsage(ctx, tx, m, day, u.typ, u.amount); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit record match: %w", err)
	}
	return nil
}

func addUsage(ctx context.Context, tx pgx.Tx, m AcceptedMatch, day time.Time, typ match.UsageType, amount decimal.Decimal) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO daily_usage (id, wallet, usage_type, amount, match_id, day)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6)`,
		NewIDAt(m.ProcessedAt), m.Wallet, string(typ), numericParam(amount), m.MatchID, dateParam(day))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyRecorded
		}
		return fmt.Errorf("insert %s usage: %w", typ, err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO daily_usage_totals (wallet, day, usage_type, total, updated_at)
		 VALUES ($1, $2, $3, $4::numeric, now())
		 ON CONFLICT (wallet, day, usage_type)
		 DO UPDATE SET total = daily_usage_totals.total + EXCLUDED.total, updated_at = now()`,
		m.Wallet, dateParam(day), string(typ), numericParam(amount))
	if err != nil {
		return fmt.Errorf("upsert %s total: %w", typ, err)
	}
	return nil
}

func (s *Store) IsMatchProcessed(ctx context.Context, matchID string) (bool, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()
	var exists bool
	err := s.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM processed_matches WHERE match_id = $1)`, matchID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("match processed lookup: %w", err)
	}
	return exists, nil
}

// RecentMatches returns accepted matches for a wallet, newest first.
func (s *Store) RecentMatches(ctx context.Context, wallet string, since time.Time, limit int) ([]match.HistoryEntry, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT match_id, placement, processed_at FROM processed_matches
		 WHERE wallet = $1 AND processed_at >= $2
		 ORDER BY processed_at DESC, match_id DESC
		 LIMIT $3`,
		wallet, timestamptzParam(since), limit)
	if err != nil {
		return nil, fmt.Errorf("recent matches: %w", err)
	}
	defer rows.Close()

	out := []match.HistoryEntry{}
	for rows.Next() {
		var h match.HistoryEntry
		if err := rows.Scan(&h.MatchID, &h.Placement, &h.ProcessedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

const processedMatchColumns = `match_id, wallet, placement, player_count, reward::text, risk_score,
	settlement_status, settlement_ref, mint_attempts, last_mint_error, processed_at, settled_at`

func scanProcessedMatch(row pgx.Row) (*ProcessedMatch, error) {
	var (
		m         ProcessedMatch
		reward    string
		status    string
		ref       pgtype.Text
		lastErr   pgtype.Text
		settledAt pgtype.Timestamptz
	)
	if err := row.Scan(&m.MatchID, &m.Wallet, &m.Placement, &m.PlayerCount, &reward, &m.RiskScore,
		&status, &ref, &m.MintAttempts, &lastErr, &m.ProcessedAt, &settledAt); err != nil {
		return nil, err
	}
	amount, err := numericVal(reward)
	if err != nil {
		return nil, err
	}
	m.Reward = amount
	m.SettlementStatus = SettlementStatus(status)
	m.SettlementRef = textVal(ref)
	m.LastMintError = textVal(lastErr)
	m.SettledAt = timePtrVal(settledAt)
	return &m, nil
}

func (s *Store) GetProcessedMatch(ctx context.Context, matchID string) (*ProcessedMatch, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()
	row := s.Pool.QueryRow(ctx, `SELECT `+processedMatchColumns+` FROM processed_matches WHERE match_id = $1`, matchID)
	m, err := scanProcessedMatch(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return m, nil
}

func (s *Store) ListProcessedMatches(ctx context.Context, wallet string, limit, offset int) ([]ProcessedMatch, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT `+processedMatchColumns+` FROM processed_matches
		 WHERE ($1 = '' OR wallet = $1)
		 ORDER BY processed_at DESC, match_id DESC
		 LIMIT $2 OFFSET $3`,
		wallet, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list processed matches: %w", err)
	}
	return collectProcessedMatches(rows)
}

// ListUnsettledMatches returns pending or failed matches processed before
// the cutoff that still have mint attempts left, oldest first.
func (s *Store) ListUnsettledMatches(ctx context.Context, before time.Time, maxAttempts, limit int) ([]ProcessedMatch, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()
	rows, err := s.Pool.Query(ctx,
		`SELECT `+processedMatchColumns+` FROM processed_matches
		 WHERE settlement_status <> 'minted' AND processed_at < $1 AND mint_attempts < $2
		 ORDER BY processed_at ASC
		 LIMIT $3`,
		timestamptzParam(before), maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsettled matches: %w", err)
	}
	return collectProcessedMatches(rows)
}

func collectProcessedMatches(rows pgx.Rows) ([]ProcessedMatch, error) {
	defer rows.Close()
	out := []ProcessedMatch{}
	for rows.Next() {
		m, err := scanProcessedMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// MarkMatchMinted stores the mint reference. Already minted matches keep
// their first reference.
func (s *Store) MarkMatchMinted(ctx context.Context, matchID, ref string, at time.Time) error {
	ctx, cancel := s.op(ctx)
	defer cancel()
	tag, err := s.Pool.Exec(ctx,
		`UPDATE processed_matches
		 SET settlement_status = 'minted', settlement_ref = $2, settled_at = $3,
		     mint_attempts = mint_attempts + 1, last_mint_error = NULL
		 WHERE match_id = $1 AND settlement_status <> 'minted'`,
		matchID, textParam(ref), timestamptzParam(at))
	if err != nil {
		return fmt.Errorf("mark minted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetProcessedMatch(ctx, matchID); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
	}
	return nil
}

func (s *Store) MarkMintFailed(ctx context.Context, matchID, reason string) error {
	ctx, cancel := s.op(ctx)
	defer cancel()
	tag, err := s.Pool.Exec(ctx,
		`UPDATE processed_matches
		 SET settlement_status = 'failed', mint_attempts = mint_attempts + 1, last_mint_error = $2
		 WHERE match_id = $1 AND settlement_status <> 'minted'`,
		matchID, textParam(reason))
	if err != nil {
		return fmt.Errorf("mark mint failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetProcessedMatch(ctx, matchID); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
	}
	return nil
}
