package store

import (
	"context"
	"fmt"
	"time"

	"match-reward-engine/internal/match"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// DailyUsageTotal reads the per-day aggregate. A missing row is zero usage.
func (s *Store) DailyUsageTotal(ctx context.Context, wallet string, day time.Time, usage match.UsageType) (decimal.Decimal, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()
	var total string
	err := s.Pool.QueryRow(ctx,
		`SELECT COALESCE(
		   (SELECT total::text FROM daily_usage_totals WHERE wallet = $1 AND day = $2 AND usage_type = $3),
		   '0')`,
		wallet, dateParam(day), string(usage)).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("daily usage total: %w", err)
	}
	return numericVal(total)
}

func (s *Store) ListDailyUsage(ctx context.Context, wallet string, since time.Time) ([]UsageTotal, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()
	rows, err := s.Pool.Query(ctx,
		`SELECT day, usage_type, total::text FROM daily_usage_totals
		 WHERE wallet = $1 AND day >= $2
		 ORDER BY day DESC, usage_type`,
		wallet, dateParam(since))
	if err != nil {
		return nil, fmt.Errorf("list daily usage: %w", err)
	}
	defer rows.Close()

	out := []UsageTotal{}
	for rows.Next() {
		var (
			day   pgtype.Date
			typ   string
			total string
		)
		if err := rows.Scan(&day, &typ, &total); err != nil {
			return nil, err
		}
		amount, err := numericVal(total)
		if err != nil {
			return nil, err
		}
		out = append(out, UsageTotal{Day: day.Time, Type: match.UsageType(typ), Total: amount})
	}
	return out, rows.Err()
}

// DeleteUsageRowsBefore removes per-match usage rows. Aggregates are kept.
func (s *Store) DeleteUsageRowsBefore(ctx context.Context, day time.Time) (int64, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()
	tag, err := s.Pool.Exec(ctx, `DELETE FROM daily_usage WHERE day < $1`, dateParam(day))
	if err != nil {
		return 0, fmt.Errorf("delete usage rows: %w", err)
	}
	return tag.RowsAffected(), nil
}
