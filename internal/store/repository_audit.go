package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func (s *Store) InsertAudit(ctx context.Context, rec AuditRecord) (string, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()
	if rec.ID == "" {
		rec.ID = NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO validation_audit
		   (id, match_id, wallet, final_state, allowed, reason_code, risk_score, flags, security_checks, reward_breakdown, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9::jsonb, $10::jsonb, $11)`,
		rec.ID, rec.MatchID, rec.Wallet, rec.FinalState, rec.Allowed, rec.ReasonCode, rec.RiskScore,
		jsonArrayParam(rec.Flags), jsonArrayParam(rec.SecurityChecks), jsonParam(rec.RewardBreakdown),
		timestamptzParam(rec.CreatedAt))
	if err != nil {
		return "", fmt.Errorf("insert audit: %w", err)
	}
	return rec.ID, nil
}

func (s *Store) ListAudit(ctx context.Context, f AuditFilter, limit, offset int) ([]AuditRecord, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT id, match_id, wallet, final_state, allowed, reason_code, risk_score,
		        flags::text, security_checks::text, reward_breakdown::text, created_at
		 FROM validation_audit
		 WHERE ($1 = '' OR wallet = $1) AND ($2 = '' OR match_id = $2)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3 OFFSET $4`,
		f.Wallet, f.MatchID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	out := []AuditRecord{}
	for rows.Next() {
		var (
			rec       AuditRecord
			flags     string
			checks    string
			breakdown pgtype.Text
		)
		if err := rows.Scan(&rec.ID, &rec.MatchID, &rec.Wallet, &rec.FinalState, &rec.Allowed, &rec.ReasonCode,
			&rec.RiskScore, &flags, &checks, &breakdown, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Flags = json.RawMessage(flags)
		rec.SecurityChecks = json.RawMessage(checks)
		if breakdown.Valid {
			rec.RewardBreakdown = json.RawMessage(breakdown.String)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func jsonArrayParam(v json.RawMessage) string {
	if len(v) == 0 || string(v) == "null" {
		return "[]"
	}
	return string(v)
}

func jsonParam(v json.RawMessage) pgtype.Text {
	if len(v) == 0 || string(v) == "null" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: string(v), Valid: true}
}
