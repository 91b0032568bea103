package store

import (
	"context"
	"time"
)

// Cleanup removes expired nonces, rate entries and old usage rows. Each
// delete is independent; the first error stops the pass.
func (s *Store) Cleanup(ctx context.Context, nonceCutoff, rateCutoff, usageCutoff time.Time) (CleanupReport, error) {
	var (
		rep CleanupReport
		err error
	)
	if rep.Nonces, err = s.DeleteNoncesBefore(ctx, nonceCutoff); err != nil {
		return rep, err
	}
	if rep.RateEntries, err = s.DeleteRateEntriesBefore(ctx, rateCutoff); err != nil {
		return rep, err
	}
	if rep.UsageRows, err = s.DeleteUsageRowsBefore(ctx, usageCutoff); err != nil {
		return rep, err
	}
	return rep, nil
}
