package cache

import (
	"context"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
)

// StatsCache holds derived credit statistics for display.
// It is never a source of truth: a miss or an error falls back to the ledger.
//
// Every user has a generation counter. Invalidate bumps it, and a fill only
// lands when the counter still matches the one read before the stats were
// computed, so a mutation committed mid-fill cannot leave stale stats behind.
type StatsCache interface {
	// GetStats returns the cached stats and whether they were present
	GetStats(ctx context.Context, userID string) (*entity.CreditStats, bool, error)
	// Version returns the user's current generation; zero before the first invalidation
	Version(ctx context.Context, userID string) (int64, error)
	// SetStats stores stats computed at version and reports whether they were stored
	SetStats(ctx context.Context, userID string, version int64, stats *entity.CreditStats) (bool, error)
	// Invalidate drops the user's cached stats and bumps the generation after a mutation
	Invalidate(ctx context.Context, userID string) error
}
