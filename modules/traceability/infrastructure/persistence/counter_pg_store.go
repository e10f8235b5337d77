package persistence

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/mbellanger/Audits-And-Actions/modules/traceability/domain/ports"
	"github.com/mbellanger/Audits-And-Actions/modules/traceability/domain/types"
)

type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CounterPGStore backs the counter contract with one upsert statement, so the
// create-at-1 and increment cases are the same atomic step and the row is
// committed before the value is returned.
type CounterPGStore struct {
	q pgQuerier
}

func NewCounterPGStore(q pgQuerier) ports.CounterStore {
	return &CounterPGStore{q: q}
}

func (s *CounterPGStore) IncrementAndGet(ctx context.Context, key string) (int64, error) {
	if strings.TrimSpace(key) == "" {
		return 0, types.NewInvalidKey("counter key must not be empty")
	}

	var sequence int64
	err := s.q.QueryRow(ctx, `
INSERT INTO traceability.counters (key, organization_id, sequence)
VALUES ($1, $2, 1)
ON CONFLICT (key) DO UPDATE SET
  sequence = counters.sequence + 1,
  updated_at = now()
RETURNING sequence;
`, key, organizationFromKey(key)).Scan(&sequence)
	if err != nil {
		return 0, types.NewStoreUnavailable(err)
	}
	return sequence, nil
}

// organizationFromKey recovers the tenant discriminator folded into the key
// ({org}:{prefix}_{scope}). Stored redundantly for filtering and audit trails.
func organizationFromKey(key string) string {
	org, _, ok := strings.Cut(key, ":")
	if !ok {
		return ""
	}
	return org
}
