package repository

import (
	"context"
	"encoding/json"

	"github.com/liloman25879/spring-vote-app/internal/model"
	"github.com/liloman25879/spring-vote-app/internal/store"
)

// TokenRepo is the per-user token ledger: remaining vote tokens per rating
// tier. Counts only move through atomic single-key transactions; a plain
// read-then-write would allow lost updates between concurrent voters.
type TokenRepo struct {
	store  store.Store
	budget model.TokenLedger
}

func NewTokenRepo(st store.Store, budget model.TokenLedger) *TokenRepo {
	return &TokenRepo{store: st, budget: budget}
}

// Budget returns the configured per-tier maxima.
func (r *TokenRepo) Budget() model.TokenLedger { return r.budget.Clone() }

// Decrement spends one token in the given tier. Returns false without
// touching the ledger when the tier is already empty — an expected outcome,
// not an error. Two concurrent calls against a balance of 1 yield exactly
// one success.
func (r *TokenRepo) Decrement(ctx context.Context, userID string, tier int) (bool, error) {
	ok := false
	err := r.store.Txn(ctx, tokenPath(userID, tier), func(cur []byte) (any, error) {
		// The closure can run again after a lost CAS race; only the
		// attempt that actually commits may report success.
		ok = false
		n := parseCount(cur)
		if n <= 0 {
			return nil, store.ErrUnchanged
		}
		ok = true
		return n - 1, nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Increment refunds one token in the given tier, clamped at the configured
// maximum. Clamping is a no-op, not an error; the only failure mode is the
// storage layer itself.
func (r *TokenRepo) Increment(ctx context.Context, userID string, tier int) error {
	return r.store.Txn(ctx, tokenPath(userID, tier), func(cur []byte) (any, error) {
		n := parseCount(cur)
		if n >= r.budget[tier] {
			return nil, store.ErrUnchanged
		}
		return n + 1, nil
	})
}

// Balances returns the user's remaining tokens for every tier. Missing
// paths read as zero.
func (r *TokenRepo) Balances(ctx context.Context, userID string) (model.TokenLedger, error) {
	ledger := make(model.TokenLedger, len(model.Tiers))
	for _, tier := range model.Tiers {
		data, err := r.store.Get(ctx, tokenPath(userID, tier))
		if err == store.ErrNotFound {
			ledger[tier] = 0
			continue
		}
		if err != nil {
			return nil, err
		}
		ledger[tier] = parseCount(data)
	}
	return ledger, nil
}

// ResetChanges returns the batch entries that restore the user's ledger to
// the full starting allocation. The admin reset merges these with the vote
// deletions so both land in one atomic write.
func (r *TokenRepo) ResetChanges(userID string) map[string]any {
	changes := make(map[string]any, len(model.Tiers))
	for _, tier := range model.Tiers {
		changes[tokenPath(userID, tier)] = r.budget[tier]
	}
	return changes
}

// InitTier writes the tier's starting allocation, but only when no
// counter exists at the path yet. A count that a concurrent spend already
// created is left alone, whatever its value.
func (r *TokenRepo) InitTier(ctx context.Context, userID string, tier int) error {
	return r.store.Txn(ctx, tokenPath(userID, tier), func(cur []byte) (any, error) {
		if cur != nil {
			return nil, store.ErrUnchanged
		}
		return r.budget[tier], nil
	})
}

// parseCount reads a stored counter defensively: absent or malformed
// values count as zero, so a partially written ledger never blocks
// voting.
func parseCount(data []byte) int {
	if data == nil {
		return 0
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return 0
	}
	return n
}
