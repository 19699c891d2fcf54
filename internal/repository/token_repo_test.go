package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/liloman25879/spring-vote-app/internal/model"
	"github.com/liloman25879/spring-vote-app/internal/store"
)

var testBudget = model.TokenLedger{5: 3, 4: 5, 3: 8, 2: 10, 1: 10}

func newTokenRepo() (*TokenRepo, *store.Memory) {
	mem := store.NewMemory()
	return NewTokenRepo(mem, testBudget.Clone()), mem
}

func seedLedger(t *testing.T, st *store.Memory, userID string, ledger model.TokenLedger) {
	t.Helper()
	ctx := context.Background()
	for tier, n := range ledger {
		if err := st.Set(ctx, tokenPath(userID, tier), n); err != nil {
			t.Fatalf("seed tier %d: %v", tier, err)
		}
	}
}

func TestDecrement_SpendsOneToken(t *testing.T) {
	ctx := context.Background()
	repo, st := newTokenRepo()
	seedLedger(t, st, "u1", testBudget)

	ok, err := repo.Decrement(ctx, "u1", 5)
	if err != nil {
		t.Fatalf("Decrement: %v", err)
	}
	if !ok {
		t.Fatal("decrement against positive balance must succeed")
	}

	ledger, _ := repo.Balances(ctx, "u1")
	if ledger[5] != 2 {
		t.Errorf("tier 5 = %d, want 2", ledger[5])
	}
	if ledger[4] != 5 || ledger[1] != 10 {
		t.Error("other tiers must not move")
	}
}

func TestDecrement_EmptyTierFailsWithoutChange(t *testing.T) {
	ctx := context.Background()
	repo, st := newTokenRepo()
	seedLedger(t, st, "u1", model.TokenLedger{5: 0, 4: 5, 3: 8, 2: 10, 1: 10})

	ok, err := repo.Decrement(ctx, "u1", 5)
	if err != nil {
		t.Fatalf("Decrement: %v", err)
	}
	if ok {
		t.Fatal("decrement against zero balance must report failure")
	}

	ledger, _ := repo.Balances(ctx, "u1")
	if ledger[5] != 0 {
		t.Errorf("tier 5 = %d, want 0 (never negative)", ledger[5])
	}
}

func TestDecrement_NoDoubleSpend(t *testing.T) {
	// Two concurrent decrements against a balance of exactly 1 must yield
	// one success and one failure.
	ctx := context.Background()
	repo, st := newTokenRepo()
	seedLedger(t, st, "u1", model.TokenLedger{5: 1, 4: 5, 3: 8, 2: 10, 1: 10})

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := repo.Decrement(ctx, "u1", 5)
			if err != nil {
				t.Errorf("Decrement: %v", err)
			}
			results[i] = ok
		}(i)
	}
	wg.Wait()

	if results[0] == results[1] {
		t.Errorf("results = %v, want exactly one success", results)
	}

	ledger, _ := repo.Balances(ctx, "u1")
	if ledger[5] != 0 {
		t.Errorf("final balance = %d, want 0", ledger[5])
	}
}

// lostRaceStore invokes the transaction closure once with stale bytes,
// discarding the result, before delegating to the in-memory store. This is
// the re-invocation an optimistic backend performs after losing a write
// race.
type lostRaceStore struct {
	*store.Memory
	stale map[string][]byte
}

func (s *lostRaceStore) Txn(ctx context.Context, path string, fn store.TxnFunc) error {
	if old, found := s.stale[path]; found {
		delete(s.stale, path)
		_, _ = fn(old)
	}
	return s.Memory.Txn(ctx, path, fn)
}

func TestDecrement_LostRaceRetryReportsCommittedResult(t *testing.T) {
	// The first pass sees a stale balance of 1 and would succeed, but the
	// committed balance is 0. Only the retried attempt counts.
	ctx := context.Background()
	mem := store.NewMemory()
	st := &lostRaceStore{Memory: mem, stale: map[string][]byte{
		tokenPath("u1", 5): []byte("1"),
	}}
	repo := NewTokenRepo(st, testBudget.Clone())
	seedLedger(t, mem, "u1", model.TokenLedger{5: 0, 4: 5, 3: 8, 2: 10, 1: 10})

	ok, err := repo.Decrement(ctx, "u1", 5)
	if err != nil {
		t.Fatalf("Decrement: %v", err)
	}
	if ok {
		t.Fatal("spend reported against a committed balance of zero")
	}
	ledger, _ := repo.Balances(ctx, "u1")
	if ledger[5] != 0 {
		t.Errorf("tier 5 = %d, want 0", ledger[5])
	}
}

func TestInitTier_SetsBudgetOnlyWhenAbsent(t *testing.T) {
	ctx := context.Background()
	repo, st := newTokenRepo()

	if err := repo.InitTier(ctx, "u1", 5); err != nil {
		t.Fatalf("InitTier: %v", err)
	}
	ledger, _ := repo.Balances(ctx, "u1")
	if ledger[5] != testBudget[5] {
		t.Errorf("tier 5 = %d, want %d", ledger[5], testBudget[5])
	}

	// A counter a concurrent spend already created is left alone.
	if err := st.Set(ctx, tokenPath("u1", 4), 1); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := repo.InitTier(ctx, "u1", 4); err != nil {
		t.Fatalf("InitTier existing: %v", err)
	}
	ledger, _ = repo.Balances(ctx, "u1")
	if ledger[4] != 1 {
		t.Errorf("tier 4 = %d, want 1 (init must not overwrite)", ledger[4])
	}
}

func TestIncrement_ClampsAtBudget(t *testing.T) {
	ctx := context.Background()
	repo, st := newTokenRepo()
	seedLedger(t, st, "u1", testBudget)

	// Already at max: refund is clamped, not an error.
	if err := repo.Increment(ctx, "u1", 5); err != nil {
		t.Fatalf("Increment at max: %v", err)
	}
	ledger, _ := repo.Balances(ctx, "u1")
	if ledger[5] != 3 {
		t.Errorf("tier 5 = %d, want 3 (clamped)", ledger[5])
	}
}

func TestIncrement_RefundsBelowMax(t *testing.T) {
	ctx := context.Background()
	repo, st := newTokenRepo()
	seedLedger(t, st, "u1", model.TokenLedger{5: 1, 4: 5, 3: 8, 2: 10, 1: 10})

	if err := repo.Increment(ctx, "u1", 5); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	ledger, _ := repo.Balances(ctx, "u1")
	if ledger[5] != 2 {
		t.Errorf("tier 5 = %d, want 2", ledger[5])
	}
}

func TestBalances_MissingLedgerReadsZero(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTokenRepo()

	ledger, err := repo.Balances(ctx, "ghost")
	if err != nil {
		t.Fatalf("Balances: %v", err)
	}
	for _, tier := range model.Tiers {
		if ledger[tier] != 0 {
			t.Errorf("tier %d = %d, want 0", tier, ledger[tier])
		}
	}
}

func TestDecrement_MalformedCounterReadsZero(t *testing.T) {
	ctx := context.Background()
	repo, st := newTokenRepo()
	st.SetRaw(tokenPath("u1", 5), []byte(`"not-a-number"`))

	ok, err := repo.Decrement(ctx, "u1", 5)
	if err != nil {
		t.Fatalf("Decrement: %v", err)
	}
	if ok {
		t.Error("malformed counter must behave as zero balance")
	}
}

func TestResetChanges_FullBudgetEveryTier(t *testing.T) {
	repo, _ := newTokenRepo()
	changes := repo.ResetChanges("u1")
	if len(changes) != len(model.Tiers) {
		t.Fatalf("changes = %d entries, want %d", len(changes), len(model.Tiers))
	}
	for _, tier := range model.Tiers {
		if changes[tokenPath("u1", tier)] != testBudget[tier] {
			t.Errorf("tier %d reset = %v, want %d", tier, changes[tokenPath("u1", tier)], testBudget[tier])
		}
	}
}
