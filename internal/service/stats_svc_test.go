package service

import (
	"context"
	"testing"

	"github.com/liloman25879/spring-vote-app/internal/model"
	"github.com/liloman25879/spring-vote-app/internal/repository"
	"github.com/liloman25879/spring-vote-app/internal/store"
	"github.com/liloman25879/spring-vote-app/pkg/keys"
)

func proposeReq(name, by string) model.ProposeTaskRequest {
	return model.ProposeTaskRequest{
		Name: name, Description: "d", Cost: 2, Complexity: 2, Interest: 2, ProposedBy: by,
	}
}

type statsFixture struct {
	stats   *StatsService
	catalog *CatalogService
	watch   *WatchService
	vote    *voteFixture
	mem     *store.Memory
}

func newStatsFixture(t *testing.T, csv string) *statsFixture {
	t.Helper()
	mem := store.NewMemory()
	vote := newVoteFixtureOn(mem, testBudget)
	users := repository.NewUserRepo(mem, vote.tokens)
	tasks := repository.NewTaskRepo(mem)
	path := ""
	if csv != "" {
		path = writeCatalog(t, csv)
	}
	catalog := NewCatalogService(tasks, path)
	watch := NewWatchService(mem)
	return &statsFixture{
		stats:   NewStatsService(vote.votes, users, catalog, watch),
		catalog: catalog,
		watch:   watch,
		vote:    vote,
		mem:     mem,
	}
}

const rankingCatalog = `Nouveau_Nom;Description;Score_Prix;Score_Complexité;Score_Intérêt;Score_Total
Alpha;a;1;1;1;1
Beta;b;1;1;1;1
Gamma;c;1;1;1;1
`

func TestRankings_OrderedByTotalStars(t *testing.T) {
	ctx := context.Background()
	fx := newStatsFixture(t, rankingCatalog)

	fx.vote.svc.Cast(ctx, "Alice", "csv_Beta", "Beta", 5)
	fx.vote.svc.Cast(ctx, "Bob", "csv_Beta", "Beta", 4)
	fx.vote.svc.Cast(ctx, "Alice", "csv_Gamma", "Gamma", 3)

	scores, err := fx.stats.Rankings(ctx)
	if err != nil {
		t.Fatalf("Rankings: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("got %d entries, want one per task", len(scores))
	}
	if scores[0].Name != "Beta" || scores[0].TotalStars != 9 || scores[0].NumVotes != 2 {
		t.Errorf("first entry = %+v", scores[0])
	}
	if scores[1].Name != "Gamma" || scores[1].TotalStars != 3 {
		t.Errorf("second entry = %+v", scores[1])
	}
	if scores[2].Name != "Alpha" || scores[2].NumVotes != 0 {
		t.Errorf("unvoted task must trail with zero votes: %+v", scores[2])
	}
	if scores[0].AvgScore != 4.5 {
		t.Errorf("avg = %v, want 4.5", scores[0].AvgScore)
	}
}

func TestRankings_HistoricalKeyCountsOnce(t *testing.T) {
	ctx := context.Background()
	fx := newStatsFixture(t, rankingCatalog)

	// Alice voted before the task had an id, Bob after. Alice then
	// corrected, leaving her newest vote under the canonical key.
	fx.vote.svc.Cast(ctx, "Alice", "", "Alpha", 5)
	fx.vote.svc.Cast(ctx, "Bob", "csv_Alpha", "Alpha", 4)
	fx.vote.svc.Cast(ctx, "Alice", "csv_Alpha", "Alpha", 2)

	scores, err := fx.stats.Rankings(ctx)
	if err != nil {
		t.Fatalf("Rankings: %v", err)
	}
	idx := -1
	for i := range scores {
		if scores[i].Name == "Alpha" {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.Fatal("Alpha missing from rankings")
	}
	if got := scores[idx]; got.NumVotes != 2 || got.TotalStars != 6 {
		t.Errorf("Alpha = %+v, want 2 votes totalling 6", got)
	}
}

func TestRankings_SnapshotReusedUntilWatermarkMoves(t *testing.T) {
	ctx := context.Background()
	fx := newStatsFixture(t, rankingCatalog)

	fx.vote.svc.Cast(ctx, "Alice", "csv_Alpha", "Alpha", 5)
	first, err := fx.stats.Rankings(ctx)
	if err != nil {
		t.Fatalf("Rankings: %v", err)
	}

	// Write behind the aggregator's back without touching the watermark:
	// the snapshot must be reused.
	raw := map[string]any{"score": 4, "timestamp": "2026-01-02T00:00:00Z", "user_name": "Bob"}
	if err := fx.mem.Set(ctx, "votes/csv_Beta/"+keys.UserID("Bob")+"/v1", raw); err != nil {
		t.Fatalf("Set: %v", err)
	}
	cached, _ := fx.stats.Rankings(ctx)
	if &cached[0] != &first[0] {
		t.Error("unchanged watermark must return the cached snapshot")
	}

	// A real cast bumps the watermark and invalidates the snapshot.
	fx.vote.svc.Cast(ctx, "Carol", "csv_Gamma", "Gamma", 1)
	fresh, _ := fx.stats.Rankings(ctx)
	total := 0
	for _, s := range fresh {
		total += s.NumVotes
	}
	if total != 3 {
		t.Errorf("recompute must pick up all writes, got %d votes", total)
	}
}

func TestTop_MostVotedFirst(t *testing.T) {
	ctx := context.Background()
	fx := newStatsFixture(t, rankingCatalog)

	fx.vote.svc.Cast(ctx, "Alice", "csv_Alpha", "Alpha", 1)
	fx.vote.svc.Cast(ctx, "Bob", "csv_Alpha", "Alpha", 1)
	fx.vote.svc.Cast(ctx, "Alice", "csv_Beta", "Beta", 5)

	top, err := fx.stats.Top(ctx, 5)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("got %d entries, want 2 (unvoted tasks excluded)", len(top))
	}
	if top[0].Name != "Alpha" || top[0].NumVotes != 2 {
		t.Errorf("top entry = %+v, vote count outranks stars", top[0])
	}

	one, _ := fx.stats.Top(ctx, 1)
	if len(one) != 1 {
		t.Errorf("limit must truncate, got %d", len(one))
	}
}

func TestGlobal_CountsAndWatermark(t *testing.T) {
	ctx := context.Background()
	fx := newStatsFixture(t, rankingCatalog)

	fx.vote.svc.Cast(ctx, "Alice", "csv_Alpha", "Alpha", 5)
	fx.vote.svc.Cast(ctx, "Bob", "csv_Beta", "Beta", 3)
	fx.catalog.Propose(ctx, proposeReq("Delta", "Carol"))

	stats, err := fx.stats.Global(ctx)
	if err != nil {
		t.Fatalf("Global: %v", err)
	}
	if stats.TotalVotes != 2 || stats.Participants != 2 || stats.ProposedTasks != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.LastUpdated == "" {
		t.Error("watermark must be set after writes")
	}
}

func TestChanged_WatermarkPoll(t *testing.T) {
	ctx := context.Background()
	fx := newStatsFixture(t, "")

	// Empty store, empty since: first-time clients always fetch.
	res, err := fx.watch.Changed(ctx, "")
	if err != nil {
		t.Fatalf("Changed: %v", err)
	}
	if !res.Changed {
		t.Error("empty since must read as changed")
	}

	fx.vote.svc.Cast(ctx, "Alice", "t1", "Task", 5)
	res, _ = fx.watch.Changed(ctx, "")
	if !res.Changed || res.LastUpdated == "" {
		t.Fatalf("after write: %+v", res)
	}

	same, _ := fx.watch.Changed(ctx, res.LastUpdated)
	if same.Changed {
		t.Error("up-to-date watermark must read as unchanged")
	}

	fx.vote.svc.Cast(ctx, "Alice", "t1", "Task", 3)
	moved, _ := fx.watch.Changed(ctx, res.LastUpdated)
	if !moved.Changed {
		t.Error("stale watermark must read as changed")
	}
}
