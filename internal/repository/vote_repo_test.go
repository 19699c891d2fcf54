package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/liloman25879/spring-vote-app/internal/store"
	"github.com/liloman25879/spring-vote-app/pkg/keys"
)

func TestPut_ThenActive(t *testing.T) {
	ctx := context.Background()
	repo := NewVoteRepo(store.NewMemory())

	vote, err := repo.Put(ctx, "task_a", "u1", 5, "Alice", nil)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if vote.VoteID == "" {
		t.Error("new vote must carry a fresh vote id")
	}

	got, err := repo.Active(ctx, []string{"task_a"}, "u1")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if got == nil || got.Score != 5 || got.UserName != "Alice" {
		t.Errorf("active vote = %+v", got)
	}
}

func TestPut_ReplacementKeepsSingleActiveVote(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	repo := NewVoteRepo(mem)

	first, err := repo.Put(ctx, "task_a", "u1", 5, "Alice", nil)
	if err != nil {
		t.Fatalf("first Put: %v", err)
	}
	second, err := repo.Put(ctx, "task_a", "u1", 3, "Alice", first)
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if second.VoteID == first.VoteID {
		t.Error("replacement must mint a new vote id")
	}

	votes, err := repo.ForTask(ctx, []string{"task_a"})
	if err != nil {
		t.Fatalf("ForTask: %v", err)
	}
	if len(votes) != 1 {
		t.Fatalf("task has %d active votes for the pair, want 1", len(votes))
	}
	if votes[0].Score != 3 {
		t.Errorf("surviving score = %d, want 3", votes[0].Score)
	}
}

func TestPut_BumpsWatermarkInSameBatch(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	repo := NewVoteRepo(mem)

	if _, err := mem.Get(ctx, LastUpdatedPath); err != store.ErrNotFound {
		t.Fatal("watermark must start absent")
	}
	if _, err := repo.Put(ctx, "task_a", "u1", 4, "Alice", nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := mem.Get(ctx, LastUpdatedPath); err != nil {
		t.Error("vote write must bump the change watermark")
	}
}

func TestActive_LegacyArrayNormalized(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	repo := NewVoteRepo(mem)

	// Legacy deployments stored the user's votes as an untagged array at
	// the slot itself, without vote ids.
	mem.SetRaw(userVotesPath("task_a", "u1"), []byte(
		`[{"score":4,"timestamp":"2025-03-01T10:00:00Z","user_name":"Alice"}]`))

	got, err := repo.Active(ctx, []string{"task_a"}, "u1")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if got == nil || got.Score != 4 {
		t.Fatalf("legacy vote = %+v, want score 4", got)
	}
	if got.VoteID != "" {
		t.Error("legacy votes have no vote id")
	}
}

func TestActive_MalformedLegacyNeverFatal(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	repo := NewVoteRepo(mem)

	mem.SetRaw(userVotesPath("task_a", "u1"), []byte(`{"neither":"array nor vote"}`))

	got, err := repo.Active(ctx, []string{"task_a"}, "u1")
	if err != nil {
		t.Fatalf("malformed data must not error: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestActive_HistoricalKeyFallback(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	repo := NewVoteRepo(mem)

	// Vote recorded before the id-based key scheme, under the sanitized
	// task name.
	if _, err := repo.Put(ctx, "Peinture salon", "u1", 2, "Alice", nil); err != nil {
		t.Fatalf("Put: %v", err)
	}

	candidates := keys.CandidatesForTask("csv_peinture", "Peinture salon")
	got, err := repo.Active(ctx, candidates, "u1")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if got == nil || got.TaskKey != "Peinture salon" {
		t.Fatalf("historical lookup = %+v, want vote under old key", got)
	}

	// Correcting migrates the record to the canonical key.
	if _, err := repo.Put(ctx, "csv_peinture", "u1", 5, "Alice", got); err != nil {
		t.Fatalf("correcting Put: %v", err)
	}
	votes, _ := repo.ForTask(ctx, candidates)
	if len(votes) != 1 || votes[0].TaskKey != "csv_peinture" {
		t.Errorf("after correction votes = %+v, want single record under canonical key", votes)
	}
}

func TestForTask_MergesUsersAcrossKeys(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	repo := NewVoteRepo(mem)

	_, _ = repo.Put(ctx, "csv_task", "u1", 5, "Alice", nil)
	_, _ = repo.Put(ctx, "Task name", "u2", 3, "Bob", nil)

	votes, err := repo.ForTask(ctx, []string{"csv_task", "Task name"})
	if err != nil {
		t.Fatalf("ForTask: %v", err)
	}
	if len(votes) != 2 {
		t.Errorf("merged votes = %d, want 2", len(votes))
	}
}

func TestUserVoteDeletions_CoversEveryTask(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	repo := NewVoteRepo(mem)

	_, _ = repo.Put(ctx, "task_a", "u1", 5, "Alice", nil)
	_, _ = repo.Put(ctx, "task_b", "u1", 1, "Alice", nil)
	_, _ = repo.Put(ctx, "task_b", "u2", 2, "Bob", nil)

	changes, err := repo.UserVoteDeletions(ctx, "u1")
	if err != nil {
		t.Fatalf("UserVoteDeletions: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("changes = %v, want deletions for 2 tasks", changes)
	}
	for _, path := range []string{userVotesPath("task_a", "u1"), userVotesPath("task_b", "u1")} {
		v, ok := changes[path]
		if !ok || v != nil {
			t.Errorf("missing nil deletion for %s", path)
		}
	}
}

func TestAll_OneActiveVotePerUser(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	repo := NewVoteRepo(mem)

	// Seed two keyed records for the same user directly, as a crashed
	// half-replacement could leave behind. The newer one must win.
	old := storedVote{Score: 2, Time: time.Now().Add(-time.Hour).UTC().Format(time.RFC3339Nano), UserName: "Alice"}
	newer := storedVote{Score: 4, Time: time.Now().UTC().Format(time.RFC3339Nano), UserName: "Alice"}
	oldRaw, _ := json.Marshal(old)
	newRaw, _ := json.Marshal(newer)
	mem.SetRaw(votePath("task_a", "u1", "v-old"), oldRaw)
	mem.SetRaw(votePath("task_a", "u1", "v-new"), newRaw)

	all, err := repo.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	votes := all["task_a"]
	if len(votes) != 1 {
		t.Fatalf("active votes = %d, want 1", len(votes))
	}
	if votes[0].Score != 4 {
		t.Errorf("surviving score = %d, want newest (4)", votes[0].Score)
	}
}
