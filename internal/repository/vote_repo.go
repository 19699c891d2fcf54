package repository

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/liloman25879/spring-vote-app/internal/model"
	"github.com/liloman25879/spring-vote-app/internal/store"
	"github.com/liloman25879/spring-vote-app/pkg/keys"
)

// VoteRepo holds at most one active vote per (task key, user) pair.
// Replacing a vote is expressed as a single batched write (delete old slot
// + append new + bump watermark) so no reader can observe two active votes
// for the pair.
type VoteRepo struct {
	store store.Store
}

func NewVoteRepo(st store.Store) *VoteRepo {
	return &VoteRepo{store: st}
}

// storedVote is the wire shape of a vote record. Field names match the
// records earlier deployments wrote so existing data keeps parsing.
type storedVote struct {
	Score    int    `json:"score"`
	Time     string `json:"timestamp"`
	UserName string `json:"user_name"`
}

// Active returns the user's current vote on the task, looking under every
// historically valid key in priority order. The returned vote carries the
// task key it was actually found under, which Put needs for the delete
// half of a replacement. Returns nil when the user has not voted.
func (r *VoteRepo) Active(ctx context.Context, candidates []string, userID string) (*model.Vote, error) {
	for _, taskKey := range candidates {
		votes, err := r.userVotes(ctx, taskKey, userID)
		if err != nil {
			return nil, err
		}
		if len(votes) > 0 {
			return &votes[0], nil
		}
	}
	return nil, nil
}

// userVotes reads every vote record the user has under one task key,
// newest first. Handles both the current keyed layout
// (votes/{task}/{user}/{voteID}) and the legacy untagged-array value at
// votes/{task}/{user}; malformed entries are skipped, never fatal.
func (r *VoteRepo) userVotes(ctx context.Context, taskKey, userID string) ([]model.Vote, error) {
	var votes []model.Vote

	slot := userVotesPath(taskKey, userID)
	flat, err := r.store.List(ctx, slot)
	if err != nil {
		return nil, err
	}
	for path, value := range flat {
		voteID := strings.TrimPrefix(path, slot+"/")
		if strings.Contains(voteID, "/") {
			continue
		}
		if v, ok := decodeVote(value, taskKey, userID, voteID); ok {
			votes = append(votes, v)
		}
	}

	// Legacy shape: the slot itself holds a JSON array of vote objects.
	if data, err := r.store.Get(ctx, slot); err == nil {
		var legacy []json.RawMessage
		if json.Unmarshal(data, &legacy) == nil {
			for _, raw := range legacy {
				if v, ok := decodeVote(raw, taskKey, userID, ""); ok {
					votes = append(votes, v)
				}
			}
		}
	} else if err != store.ErrNotFound {
		return nil, err
	}

	sort.Slice(votes, func(i, j int) bool { return votes[i].Time.After(votes[j].Time) })
	return votes, nil
}

func decodeVote(data []byte, taskKey, userID, voteID string) (model.Vote, bool) {
	var sv storedVote
	if err := json.Unmarshal(data, &sv); err != nil || sv.Score == 0 {
		return model.Vote{}, false
	}
	ts, _ := time.Parse(time.RFC3339Nano, sv.Time)
	return model.Vote{
		VoteID:   voteID,
		TaskKey:  taskKey,
		UserID:   userID,
		UserName: sv.UserName,
		Score:    sv.Score,
		Time:     ts,
	}, true
}

// Put replaces the user's vote on the task with a new record, as one
// atomic batch: the previous slot (keyed records and any legacy array,
// under whichever historical key it lived) is deleted, the new vote is
// written under the canonical key, and the change watermark is bumped.
func (r *VoteRepo) Put(ctx context.Context, taskKey, userID string, score int, userName string, prev *model.Vote) (*model.Vote, error) {
	now := time.Now().UTC()
	vote := &model.Vote{
		VoteID:   keys.VoteID(),
		TaskKey:  taskKey,
		UserID:   userID,
		UserName: userName,
		Score:    score,
		Time:     now,
	}

	changes := map[string]any{
		votePath(taskKey, userID, vote.VoteID): storedVote{
			Score:    score,
			Time:     now.Format(time.RFC3339Nano),
			UserName: userName,
		},
		LastUpdatedPath: now.Format(time.RFC3339Nano),
	}
	if prev != nil {
		// Deleting the whole per-user slot clears the keyed record and
		// any legacy array in one stroke. Backends apply deletions
		// before sets, so this is safe even when the slot matches the
		// new vote's parent.
		changes[userVotesPath(prev.TaskKey, userID)] = nil
	}

	if err := r.store.Update(ctx, changes); err != nil {
		return nil, err
	}
	return vote, nil
}

// ForTask returns every active vote on a task across all users, merging
// records found under any of the task's historical keys. At most one vote
// per user survives; when a user has records under several keys the newest
// wins (last-write-observed-wins at vote-slot granularity).
func (r *VoteRepo) ForTask(ctx context.Context, candidates []string) ([]model.Vote, error) {
	byUser := make(map[string]model.Vote)
	for _, taskKey := range candidates {
		flat, err := r.store.List(ctx, taskVotesPath(taskKey))
		if err != nil {
			return nil, err
		}
		for userID, votes := range groupTaskVotes(flat, taskKey) {
			for _, v := range votes {
				cur, ok := byUser[userID]
				if !ok || v.Time.After(cur.Time) {
					byUser[userID] = v
				}
			}
		}
	}

	out := make([]model.Vote, 0, len(byUser))
	for _, v := range byUser {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// All returns active votes for every task key present in storage, keyed by
// task key. Used by the aggregator, which resolves historical keys per
// task on top of this.
func (r *VoteRepo) All(ctx context.Context) (map[string][]model.Vote, error) {
	flat, err := r.store.List(ctx, votesRoot)
	if err != nil {
		return nil, err
	}

	perTask := make(map[string]map[string][]byte)
	for path, value := range flat {
		rest := strings.TrimPrefix(path, votesRoot+"/")
		taskKey, _, ok := strings.Cut(rest, "/")
		if !ok {
			continue
		}
		if perTask[taskKey] == nil {
			perTask[taskKey] = make(map[string][]byte)
		}
		perTask[taskKey][path] = value
	}

	out := make(map[string][]model.Vote, len(perTask))
	for taskKey, sub := range perTask {
		for _, votes := range groupTaskVotes(sub, taskKey) {
			if len(votes) > 0 {
				out[taskKey] = append(out[taskKey], votes[0])
			}
		}
	}
	return out, nil
}

// groupTaskVotes parses the flat path map below votes/{taskKey} into
// per-user vote lists, newest first, normalizing legacy array values.
func groupTaskVotes(flat map[string][]byte, taskKey string) map[string][]model.Vote {
	prefix := taskVotesPath(taskKey) + "/"
	byUser := make(map[string][]model.Vote)
	for path, value := range flat {
		rest := strings.TrimPrefix(path, prefix)
		parts := strings.Split(rest, "/")
		switch len(parts) {
		case 1:
			// Legacy: array stored directly at the user slot.
			var legacy []json.RawMessage
			if json.Unmarshal(value, &legacy) != nil {
				continue
			}
			for _, raw := range legacy {
				if v, ok := decodeVote(raw, taskKey, parts[0], ""); ok {
					byUser[parts[0]] = append(byUser[parts[0]], v)
				}
			}
		case 2:
			if v, ok := decodeVote(value, taskKey, parts[0], parts[1]); ok {
				byUser[parts[0]] = append(byUser[parts[0]], v)
			}
		}
	}
	for userID := range byUser {
		votes := byUser[userID]
		sort.Slice(votes, func(i, j int) bool { return votes[i].Time.After(votes[j].Time) })
		byUser[userID] = votes
	}
	return byUser
}

// UserVoteDeletions scans every task for the user's vote slots and returns
// the batch entries that remove them all. The admin reset merges these
// with the token restoration so the whole reset is one write.
func (r *VoteRepo) UserVoteDeletions(ctx context.Context, userID string) (map[string]any, error) {
	flat, err := r.store.List(ctx, votesRoot)
	if err != nil {
		return nil, err
	}

	changes := make(map[string]any)
	for path := range flat {
		rest := strings.TrimPrefix(path, votesRoot+"/")
		parts := strings.Split(rest, "/")
		if len(parts) >= 2 && parts[1] == userID {
			changes[userVotesPath(parts[0], userID)] = nil
		}
	}
	return changes, nil
}

// TotalActive counts active votes across all tasks and users.
func (r *VoteRepo) TotalActive(ctx context.Context) (int, error) {
	all, err := r.All(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, votes := range all {
		total += len(votes)
	}
	return total, nil
}
