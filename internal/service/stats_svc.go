package service

import (
	"context"
	"sort"
	"sync"

	"github.com/liloman25879/spring-vote-app/internal/model"
	"github.com/liloman25879/spring-vote-app/internal/repository"
	"github.com/liloman25879/spring-vote-app/pkg/keys"
)

// StatsService derives rankings and platform-wide counters from the vote
// store. Aggregates are recomputed from raw votes, never maintained as
// stored counters, so they self-heal after manual data edits.
//
// Recomputation is guarded by the change watermark: the snapshot is reused
// until meta/last_updated moves.
type StatsService struct {
	votes   *repository.VoteRepo
	users   *repository.UserRepo
	catalog *CatalogService
	watch   *WatchService

	mu     sync.Mutex
	snapAt string
	snap   []model.TaskScore
}

func NewStatsService(votes *repository.VoteRepo, users *repository.UserRepo, catalog *CatalogService, watch *WatchService) *StatsService {
	return &StatsService{votes: votes, users: users, catalog: catalog, watch: watch}
}

// Rankings returns every task with its vote aggregates, ordered by total
// stars, then vote count, then the stable alphabetical task order.
func (s *StatsService) Rankings(ctx context.Context) ([]model.TaskScore, error) {
	cur, err := s.watch.LastUpdated(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.snap != nil && s.snapAt == cur {
		cached := s.snap
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	scores, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.snapAt = cur
	s.snap = scores
	s.mu.Unlock()
	return scores, nil
}

// Top returns the n tasks with the most votes, ties broken by average
// score. Tasks without votes are excluded.
func (s *StatsService) Top(ctx context.Context, n int) ([]model.TaskScore, error) {
	scores, err := s.Rankings(ctx)
	if err != nil {
		return nil, err
	}
	voted := make([]model.TaskScore, 0, len(scores))
	for _, ts := range scores {
		if ts.NumVotes > 0 {
			voted = append(voted, ts)
		}
	}
	sort.SliceStable(voted, func(i, j int) bool {
		if voted[i].NumVotes != voted[j].NumVotes {
			return voted[i].NumVotes > voted[j].NumVotes
		}
		return voted[i].AvgScore > voted[j].AvgScore
	})
	if n > 0 && len(voted) > n {
		voted = voted[:n]
	}
	return voted, nil
}

// Global returns the platform-wide counters shown on the stats page.
func (s *StatsService) Global(ctx context.Context) (*model.GlobalStats, error) {
	total, err := s.votes.TotalActive(ctx)
	if err != nil {
		return nil, err
	}
	participants, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	proposed, err := s.catalog.ProposedCount(ctx)
	if err != nil {
		return nil, err
	}
	watermark, err := s.watch.LastUpdated(ctx)
	if err != nil {
		return nil, err
	}
	return &model.GlobalStats{
		TotalVotes:    total,
		Participants:  participants,
		ProposedTasks: proposed,
		LastUpdated:   watermark,
	}, nil
}

// compute aggregates active votes per task, resolving each task's current
// and historical keys so pre-migration votes still count. A user voting
// under two keys of the same task counts once, newest vote wins.
func (s *StatsService) compute(ctx context.Context) ([]model.TaskScore, error) {
	tasks, err := s.catalog.All(ctx)
	if err != nil {
		return nil, err
	}
	byKey, err := s.votes.All(ctx)
	if err != nil {
		return nil, err
	}

	claimed := make(map[string]bool)
	scores := make([]model.TaskScore, 0, len(tasks))
	for _, task := range tasks {
		newest := make(map[string]model.Vote)
		for _, key := range keys.CandidatesForTask(task.ID, task.Name) {
			if claimed[key] {
				continue
			}
			for _, v := range byKey[key] {
				if cur, ok := newest[v.UserID]; !ok || v.Time.After(cur.Time) {
					newest[v.UserID] = v
				}
			}
			claimed[key] = true
		}

		ts := model.TaskScore{TaskID: task.ID, Name: task.Name, Source: task.Source}
		for _, v := range newest {
			ts.TotalStars += v.Score
			ts.NumVotes++
		}
		if ts.NumVotes > 0 {
			ts.AvgScore = float64(ts.TotalStars) / float64(ts.NumVotes)
		}
		scores = append(scores, ts)
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].TotalStars != scores[j].TotalStars {
			return scores[i].TotalStars > scores[j].TotalStars
		}
		return scores[i].NumVotes > scores[j].NumVotes
	})
	return scores, nil
}
