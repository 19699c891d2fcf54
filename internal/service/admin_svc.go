package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/liloman25879/spring-vote-app/internal/model"
	"github.com/liloman25879/spring-vote-app/internal/repository"
	"github.com/liloman25879/spring-vote-app/internal/store"
)

// AdminService implements the operator surface: per-user vote/token reset
// and the participant listing.
type AdminService struct {
	st     store.Store
	users  *repository.UserRepo
	tokens *repository.TokenRepo
	votes  *repository.VoteRepo
}

func NewAdminService(st store.Store, users *repository.UserRepo, tokens *repository.TokenRepo, votes *repository.VoteRepo) *AdminService {
	return &AdminService{st: st, users: users, tokens: tokens, votes: votes}
}

// ResetUser deletes every active vote the user holds and restores the
// ledger to the full budget, as one batched write. Other users' votes and
// tokens are untouched. Resetting a user with no votes is a no-op on the
// vote store but still normalizes the ledger, so the call is idempotent.
func (s *AdminService) ResetUser(ctx context.Context, userID string) (model.TokenLedger, error) {
	deletions, err := s.votes.UserVoteDeletions(ctx, userID)
	if err != nil {
		return nil, err
	}

	changes := make(map[string]any, len(deletions)+len(model.Tiers)+1)
	for path, v := range deletions {
		changes[path] = v
	}
	for path, v := range s.tokens.ResetChanges(userID) {
		changes[path] = v
	}
	changes[repository.LastUpdatedPath] = time.Now().UTC().Format(time.RFC3339Nano)

	if err := s.st.Update(ctx, changes); err != nil {
		return nil, err
	}

	log.Info().Str("user_id", userID).Int("votes_removed", len(deletions)).
		Msg("user reset to full budget")

	return s.tokens.Balances(ctx, userID)
}

// Export returns a flat path-to-value snapshot of the whole dataset, for
// offline backup before risky operations.
func (s *AdminService) Export(ctx context.Context) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage)
	for _, root := range repository.CollectionRoots {
		flat, err := s.st.List(ctx, root)
		if err != nil {
			return nil, err
		}
		for path, value := range flat {
			out[path] = json.RawMessage(value)
		}
	}
	return out, nil
}

// Users lists every known participant with their remaining balances and
// how many tokens each has spent, for the operator dashboard.
func (s *AdminService) Users(ctx context.Context, budget model.TokenLedger) ([]model.AdminUserEntry, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]model.AdminUserEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, model.AdminUserEntry{
			UserID: u.ID,
			Name:   u.Name,
			Tokens: u.Tokens,
			Spent:  u.Tokens.Spent(budget),
		})
	}
	return entries, nil
}
