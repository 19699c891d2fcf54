package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/liloman25879/spring-vote-app/internal/model"
	"github.com/liloman25879/spring-vote-app/internal/repository"
	"github.com/liloman25879/spring-vote-app/pkg/keys"
)

// VoteService coordinates a cast-or-correct across the token ledger and
// the vote store as one logical transaction. The storage layer provides
// atomicity per step; this service provides the cross-step compensation
// that keeps "tokens spent == active votes" true for every user at every
// observable point, even when a step fails halfway.
type VoteService struct {
	users  *repository.UserRepo
	tokens *repository.TokenRepo
	votes  *repository.VoteRepo
}

func NewVoteService(users *repository.UserRepo, tokens *repository.TokenRepo, votes *repository.VoteRepo) *VoteService {
	return &VoteService{users: users, tokens: tokens, votes: votes}
}

// Cast records or corrects the user's vote on a task.
//
// Sequence: read the active vote; identical score is a pure no-op; refund
// the old tier (clamped); spend from the new tier; on spend failure undo
// the refund and leave the prior vote in place; on success replace the
// vote in one batched write. Exhausted budget is routine control flow, not
// an error.
func (s *VoteService) Cast(ctx context.Context, userName, taskID, taskName string, score int) (*model.CastResult, error) {
	userID := keys.UserID(userName)
	if err := s.users.Ensure(ctx, userID, userName); err != nil {
		return s.storageFailure(userID, "ensure user", err)
	}

	candidates := keys.CandidatesForTask(taskID, taskName)
	canonical := keys.ForTask(taskID, taskName)

	prev, err := s.votes.Active(ctx, candidates, userID)
	if err != nil {
		return s.storageFailure(userID, "read active vote", err)
	}

	if prev != nil && prev.Score == score {
		tokens, _ := s.tokens.Balances(ctx, userID)
		return &model.CastResult{Outcome: model.OutcomeUnchanged, Vote: prev, Tokens: tokens}, nil
	}

	refunded := false
	if prev != nil {
		if err := s.tokens.Increment(ctx, userID, prev.Score); err != nil {
			return s.storageFailure(userID, "refund old tier", err)
		}
		refunded = true
	}

	ok, err := s.tokens.Decrement(ctx, userID, score)
	if err != nil {
		s.compensateRefund(ctx, userID, prev, refunded)
		return s.storageFailure(userID, "spend new tier", err)
	}
	if !ok {
		// Budget exhausted in the target tier: undo the refund so the
		// net effect of the attempt is zero, and keep the old vote.
		s.compensateRefund(ctx, userID, prev, refunded)
		tokens, _ := s.tokens.Balances(ctx, userID)
		return &model.CastResult{Outcome: model.OutcomeInsufficientTokens, Vote: prev, Tokens: tokens}, nil
	}

	vote, err := s.votes.Put(ctx, canonical, userID, score, userName, prev)
	if err != nil {
		// The new token is spent but the vote write failed: give the
		// token back, then restore the old tier's spend.
		if incErr := s.tokens.Increment(ctx, userID, score); incErr != nil {
			log.Error().Err(incErr).Str("user_id", userID).
				Msg("compensation failed: new-tier token not refunded")
		}
		s.compensateRefund(ctx, userID, prev, refunded)
		return s.storageFailure(userID, "replace vote", err)
	}

	tokens, _ := s.tokens.Balances(ctx, userID)
	return &model.CastResult{Outcome: model.OutcomeRecorded, Vote: vote, Tokens: tokens}, nil
}

// compensateRefund re-spends the old tier's token that step 4 refunded,
// returning the ledger to its pre-attempt state.
func (s *VoteService) compensateRefund(ctx context.Context, userID string, prev *model.Vote, refunded bool) {
	if !refunded || prev == nil {
		return
	}
	if _, err := s.tokens.Decrement(ctx, userID, prev.Score); err != nil {
		log.Error().Err(err).Str("user_id", userID).Int("tier", prev.Score).
			Msg("compensation failed: refund not undone")
	}
}

func (s *VoteService) storageFailure(userID, step string, err error) (*model.CastResult, error) {
	log.Error().Err(err).Str("user_id", userID).Str("step", step).Msg("vote transaction failed")
	return &model.CastResult{Outcome: model.OutcomeStorageError}, nil
}
