package service

import (
	"context"

	"github.com/liloman25879/spring-vote-app/internal/model"
	"github.com/liloman25879/spring-vote-app/internal/repository"
	"github.com/liloman25879/spring-vote-app/pkg/keys"
)

// UserService handles named sessions and balance lookups. There is no
// authentication: a session is just the deterministic ID for a display
// name, created with a full budget on first use.
type UserService struct {
	users  *repository.UserRepo
	tokens *repository.TokenRepo
}

func NewUserService(users *repository.UserRepo, tokens *repository.TokenRepo) *UserService {
	return &UserService{users: users, tokens: tokens}
}

// Session resolves a display name to its user, creating it if needed.
func (s *UserService) Session(ctx context.Context, name string) (*model.SessionResponse, error) {
	userID := keys.UserID(name)
	if err := s.users.Ensure(ctx, userID, name); err != nil {
		return nil, err
	}
	balances, err := s.tokens.Balances(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.SessionResponse{UserID: userID, Name: name, Tokens: balances}, nil
}

// Tokens returns the user's remaining balances per tier. Unknown users
// read as an all-zero ledger rather than an error.
func (s *UserService) Tokens(ctx context.Context, userID string) (*model.TokensResponse, error) {
	balances, err := s.tokens.Balances(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.TokensResponse{UserID: userID, Tokens: balances}, nil
}
