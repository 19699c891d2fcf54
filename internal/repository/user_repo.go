package repository

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/liloman25879/spring-vote-app/internal/model"
	"github.com/liloman25879/spring-vote-app/internal/store"
)

type UserRepo struct {
	store  store.Store
	tokens *TokenRepo
}

func NewUserRepo(st store.Store, tokens *TokenRepo) *UserRepo {
	return &UserRepo{store: st, tokens: tokens}
}

// Ensure creates the user with a full token allocation on first sight.
// For an existing user only the denormalized display name is refreshed;
// token counts are never touched here. Idempotent.
//
// Creation is gated through a transaction on the name path, and each tier
// counter is initialized only where absent, so two racing first
// interactions can never rewind a count a concurrent spend already moved.
func (r *UserRepo) Ensure(ctx context.Context, userID, name string) error {
	created := false
	err := r.store.Txn(ctx, userNamePath(userID), func(cur []byte) (any, error) {
		created = false
		if cur == nil {
			created = true
			return name, nil
		}
		var current string
		if json.Unmarshal(cur, &current) == nil && current == name {
			return nil, store.ErrUnchanged
		}
		return name, nil
	})
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	for _, tier := range model.Tiers {
		if err := r.tokens.InitTier(ctx, userID, tier); err != nil {
			return err
		}
	}
	now := time.Now().UTC()
	return r.store.Update(ctx, map[string]any{
		userCreatedPath(userID): now.Format(time.RFC3339),
		LastUpdatedPath:         now.Format(time.RFC3339Nano),
	})
}

// Get returns the user with their current token balances.
func (r *UserRepo) Get(ctx context.Context, userID string) (*model.User, error) {
	data, err := r.store.Get(ctx, userNamePath(userID))
	if err != nil {
		return nil, err
	}
	var name string
	_ = json.Unmarshal(data, &name)

	u := &model.User{ID: userID, Name: name}

	if data, err := r.store.Get(ctx, userCreatedPath(userID)); err == nil {
		var created string
		if json.Unmarshal(data, &created) == nil {
			u.CreatedAt, _ = time.Parse(time.RFC3339, created)
		}
	}

	u.Tokens, err = r.tokens.Balances(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// List returns every participant that has a ledger entry, sorted by name
// for stable display.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	flat, err := r.store.List(ctx, usersRoot)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*model.User)
	get := func(id string) *model.User {
		u, ok := byID[id]
		if !ok {
			u = &model.User{ID: id, Tokens: make(model.TokenLedger)}
			byID[id] = u
		}
		return u
	}

	for path, value := range flat {
		rest := strings.TrimPrefix(path, usersRoot+"/")
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 2 && parts[1] == "name":
			var name string
			if json.Unmarshal(value, &name) == nil {
				get(parts[0]).Name = name
			}
		case len(parts) == 2 && parts[1] == "created_at":
			var created string
			if json.Unmarshal(value, &created) == nil {
				get(parts[0]).CreatedAt, _ = time.Parse(time.RFC3339, created)
			}
		case len(parts) == 3 && parts[1] == "tokens":
			tier, err := strconv.Atoi(parts[2])
			if err != nil || tier < 1 || tier > 5 {
				continue
			}
			get(parts[0]).Tokens[tier] = parseCount(value)
		}
	}

	users := make([]model.User, 0, len(byID))
	for _, u := range byID {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

// Count returns the number of distinct participants with a ledger entry.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	flat, err := r.store.List(ctx, usersRoot)
	if err != nil {
		return 0, err
	}
	ids := make(map[string]struct{})
	for path := range flat {
		rest := strings.TrimPrefix(path, usersRoot+"/")
		if id, _, ok := strings.Cut(rest, "/"); ok {
			ids[id] = struct{}{}
		}
	}
	return len(ids), nil
}
