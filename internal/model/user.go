package model

import "time"

// TokenLedger maps a rating tier (1..5 stars) to the number of vote tokens
// the user still holds in that tier.
type TokenLedger map[int]int

// Tiers are the valid rating tiers, lowest to highest.
var Tiers = []int{1, 2, 3, 4, 5}

// Clone returns an independent copy of the ledger.
func (l TokenLedger) Clone() TokenLedger {
	out := make(TokenLedger, len(l))
	for tier, n := range l {
		out[tier] = n
	}
	return out
}

// Spent returns the total number of tokens consumed relative to the given
// budget: sum over tiers of (budget[tier] - remaining[tier]). With the
// ledger invariants intact this equals the user's count of active votes.
func (l TokenLedger) Spent(budget TokenLedger) int {
	total := 0
	for tier, maxN := range budget {
		total += maxN - l[tier]
	}
	return total
}

// User is a participant, created lazily on first interaction. The ID is
// derived deterministically from the display name.
type User struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Tokens    TokenLedger `json:"tokens"`
	CreatedAt time.Time   `json:"createdAt"`
}

// SessionRequest is the API request body for opening a named session.
type SessionRequest struct {
	Name string `json:"name"`
}

// SessionResponse is the API response for a named session.
type SessionResponse struct {
	UserID string      `json:"userId"`
	Name   string      `json:"name"`
	Tokens TokenLedger `json:"tokens"`
}

// TokensResponse is the API response for a token balance lookup.
type TokensResponse struct {
	UserID string      `json:"userId"`
	Tokens TokenLedger `json:"tokens"`
}

// AdminUserEntry is one row in the admin participant listing.
type AdminUserEntry struct {
	UserID string      `json:"userId"`
	Name   string      `json:"name"`
	Tokens TokenLedger `json:"tokens"`
	Spent  int         `json:"spent"`
}
