package model

import "time"

// Vote is the single active vote a user holds on a task. Corrections
// replace it; they never add a second one.
type Vote struct {
	VoteID   string    `json:"voteId,omitempty"`
	TaskKey  string    `json:"-"`
	UserID   string    `json:"-"`
	UserName string    `json:"user_name"`
	Score    int       `json:"score"`
	Time     time.Time `json:"timestamp"`
}

// Outcome classifies the result of a cast-or-correct operation.
type Outcome string

const (
	// OutcomeRecorded means the vote was written and a token consumed.
	OutcomeRecorded Outcome = "recorded"
	// OutcomeUnchanged means the user already held this exact vote; the
	// operation was a pure no-op.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeInsufficientTokens means the target tier had no tokens left;
	// the ledger and any prior vote are untouched.
	OutcomeInsufficientTokens Outcome = "insufficient_tokens"
	// OutcomeStorageError means a backend write failed; compensation
	// restored the pre-operation state and the caller may retry.
	OutcomeStorageError Outcome = "storage_error"
)

// CastResult is what the vote coordinator reports back to its caller.
type CastResult struct {
	Outcome Outcome     `json:"outcome"`
	Vote    *Vote       `json:"vote,omitempty"`
	Tokens  TokenLedger `json:"tokens,omitempty"`
}

// CastRequest is the API request body for casting or correcting a vote.
type CastRequest struct {
	UserName string `json:"userName"`
	TaskID   string `json:"taskId"`
	TaskName string `json:"taskName"`
	Score    int    `json:"score"`
}

// CastResponse is the API response after a cast-or-correct attempt.
type CastResponse struct {
	Outcome Outcome     `json:"outcome"`
	Vote    *Vote       `json:"vote,omitempty"`
	Tokens  TokenLedger `json:"tokens,omitempty"`
	Message string      `json:"message,omitempty"`
}
