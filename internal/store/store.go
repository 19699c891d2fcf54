package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when no value exists at the path.
	ErrNotFound = errors.New("store: path not found")

	// ErrConflict is returned by Txn when the optimistic transaction lost
	// against concurrent writers too many times. The caller may retry.
	ErrConflict = errors.New("store: transaction conflict")

	// ErrUnchanged is returned from a TxnFunc to commit nothing and leave
	// the key exactly as it was. Txn itself then returns nil.
	ErrUnchanged = errors.New("store: unchanged")
)

// TxnFunc computes the next value for a key from its current value. cur is
// the raw JSON at the path, or nil when the path is absent. The returned
// value is marshaled and written atomically with respect to the read.
// Backends with optimistic concurrency re-invoke fn with a fresh read
// after a lost race, so fn must reset any captured state on entry.
type TxnFunc func(cur []byte) (next any, err error)

// Store is a hierarchical key-value store addressed by slash-separated
// paths (users/{id}/tokens/{tier}, votes/{taskKey}/{userID}/{voteID}).
// Values are JSON. All coordination between concurrent writers happens
// here: single-key atomic read-modify-write via Txn, and multi-path atomic
// batches via Update. No caller may assume it is the only writer.
type Store interface {
	// Get returns the raw JSON value at path, or ErrNotFound.
	Get(ctx context.Context, path string) ([]byte, error)

	// Set writes value at path unconditionally.
	Set(ctx context.Context, path string, value any) error

	// Txn runs fn against the current value of path as an atomic
	// read-modify-write. Two concurrent Txns on the same path never both
	// observe the same starting value and both commit.
	Txn(ctx context.Context, path string, fn TxnFunc) error

	// Update applies every change in one atomic batch. A nil value
	// deletes the path (and, for hierarchical backends, any descendants).
	Update(ctx context.Context, changes map[string]any) error

	// List returns every stored path strictly below prefix, with values.
	List(ctx context.Context, prefix string) (map[string][]byte, error)

	// Backend names the implementation ("postgres", "redis", "file",
	// "memory") so health reporting reflects what is actually serving,
	// not what was configured.
	Backend() string

	Ping(ctx context.Context) error
	Close() error
}
