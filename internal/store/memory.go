package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
)

// Memory is an in-process Store used for development and tests. A single
// mutex makes every operation atomic, which gives it the strongest
// consistency of the three backends and makes it the reference semantics
// the repository tests are written against.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[path]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Set(ctx context.Context, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[path] = data
	return nil
}

func (m *Memory) Txn(ctx context.Context, path string, fn TxnFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.data[path]
	next, err := fn(cur)
	if errors.Is(err, ErrUnchanged) {
		return nil
	}
	if err != nil {
		return err
	}
	data, err := json.Marshal(next)
	if err != nil {
		return err
	}
	m.data[path] = data
	return nil
}

func (m *Memory) Update(ctx context.Context, changes map[string]any) error {
	// Marshal everything first so a bad value cannot half-apply the batch.
	encoded := make(map[string][]byte, len(changes))
	for path, value := range changes {
		if value == nil {
			encoded[path] = nil
			continue
		}
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		encoded[path] = data
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Deletions first: a batch may delete a slot and write a fresh
	// descendant of the same slot in one go.
	for path, data := range encoded {
		if data == nil {
			m.deleteSubtree(path)
		}
	}
	for path, data := range encoded {
		if data != nil {
			m.data[path] = data
		}
	}
	return nil
}

// deleteSubtree removes path and every descendant. Callers hold mu.
func (m *Memory) deleteSubtree(path string) {
	delete(m.data, path)
	prefix := path + "/"
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
}

func (m *Memory) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]byte)
	p := prefix + "/"
	for k, v := range m.data {
		if strings.HasPrefix(k, p) {
			cp := make([]byte, len(v))
			copy(cp, v)
			out[k] = cp
		}
	}
	return out, nil
}

func (m *Memory) Backend() string                { return "memory" }
func (m *Memory) Ping(ctx context.Context) error { return nil }
func (m *Memory) Close() error                   { return nil }

// SetRaw stores pre-encoded JSON at path, bypassing marshaling. Tests use
// it to seed legacy representations (untagged arrays) that the current
// write path never produces.
func (m *Memory) SetRaw(path string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[path] = raw
}
