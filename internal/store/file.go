package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// collections are the top-level path segments persisted as separate
// snapshot files.
var collections = []string{"users", "votes", "tasks", "meta"}

// File is the degraded local-filesystem backend: the whole tree is held in
// memory and flushed as one JSON snapshot per top-level collection, with a
// timestamped backup of the previous file on every overwrite. Operation
// names and semantics match the other backends, but atomicity is only
// whole-file rewrite under a process-wide mutex — documented degraded mode
// for running without a database.
type File struct {
	mu   sync.Mutex
	dir  string
	data map[string][]byte
}

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	s := &File{dir: dir, data: make(map[string][]byte)}
	if err := s.load(); err != nil {
		return nil, err
	}
	log.Warn().Str("dir", dir).Msg("file store active: local degraded mode, no cross-process atomicity")
	return s, nil
}

func (s *File) load() error {
	for _, col := range collections {
		raw, err := os.ReadFile(s.snapshotPath(col))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load %s snapshot: %w", col, err)
		}
		var flat map[string]json.RawMessage
		if err := json.Unmarshal(raw, &flat); err != nil {
			return fmt.Errorf("parse %s snapshot: %w", col, err)
		}
		for path, value := range flat {
			s.data[path] = value
		}
	}
	return nil
}

func (s *File) snapshotPath(col string) string {
	return filepath.Join(s.dir, col+".json")
}

// flush rewrites the snapshot files for the given collections, backing up
// any existing file first. Callers hold mu.
func (s *File) flush(touched map[string]struct{}) error {
	stamp := time.Now().Format("20060102_150405")
	for col := range touched {
		flat := make(map[string]json.RawMessage)
		prefix := col + "/"
		for path, value := range s.data {
			if strings.HasPrefix(path, prefix) || path == col {
				flat[path] = value
			}
		}
		data, err := json.MarshalIndent(flat, "", "  ")
		if err != nil {
			return err
		}

		target := s.snapshotPath(col)
		if _, err := os.Stat(target); err == nil {
			backup := fmt.Sprintf("%s.backup_%s", target, stamp)
			if err := os.Rename(target, backup); err != nil {
				return fmt.Errorf("backup %s: %w", target, err)
			}
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", target, err)
		}
	}
	return nil
}

func collectionOf(path string) string {
	col, _, _ := strings.Cut(path, "/")
	return col
}

func (s *File) Get(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[path]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *File) Set(ctx context.Context, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = data
	return s.flush(map[string]struct{}{collectionOf(path): {}})
}

func (s *File) Txn(ctx context.Context, path string, fn TxnFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(s.data[path])
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
	s.data[path] = data
	return s.flush(map[string]struct{}{collectionOf(path): {}})
}

func (s *File) Update(ctx context.Context, changes map[string]any) error {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[string]struct{})
	// Deletions first, then sets: a batch may delete a slot and write a
	// fresh descendant of the same slot in one go.
	for path, data := range encoded {
		touched[collectionOf(path)] = struct{}{}
		if data != nil {
			continue
		}
		delete(s.data, path)
		prefix := path + "/"
		for k := range s.data {
			if strings.HasPrefix(k, prefix) {
				delete(s.data, k)
			}
		}
	}
	for path, data := range encoded {
		if data != nil {
			s.data[path] = data
		}
	}
	return s.flush(touched)
}

func (s *File) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]byte)
	p := prefix + "/"
	for k, v := range s.data {
		if strings.HasPrefix(k, p) {
			cp := make([]byte, len(v))
			copy(cp, v)
			out[k] = cp
		}
	}
	return out, nil
}

func (s *File) Backend() string                { return "file" }
func (s *File) Ping(ctx context.Context) error { return nil }
func (s *File) Close() error                   { return nil }
