package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/liloman25879/spring-vote-app/internal/model"
	"github.com/liloman25879/spring-vote-app/internal/repository"
	"github.com/liloman25879/spring-vote-app/internal/store"
)

// WatchService exposes the shared change watermark. Every vote, proposal,
// and reset bumps meta/last_updated in the same batch as the data write,
// so clients can poll one key instead of rereading the whole tree.
type WatchService struct {
	st store.Store
}

func NewWatchService(st store.Store) *WatchService {
	return &WatchService{st: st}
}

// LastUpdated returns the current watermark, or "" if nothing has been
// written yet.
func (s *WatchService) LastUpdated(ctx context.Context) (string, error) {
	data, err := s.st.Get(ctx, repository.LastUpdatedPath)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return decodeWatermark(data), nil
}

// Changed compares the client's watermark against the current one. An
// empty since always reads as changed so first-time clients fetch.
func (s *WatchService) Changed(ctx context.Context, since string) (*model.UpdatesResponse, error) {
	cur, err := s.LastUpdated(ctx)
	if err != nil {
		return nil, err
	}
	return &model.UpdatesResponse{
		LastUpdated: cur,
		Changed:     since == "" || since != cur,
	}, nil
}

// decodeWatermark reads the stored JSON string, falling back to the raw
// bytes if an earlier writer stored it unquoted.
func decodeWatermark(data []byte) string {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return string(data)
	}
	return s
}
