package repository

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/liloman25879/spring-vote-app/internal/model"
	"github.com/liloman25879/spring-vote-app/internal/store"
)

// TaskRepo persists participant-proposed tasks. Catalog tasks never reach
// storage; they are loaded read-only from the CSV catalog and merged with
// these at query time.
type TaskRepo struct {
	store store.Store
}

func NewTaskRepo(st store.Store) *TaskRepo {
	return &TaskRepo{store: st}
}

// Add stores a proposed task and bumps the change watermark in the same
// batch. Tasks are immutable once created.
func (r *TaskRepo) Add(ctx context.Context, task model.Task) error {
	return r.store.Update(ctx, map[string]any{
		taskPath(task.ID): task,
		LastUpdatedPath:   time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// List returns all proposed tasks sorted by lowercased name for a stable
// display order.
func (r *TaskRepo) List(ctx context.Context) ([]model.Task, error) {
	flat, err := r.store.List(ctx, tasksRoot)
	if err != nil {
		return nil, err
	}

	tasks := make([]model.Task, 0, len(flat))
	for _, value := range flat {
		var t model.Task
		if err := json.Unmarshal(value, &t); err != nil {
			continue
		}
		if t.Source == "" {
			t.Source = model.SourceProposed
		}
		tasks = append(tasks, t)
	}

	sort.Slice(tasks, func(i, j int) bool {
		return strings.ToLower(tasks[i].Name) < strings.ToLower(tasks[j].Name)
	})
	return tasks, nil
}
