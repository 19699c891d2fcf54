package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/liloman25879/spring-vote-app/internal/model"
	"github.com/liloman25879/spring-vote-app/internal/repository"
)

// CatalogService merges the static CSV task catalog with participant
// proposals into one votable list. The catalog file is read once at
// startup; proposals live in the store. A missing or broken catalog is
// non-fatal: the app runs in proposed-only mode.
type CatalogService struct {
	tasks   *repository.TaskRepo
	catalog []model.Task
}

func NewCatalogService(tasks *repository.TaskRepo, catalogPath string) *CatalogService {
	svc := &CatalogService{tasks: tasks}
	if catalogPath == "" {
		return svc
	}
	loaded, err := loadCatalogCSV(catalogPath)
	if err != nil {
		log.Warn().Err(err).Str("path", catalogPath).
			Msg("task catalog unavailable, running with proposed tasks only")
		return svc
	}
	svc.catalog = loaded
	log.Info().Int("tasks", len(loaded)).Str("path", catalogPath).Msg("task catalog loaded")
	return svc
}

// All returns catalog and proposed tasks merged, sorted by lowercased name
// so the display order is stable across clients.
func (s *CatalogService) All(ctx context.Context) ([]model.Task, error) {
	proposed, err := s.tasks.List(ctx)
	if err != nil {
		return nil, err
	}
	all := make([]model.Task, 0, len(s.catalog)+len(proposed))
	all = append(all, s.catalog...)
	all = append(all, proposed...)
	sort.SliceStable(all, func(i, j int) bool {
		return strings.ToLower(all[i].Name) < strings.ToLower(all[j].Name)
	})
	return all, nil
}

// Propose validates and stores a participant-submitted task. The total
// score is the mean of the three criterion scores.
func (s *CatalogService) Propose(ctx context.Context, req model.ProposeTaskRequest) (*model.Task, error) {
	task := model.Task{
		ID:              "proposed_" + uuid.NewString(),
		Name:            strings.TrimSpace(req.Name),
		Description:     strings.TrimSpace(req.Description),
		CostScore:       float64(req.Cost),
		ComplexityScore: float64(req.Complexity),
		InterestScore:   float64(req.Interest),
		TotalScore:      (float64(req.Cost) + float64(req.Complexity) + float64(req.Interest)) / 3,
		Source:          model.SourceProposed,
		ProposedBy:      strings.TrimSpace(req.ProposedBy),
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.tasks.Add(ctx, task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ProposedCount returns the number of participant-submitted tasks.
func (s *CatalogService) ProposedCount(ctx context.Context) (int, error) {
	proposed, err := s.tasks.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(proposed), nil
}

// loadCatalogCSV parses the semicolon-separated catalog export. Numeric
// columns may use a decimal comma. Rows with a missing name are skipped.
func loadCatalogCSV(path string) ([]model.Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = ';'
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	nameIdx, ok := col["Nouveau_Nom"]
	if !ok {
		return nil, fmt.Errorf("catalog missing Nouveau_Nom column")
	}

	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var tasks []model.Task
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog row: %w", err)
		}
		if nameIdx >= len(rec) {
			continue
		}
		name := strings.TrimSpace(rec[nameIdx])
		if name == "" {
			continue
		}
		desc := field(rec, "Description")
		if desc == "" {
			desc = "No description provided."
		}
		tasks = append(tasks, model.Task{
			ID:              "csv_" + name,
			Name:            name,
			Description:     desc,
			CostScore:       parseScore(field(rec, "Score_Prix")),
			ComplexityScore: parseScore(field(rec, "Score_Complexité")),
			InterestScore:   parseScore(field(rec, "Score_Intérêt")),
			TotalScore:      parseScore(field(rec, "Score_Total")),
			Source:          model.SourceCatalog,
		})
	}
	return tasks, nil
}

// parseScore reads a numeric cell, tolerating a decimal comma. Unparseable
// cells read as zero.
func parseScore(s string) float64 {
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
