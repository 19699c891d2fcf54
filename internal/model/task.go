package model

import "time"

// Task sources.
const (
	SourceCatalog  = "catalog"
	SourceProposed = "proposed"
)

// Task is a votable item. Catalog tasks come from the static CSV catalog
// and are immutable; proposed tasks are submitted by participants and are
// immutable once created except for vote aggregation.
type Task struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	CostScore       float64   `json:"costScore"`
	ComplexityScore float64   `json:"complexityScore"`
	InterestScore   float64   `json:"interestScore"`
	TotalScore      float64   `json:"totalScore"`
	Source          string    `json:"source"`
	ProposedBy      string    `json:"proposedBy,omitempty"`
	CreatedAt       time.Time `json:"createdAt,omitzero"`
}

// ProposeTaskRequest is the API request body for proposing a new task.
type ProposeTaskRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Cost        int    `json:"cost"`
	Complexity  int    `json:"complexity"`
	Interest    int    `json:"interest"`
	ProposedBy  string `json:"proposedBy"`
}

// TaskListResponse is the API response for the merged task list.
type TaskListResponse struct {
	Tasks []Task `json:"tasks"`
}

// TaskScore is the derived per-task aggregate used in rankings.
type TaskScore struct {
	TaskID     string  `json:"taskId"`
	Name       string  `json:"name"`
	Source     string  `json:"source"`
	TotalStars int     `json:"totalStars"`
	NumVotes   int     `json:"numVotes"`
	AvgScore   float64 `json:"avgScore"`
}

// GlobalStats is the API response for platform-wide statistics.
type GlobalStats struct {
	TotalVotes    int    `json:"totalVotes"`
	Participants  int    `json:"participants"`
	ProposedTasks int    `json:"proposedTasks"`
	LastUpdated   string `json:"lastUpdated"`
}

// UpdatesResponse is the API response for the watermark poll endpoint.
type UpdatesResponse struct {
	LastUpdated string `json:"lastUpdated"`
	Changed     bool   `json:"changed"`
}
