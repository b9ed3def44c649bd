package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// SprintStatus represents the review state of a sprint.
type SprintStatus string

const (
	SprintStatusActive SprintStatus = "active"
	SprintStatusClosed SprintStatus = "closed"
)

const (
	// SprintsDir is the directory holding one document per sprint.
	SprintsDir = "sprints"
	// CurrentSprintPath is the pointer document to the sprint shown by default.
	CurrentSprintPath = "current-sprint.json"
	// MediaDir is the directory holding the media attached to sprints.
	MediaDir = "media"
)

// SprintPath returns the document path of a sprint.
func SprintPath(sprintID int) string {
	return fmt.Sprintf("%s/sprint-%d.json", SprintsDir, sprintID)
}

// SprintMediaDir returns the directory where the media of a sprint is stored.
func SprintMediaDir(sprintID int) string {
	return fmt.Sprintf("%s/sprint-%d", MediaDir, sprintID)
}

// Comment is a review note attached to a goal.
type Comment struct {
	ID        string     `json:"id"`
	Author    string     `json:"author"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// TaskStats is the task progress summary of a goal.
type TaskStats struct {
	Done       int `json:"done"`
	InProgress int `json:"inProgress"`
	Todo       int `json:"todo"`
	Total      int `json:"total"`
}

// Goal is a sprint goal (main or side) with its review comments.
type Goal struct {
	ID                int       `json:"id"`
	Title             string    `json:"title"`
	Client            *string   `json:"client"`
	Tag               string    `json:"tag"`
	Completed         bool      `json:"completed"`
	CompletionPercent int       `json:"completionPercent"`
	TaskStats         TaskStats `json:"taskStats"`
	Tasks             []string  `json:"tasks"`
	Comments          []Comment `json:"comments"`
}

// Sprint is the review document of a single sprint.
//
// Fields the review tooling does not know about (written by the sync job) are
// kept untouched across a decode/encode cycle.
type Sprint struct {
	ID              int          `json:"id"`
	Name            string       `json:"name"`
	Status          SprintStatus `json:"status"`
	StartDate       string       `json:"startDate"`
	EndDate         string       `json:"endDate"`
	Goals           []Goal       `json:"goals"`
	SideGoals       []Goal       `json:"sideGoals"`
	Achievements    string       `json:"achievements"`
	NextSprintPlans string       `json:"nextSprintPlans"`
	ClosedAt        *time.Time   `json:"closedAt"`

	extra map[string]json.RawMessage
}

// sprintAlias avoids recursion on the custom JSON methods.
type sprintAlias Sprint

var sprintKnownFields = map[string]struct{}{
	"id": {}, "name": {}, "status": {}, "startDate": {}, "endDate": {}, "goals": {}, "sideGoals": {},
	"achievements": {}, "nextSprintPlans": {}, "closedAt": {},
}

// UnmarshalJSON decodes a sprint keeping the unknown fields.
func (s *Sprint) UnmarshalJSON(data []byte) error {
	var a sprintAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	a.extra = map[string]json.RawMessage{}
	for k, v := range all {
		if _, ok := sprintKnownFields[k]; !ok {
			a.extra[k] = v
		}
	}

	*s = Sprint(a)
	return nil
}

// MarshalJSON encodes a sprint including the unknown fields it was decoded with.
func (s Sprint) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(sprintAlias(s))
	if err != nil {
		return nil, err
	}
	if len(s.extra) == 0 {
		return known, nil
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(known, &all); err != nil {
		return nil, err
	}
	for k, v := range s.extra {
		all[k] = v
	}

	return json.Marshal(all)
}

// Goal returns the goal with the given ID, side goals are looked up when side is true.
func (s *Sprint) Goal(id int, side bool) (*Goal, error) {
	goals := s.Goals
	if side {
		goals = s.SideGoals
	}

	for i := range goals {
		if goals[i].ID == id {
			return &goals[i], nil
		}
	}

	kind := "goal"
	if side {
		kind = "side goal"
	}
	return nil, fmt.Errorf("%s %d in sprint %d: %w", kind, id, s.ID, ErrNotFound)
}

// IsClosed returns true if the sprint has been closed for review.
func (s *Sprint) IsClosed() bool { return s.Status == SprintStatusClosed }

// CurrentSprint is the pointer document to the sprint shown by default.
type CurrentSprint struct {
	CurrentSprintID int  `json:"currentSprintId"`
	IsActive        bool `json:"isActive"`
}

// EncodeDocument encodes a document the way the data repository stores it (2 space indent, no HTML escaping).
func EncodeDocument(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}
