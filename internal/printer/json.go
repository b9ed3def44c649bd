package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/reviewdata/internal/model"
)

// JSONPrinter prints review data in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// sprintOutput wraps the sprint document with the pointer state.
type sprintOutput struct {
	Current bool         `json:"current"`
	Sprint  model.Sprint `json:"sprint"`
}

// mediaItem represents a media file in the list output.
type mediaItem struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	Version string `json:"version"`
}

// operationResultOutput represents a batch operation outcome.
type operationResultOutput struct {
	ID    string `json:"id,omitempty"`
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

// rateLimitOutput represents the outbound API quota.
type rateLimitOutput struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintSprint prints the sprint document as stored, with unknown fields.
func (j *JSONPrinter) PrintSprint(sprint model.Sprint, current bool) error {
	return j.encode(sprintOutput{Current: current, Sprint: sprint})
}

// PrintComment prints a single comment.
func (j *JSONPrinter) PrintComment(comment model.Comment) error {
	return j.encode(comment)
}

// PrintMediaList prints media files in JSON format.
func (j *JSONPrinter) PrintMediaList(files []model.MediaFile) error {
	items := make([]mediaItem, len(files))
	for i, f := range files {
		items[i] = mediaItem{Name: f.Name, Path: f.Path, Size: f.Size, Version: f.Version}
	}

	return j.encode(items)
}

// PrintOperationResults prints the outcome of a batch of operations.
func (j *JSONPrinter) PrintOperationResults(results []OperationResult) error {
	items := make([]operationResultOutput, len(results))
	for i, r := range results {
		items[i] = operationResultOutput{ID: r.ID, Type: r.Type}
		if r.Err != nil {
			items[i].Error = r.Err.Error()
		}
	}

	return j.encode(items)
}

// PrintRateLimit prints the outbound API quota.
func (j *JSONPrinter) PrintRateLimit(info model.RateLimitInfo) error {
	return j.encode(rateLimitOutput{Limit: info.Limit, Remaining: info.Remaining, ResetAt: info.ResetAt.UTC()})
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
