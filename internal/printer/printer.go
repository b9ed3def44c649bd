package printer

import "github.com/slok/reviewdata/internal/model"

// OperationResult is the printable outcome of a queued operation.
type OperationResult struct {
	ID   string
	Type string
	Err  error
}

// Printer knows how to print review data in different formats.
type Printer interface {
	PrintSprint(sprint model.Sprint, current bool) error
	PrintComment(comment model.Comment) error
	PrintMediaList(files []model.MediaFile) error
	PrintOperationResults(results []OperationResult) error
	PrintRateLimit(info model.RateLimitInfo) error
	PrintMessage(msg string) error
}
