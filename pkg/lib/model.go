package lib

import (
	"github.com/slok/reviewdata/internal/coordinator"
	"github.com/slok/reviewdata/internal/model"
	"github.com/slok/reviewdata/internal/operation"
)

// BackendType identifies the document store implementation.
type BackendType string

const (
	// BackendGitHub stores the documents in a GitHub repository.
	BackendGitHub BackendType = "github"
	// BackendSQLite stores the documents in a SQLite database.
	BackendSQLite BackendType = "sqlite"
	// BackendMemory stores the documents in memory.
	BackendMemory BackendType = "memory"
)

// Review data types.
type (
	Sprint        = model.Sprint
	SprintStatus  = model.SprintStatus
	Goal          = model.Goal
	Comment       = model.Comment
	CurrentSprint = model.CurrentSprint
	MediaFile     = model.MediaFile
	RateLimitInfo = model.RateLimitInfo
	GoalRef       = operation.GoalRef
)

// Sprint statuses.
const (
	SprintStatusActive = model.SprintStatusActive
	SprintStatusClosed = model.SprintStatusClosed
)

// NoRetries as Config.MaxRetries runs every write once.
const NoRetries = coordinator.NoRetries

// QueueStatus is a snapshot of the operation queue.
type QueueStatus = coordinator.Status

// Errors returned by the SDK, check them with errors.Is.
var (
	ErrNotFound         = model.ErrNotFound
	ErrAlreadyExists    = model.ErrAlreadyExists
	ErrNotValid         = model.ErrNotValid
	ErrConflict         = model.ErrConflict
	ErrPermissionDenied = model.ErrPermissionDenied
	ErrRetriesExhausted = coordinator.ErrRetriesExhausted
	ErrDuplicate        = coordinator.ErrDuplicate
	ErrTimeout          = coordinator.ErrTimeout
)
