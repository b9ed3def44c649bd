package comment

import (
	"context"
	"fmt"

	"github.com/slok/reviewdata/internal/log"
	"github.com/slok/reviewdata/internal/model"
	"github.com/slok/reviewdata/internal/operation"
)

// Action is the change to make on a comment.
type Action string

const (
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ServiceConfig is the configuration for the comment service.
type ServiceConfig struct {
	Coordinator operation.Enqueuer
	Executor    operation.Executor
	Logger      log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Coordinator == nil {
		return fmt.Errorf("coordinator is required")
	}

	if c.Executor == nil {
		return fmt.Errorf("executor is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.comment.Service"})

	return nil
}

// Service adds, edits and removes goal comments.
type Service struct {
	coord  operation.Enqueuer
	exec   operation.Executor
	logger log.Logger
}

// NewService creates a new comment service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		coord:  cfg.Coordinator,
		exec:   cfg.Executor,
		logger: cfg.Logger,
	}, nil
}

// Request represents the comment request parameters.
type Request struct {
	Action   Action
	SprintID int
	Goal     operation.GoalRef
	// CommentID is required on update and delete.
	CommentID string
	// Author is required on add.
	Author string
	// Text is required on add and update.
	Text string
}

// Run applies the comment change. The returned comment is nil on delete.
func (s *Service) Run(ctx context.Context, req Request) (*model.Comment, error) {
	var op operation.Op
	switch req.Action {
	case ActionAdd:
		op = operation.AddComment{SprintID: req.SprintID, Goal: req.Goal, Author: req.Author, Text: req.Text}
	case ActionUpdate:
		op = operation.UpdateComment{SprintID: req.SprintID, Goal: req.Goal, CommentID: req.CommentID, Text: req.Text}
	case ActionDelete:
		op = operation.DeleteComment{SprintID: req.SprintID, Goal: req.Goal, CommentID: req.CommentID}
	default:
		return nil, fmt.Errorf("unknown comment action %q: %w", req.Action, model.ErrNotValid)
	}

	if req.Action != ActionAdd && req.CommentID == "" {
		return nil, fmt.Errorf("comment ID is required: %w", model.ErrNotValid)
	}

	s.logger.Debugf("%s comment on sprint %d goal %d", req.Action, req.SprintID, req.Goal.GoalID)

	res, err := operation.Submit(ctx, s.coord, s.exec, op, operation.Callbacks{
		OnRetry: func(attempt, maxRetries int) {
			s.logger.Warningf("Conflict detected, retrying comment %s (%d/%d)", req.Action, attempt, maxRetries)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("could not %s comment: %w", req.Action, err)
	}

	c, _ := res.(*model.Comment)
	return c, nil
}
