package sprintlifecycle

import (
	"context"
	"fmt"

	"github.com/slok/reviewdata/internal/log"
	"github.com/slok/reviewdata/internal/model"
	"github.com/slok/reviewdata/internal/operation"
)

// Action is the sprint review lifecycle change.
type Action string

const (
	ActionClose  Action = "close"
	ActionReopen Action = "reopen"
)

// ServiceConfig is the configuration for the sprint lifecycle service.
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.sprintlifecycle.Service"})

	return nil
}

// Service closes and reopens sprint reviews.
type Service struct {
	coord  operation.Enqueuer
	exec   operation.Executor
	logger log.Logger
}

// NewService creates a new sprint lifecycle service.
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

// Request represents the sprint lifecycle request parameters.
type Request struct {
	SprintID int
	Action   Action
}

// Run closes or reopens the sprint, moving the current sprint pointer with it.
func (s *Service) Run(ctx context.Context, req Request) (*model.Sprint, error) {
	if req.SprintID <= 0 {
		return nil, fmt.Errorf("sprint ID must be positive, got: %d: %w", req.SprintID, model.ErrNotValid)
	}

	var op operation.Op
	switch req.Action {
	case ActionClose:
		op = operation.CloseSprint{SprintID: req.SprintID}
	case ActionReopen:
		op = operation.ReopenSprint{SprintID: req.SprintID}
	default:
		return nil, fmt.Errorf("unknown sprint action %q: %w", req.Action, model.ErrNotValid)
	}

	res, err := operation.Submit(ctx, s.coord, s.exec, op, operation.Callbacks{
		OnRetry: func(attempt, maxRetries int) {
			s.logger.Warningf("Conflict detected, retrying sprint %s (%d/%d)", req.Action, attempt, maxRetries)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("could not %s sprint %d: %w", req.Action, req.SprintID, err)
	}

	sprint, _ := res.(*model.Sprint)
	return sprint, nil
}
