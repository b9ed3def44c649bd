package notes

import (
	"context"
	"fmt"

	"github.com/slok/reviewdata/internal/log"
	"github.com/slok/reviewdata/internal/model"
	"github.com/slok/reviewdata/internal/operation"
)

// Field is the sprint markdown note to set.
type Field string

const (
	FieldAchievements    Field = "achievements"
	FieldNextSprintPlans Field = "plans"
)

// ServiceConfig is the configuration for the notes service.
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.notes.Service"})

	return nil
}

// Service saves the sprint achievements and next sprint plans.
type Service struct {
	coord  operation.Enqueuer
	exec   operation.Executor
	logger log.Logger
}

// NewService creates a new notes service.
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

// Request represents the notes request parameters.
type Request struct {
	SprintID int
	Field    Field
	// Markdown replaces the current note, empty clears it.
	Markdown string
}

// Run saves the note and returns the updated sprint.
func (s *Service) Run(ctx context.Context, req Request) (*model.Sprint, error) {
	var op operation.Op
	switch req.Field {
	case FieldAchievements:
		op = operation.SaveAchievements{SprintID: req.SprintID, Markdown: req.Markdown}
	case FieldNextSprintPlans:
		op = operation.SaveNextSprintPlans{SprintID: req.SprintID, Markdown: req.Markdown}
	default:
		return nil, fmt.Errorf("unknown notes field %q: %w", req.Field, model.ErrNotValid)
	}

	res, err := operation.Submit(ctx, s.coord, s.exec, op, operation.Callbacks{
		OnRetry: func(attempt, maxRetries int) {
			s.logger.Warningf("Conflict detected, retrying %s save (%d/%d)", req.Field, attempt, maxRetries)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("could not save %s: %w", req.Field, err)
	}

	s.logger.Infof("Saved %s of sprint %d", req.Field, req.SprintID)
	sprint, _ := res.(*model.Sprint)
	return sprint, nil
}
