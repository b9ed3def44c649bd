package sprintshow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/slok/reviewdata/internal/log"
	"github.com/slok/reviewdata/internal/model"
	"github.com/slok/reviewdata/internal/storage"
)

// ServiceConfig is the configuration for the sprint show service.
type ServiceConfig struct {
	Store  storage.DocumentStore
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Store == nil {
		return fmt.Errorf("store is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service reads sprint review documents. Reads don't go through the coordinator.
type Service struct {
	store  storage.DocumentStore
	logger log.Logger
}

// NewService creates a new sprint show service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		store:  cfg.Store,
		logger: cfg.Logger,
	}, nil
}

// Request represents the sprint show request parameters.
type Request struct {
	// SprintID to show, zero shows the sprint the current sprint pointer points to.
	SprintID int
}

// Result is the sprint with the current sprint pointer state.
type Result struct {
	Sprint model.Sprint
	// Current is nil when there is no current sprint pointer.
	Current *model.CurrentSprint
}

// IsCurrent returns true if the sprint is the one the pointer points to.
func (r Result) IsCurrent() bool {
	return r.Current != nil && r.Current.CurrentSprintID == r.Sprint.ID
}

// Run gets a sprint.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	current, err := s.currentSprint(ctx)
	if err != nil {
		return nil, err
	}

	id := req.SprintID
	if id == 0 {
		if current == nil {
			return nil, fmt.Errorf("current sprint is not set: %w", model.ErrNotFound)
		}
		id = current.CurrentSprintID
	}
	s.logger.Debugf("getting sprint: %d", id)

	doc, err := s.store.Fetch(ctx, model.SprintPath(id))
	if err != nil {
		return nil, fmt.Errorf("could not get sprint: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("sprint %d: %w", id, model.ErrNotFound)
	}

	var sprint model.Sprint
	if err := json.Unmarshal(doc.Content, &sprint); err != nil {
		return nil, fmt.Errorf("malformed sprint %d document: %s: %w", id, err, model.ErrNotValid)
	}

	return &Result{Sprint: sprint, Current: current}, nil
}

func (s *Service) currentSprint(ctx context.Context) (*model.CurrentSprint, error) {
	doc, err := s.store.Fetch(ctx, model.CurrentSprintPath)
	if err != nil {
		return nil, fmt.Errorf("could not get current sprint: %w", err)
	}
	if doc == nil {
		return nil, nil
	}

	var cs model.CurrentSprint
	if err := json.Unmarshal(doc.Content, &cs); err != nil {
		return nil, fmt.Errorf("malformed current sprint document: %s: %w", err, model.ErrNotValid)
	}

	return &cs, nil
}
