package apply

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/slok/reviewdata/internal/coordinator"
	"github.com/slok/reviewdata/internal/log"
	"github.com/slok/reviewdata/internal/operation"
)

// ServiceConfig is the configuration for the apply service.
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.apply.Service"})

	return nil
}

// Service applies a batch of operations.
type Service struct {
	coord  operation.Enqueuer
	exec   operation.Executor
	logger log.Logger
}

// NewService creates a new apply service.
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

// Request represents the apply request parameters.
type Request struct {
	Operations []operation.Op
}

// Result is the outcome of a single operation of the batch.
type Result struct {
	Op operation.Op
	// ID is the coordinator operation ID, empty when the operation was not queued.
	ID    string
	Value any
	Err   error
}

// Run queues all the operations at once and waits for every one of them. The queue
// picks the next operation by priority among the ones pending when it pops, so a
// lifecycle change runs before the batch edits still queued at that moment. The
// first operation may already be running by then. Repeated operations are rejected
// as duplicates.
//
// Results are returned in the batch order, a failed operation doesn't stop the rest.
func (s *Service) Run(ctx context.Context, req Request) ([]Result, error) {
	results := make([]Result, len(req.Operations))
	futures := make([]*coordinator.Future, len(req.Operations))

	for i, op := range req.Operations {
		results[i].Op = op
		f, err := s.coord.Enqueue(operation.ToCoordinator(op, s.exec, operation.Callbacks{
			OnRetry: func(attempt, maxRetries int) {
				s.logger.Warningf("Conflict detected, retrying %s (%d/%d)", op.Type(), attempt, maxRetries)
			},
		}))
		if err != nil {
			results[i].Err = err
			continue
		}
		results[i].ID = f.ID()
		futures[i] = f
	}

	var g errgroup.Group
	for i, f := range futures {
		if f == nil {
			continue
		}
		g.Go(func() error {
			results[i].Value, results[i].Err = f.Wait(ctx)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("waiting for operations: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			s.logger.Errorf("%s failed: %s", r.Op.Type(), r.Err)
		}
	}
	s.logger.Infof("Applied %d operations (%d failed)", len(results), failed)

	return results, nil
}
