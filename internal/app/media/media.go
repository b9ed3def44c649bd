package media

import (
	"context"
	"fmt"

	"github.com/slok/reviewdata/internal/log"
	"github.com/slok/reviewdata/internal/model"
	"github.com/slok/reviewdata/internal/operation"
	"github.com/slok/reviewdata/internal/storage"
)

// ServiceConfig is the configuration for the media service.
type ServiceConfig struct {
	Coordinator operation.Enqueuer
	Executor    operation.Executor
	// Store is used for reads, they don't go through the coordinator.
	Store  storage.DocumentStore
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Coordinator == nil {
		return fmt.Errorf("coordinator is required")
	}

	if c.Executor == nil {
		return fmt.Errorf("executor is required")
	}

	if c.Store == nil {
		return fmt.Errorf("store is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.media.Service"})

	return nil
}

// Service manages the media files attached to sprint reviews.
type Service struct {
	coord  operation.Enqueuer
	exec   operation.Executor
	store  storage.DocumentStore
	logger log.Logger
}

// NewService creates a new media service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		coord:  cfg.Coordinator,
		exec:   cfg.Executor,
		store:  cfg.Store,
		logger: cfg.Logger,
	}, nil
}

// List returns the media files of a sprint sorted by name.
func (s *Service) List(ctx context.Context, sprintID int) ([]model.MediaFile, error) {
	entries, err := s.store.List(ctx, model.SprintMediaDir(sprintID))
	if err != nil {
		return nil, fmt.Errorf("could not list media: %w", err)
	}

	files := make([]model.MediaFile, 0, len(entries))
	for _, e := range entries {
		if e.Kind != model.EntryKindFile {
			continue
		}
		files = append(files, model.MediaFile{
			SprintID: sprintID,
			Name:     e.Name,
			Path:     e.Path,
			Version:  e.Version,
			Size:     e.Size,
		})
	}

	return files, nil
}

// Download returns the content of a media file.
func (s *Service) Download(ctx context.Context, sprintID int, name string) ([]byte, error) {
	if err := model.ValidateMediaName(name); err != nil {
		return nil, err
	}

	data, err := s.store.DownloadBinary(ctx, model.MediaPath(sprintID, name))
	if err != nil {
		return nil, fmt.Errorf("could not download media: %w", err)
	}

	return data, nil
}

// Upload stores a media file, replacing the existing one with the same name.
func (s *Service) Upload(ctx context.Context, sprintID int, name string, data []byte) (*model.MediaFile, error) {
	res, err := s.submit(ctx, operation.UploadMedia{SprintID: sprintID, Name: name, Data: data})
	if err != nil {
		return nil, err
	}

	mf, _ := res.(*model.MediaFile)
	s.logger.Infof("Uploaded %s (%d bytes)", mf.Path, mf.Size)
	return mf, nil
}

// Delete removes a media file.
func (s *Service) Delete(ctx context.Context, sprintID int, name string) error {
	_, err := s.submit(ctx, operation.DeleteMedia{SprintID: sprintID, Name: name})
	return err
}

// Rename renames a media file.
func (s *Service) Rename(ctx context.Context, sprintID int, from, to string) (*model.MediaFile, error) {
	res, err := s.submit(ctx, operation.RenameMedia{SprintID: sprintID, From: from, To: to})
	if err != nil {
		return nil, err
	}

	mf, _ := res.(*model.MediaFile)
	return mf, nil
}

func (s *Service) submit(ctx context.Context, op operation.Op) (any, error) {
	res, err := operation.Submit(ctx, s.coord, s.exec, op, operation.Callbacks{
		OnRetry: func(attempt, maxRetries int) {
			s.logger.Warningf("Conflict detected, retrying %s (%d/%d)", op.Type(), attempt, maxRetries)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op.Type(), err)
	}

	return res, nil
}
