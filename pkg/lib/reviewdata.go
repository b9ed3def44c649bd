package lib

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"k8s.io/client-go/util/homedir"

	"github.com/slok/reviewdata/internal/app/comment"
	"github.com/slok/reviewdata/internal/app/media"
	"github.com/slok/reviewdata/internal/app/notes"
	"github.com/slok/reviewdata/internal/app/sprintlifecycle"
	"github.com/slok/reviewdata/internal/app/sprintshow"
	"github.com/slok/reviewdata/internal/coordinator"
	"github.com/slok/reviewdata/internal/log"
	"github.com/slok/reviewdata/internal/operation"
	"github.com/slok/reviewdata/internal/storage"
	"github.com/slok/reviewdata/internal/storage/github"
	"github.com/slok/reviewdata/internal/storage/memory"
	"github.com/slok/reviewdata/internal/storage/sqlite"
)

const (
	defaultDataDir = ".reviewdata"
	defaultDBFile  = "reviewdata.db"
)

// GitHubConfig configures the GitHub backend.
type GitHubConfig struct {
	// Repo is the data repository in "owner/name" form. Required.
	Repo string
	// Token is the GitHub token used for the API requests.
	Token string
	// Branch to read and commit to. Default: the repository default branch.
	Branch string
	// APIURL is the GitHub API base URL. Default: https://api.github.com.
	APIURL string
	// RequestInterval is the minimum spacing between API requests.
	RequestInterval time.Duration
}

// Config configures the SDK client.
//
// An empty Config{} uses the GitHub backend, so at minimum GitHub.Repo must be set.
type Config struct {
	// Backend selects the document store. Default: [BackendGitHub].
	Backend BackendType

	// GitHub is the GitHub backend configuration.
	GitHub GitHubConfig

	// DBPath is the SQLite database path of [BackendSQLite].
	// Default: ~/.reviewdata/reviewdata.db.
	DBPath string

	// SettleDelay is the wait after a successful write before the next queued one.
	// Default: 500ms.
	SettleDelay time.Duration

	// MaxRetries of a write that keeps conflicting, [NoRetries] disables them. Default: 7.
	MaxRetries int

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Backend == "" {
		c.Backend = BackendGitHub
	}

	if c.Backend == BackendSQLite && c.DBPath == "" {
		c.DBPath = filepath.Join(homedir.HomeDir(), defaultDataDir, defaultDBFile)
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point for editing sprint reviews.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use, all its writes are serialized by one queue.
type Client struct {
	store   storage.DocumentStore
	coord   *coordinator.Coordinator
	show    *sprintshow.Service
	comment *comment.Service
	notes   *notes.Service
	sprint  *sprintlifecycle.Service
	media   *media.Service
	closeFn func() error
}

// New creates a new SDK client.
//
// The caller must call [Client.Close] when done:
//
//	client, err := lib.New(ctx, lib.Config{Backend: lib.BackendMemory})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	store, closeFn, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c, err := newClient(store, cfg)
	if err != nil {
		_ = closeFn()
		return nil, err
	}
	c.closeFn = closeFn

	return c, nil
}

func newStore(ctx context.Context, cfg Config) (storage.DocumentStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case BackendGitHub:
		s, err := github.NewStore(github.StoreConfig{
			Repo:            cfg.GitHub.Repo,
			Token:           cfg.GitHub.Token,
			Branch:          cfg.GitHub.Branch,
			APIURL:          cfg.GitHub.APIURL,
			RequestInterval: cfg.GitHub.RequestInterval,
			Logger:          cfg.Logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("could not create github store: %w", err)
		}
		return s, noop, nil
	case BackendSQLite:
		s, err := sqlite.NewStore(ctx, sqlite.StoreConfig{DBPath: cfg.DBPath, Logger: cfg.Logger})
		if err != nil {
			return nil, nil, fmt.Errorf("could not create sqlite store: %w", err)
		}
		return s, s.Close, nil
	case BackendMemory:
		s, err := memory.NewStore(memory.StoreConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, nil, fmt.Errorf("could not create memory store: %w", err)
		}
		return s, noop, nil
	default:
		return nil, nil, fmt.Errorf("unsupported backend: %s: %w", cfg.Backend, ErrNotValid)
	}
}

func newClient(store storage.DocumentStore, cfg Config) (*Client, error) {
	exec, err := operation.NewDispatcher(operation.DispatcherConfig{Store: store, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create dispatcher: %w", err)
	}

	coord, err := coordinator.New(coordinator.Config{
		SettleDelay: cfg.SettleDelay,
		MaxRetries:  cfg.MaxRetries,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create coordinator: %w", err)
	}

	show, err := sprintshow.NewService(sprintshow.ServiceConfig{Store: store, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create sprint show service: %w", err)
	}

	commentSvc, err := comment.NewService(comment.ServiceConfig{Coordinator: coord, Executor: exec, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create comment service: %w", err)
	}

	notesSvc, err := notes.NewService(notes.ServiceConfig{Coordinator: coord, Executor: exec, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create notes service: %w", err)
	}

	sprintSvc, err := sprintlifecycle.NewService(sprintlifecycle.ServiceConfig{Coordinator: coord, Executor: exec, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create sprint lifecycle service: %w", err)
	}

	mediaSvc, err := media.NewService(media.ServiceConfig{Coordinator: coord, Executor: exec, Store: store, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create media service: %w", err)
	}

	return &Client{
		store:   store,
		coord:   coord,
		show:    show,
		comment: commentSvc,
		notes:   notesSvc,
		sprint:  sprintSvc,
		media:   mediaSvc,
	}, nil
}

// Close releases resources held by the client.
// After Close returns, the client must not be used.
func (c *Client) Close() error {
	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}

// GetSprint returns a sprint and if it's the current one. A zero ID returns
// the current sprint.
func (c *Client) GetSprint(ctx context.Context, sprintID int) (*Sprint, bool, error) {
	res, err := c.show.Run(ctx, sprintshow.Request{SprintID: sprintID})
	if err != nil {
		return nil, false, err
	}

	return &res.Sprint, res.IsCurrent(), nil
}

// AddComment adds a comment to a goal of the sprint.
func (c *Client) AddComment(ctx context.Context, sprintID int, goal GoalRef, author, text string) (*Comment, error) {
	return c.comment.Run(ctx, comment.Request{Action: comment.ActionAdd, SprintID: sprintID, Goal: goal, Author: author, Text: text})
}

// UpdateComment replaces the text of a goal comment.
func (c *Client) UpdateComment(ctx context.Context, sprintID int, goal GoalRef, commentID, text string) (*Comment, error) {
	return c.comment.Run(ctx, comment.Request{Action: comment.ActionUpdate, SprintID: sprintID, Goal: goal, CommentID: commentID, Text: text})
}

// DeleteComment removes a goal comment.
func (c *Client) DeleteComment(ctx context.Context, sprintID int, goal GoalRef, commentID string) error {
	_, err := c.comment.Run(ctx, comment.Request{Action: comment.ActionDelete, SprintID: sprintID, Goal: goal, CommentID: commentID})
	return err
}

// SaveAchievements replaces the achievements markdown of the sprint.
func (c *Client) SaveAchievements(ctx context.Context, sprintID int, markdown string) (*Sprint, error) {
	return c.notes.Run(ctx, notes.Request{SprintID: sprintID, Field: notes.FieldAchievements, Markdown: markdown})
}

// SaveNextSprintPlans replaces the next sprint plans markdown of the sprint.
func (c *Client) SaveNextSprintPlans(ctx context.Context, sprintID int, markdown string) (*Sprint, error) {
	return c.notes.Run(ctx, notes.Request{SprintID: sprintID, Field: notes.FieldNextSprintPlans, Markdown: markdown})
}

// CloseSprint closes the review of the sprint, it runs before any pending edit.
func (c *Client) CloseSprint(ctx context.Context, sprintID int) (*Sprint, error) {
	return c.sprint.Run(ctx, sprintlifecycle.Request{SprintID: sprintID, Action: sprintlifecycle.ActionClose})
}

// ReopenSprint reopens the review of the sprint and makes it the current one.
func (c *Client) ReopenSprint(ctx context.Context, sprintID int) (*Sprint, error) {
	return c.sprint.Run(ctx, sprintlifecycle.Request{SprintID: sprintID, Action: sprintlifecycle.ActionReopen})
}

// ListMedia lists the media files of the sprint.
func (c *Client) ListMedia(ctx context.Context, sprintID int) ([]MediaFile, error) {
	return c.media.List(ctx, sprintID)
}

// UploadMedia uploads a media file, replacing the one with the same name.
func (c *Client) UploadMedia(ctx context.Context, sprintID int, name string, data []byte) (*MediaFile, error) {
	return c.media.Upload(ctx, sprintID, name, data)
}

// DownloadMedia returns the content of a media file.
func (c *Client) DownloadMedia(ctx context.Context, sprintID int, name string) ([]byte, error) {
	return c.media.Download(ctx, sprintID, name)
}

// DeleteMedia removes a media file.
func (c *Client) DeleteMedia(ctx context.Context, sprintID int, name string) error {
	return c.media.Delete(ctx, sprintID, name)
}

// RenameMedia renames a media file.
func (c *Client) RenameMedia(ctx context.Context, sprintID int, from, to string) (*MediaFile, error) {
	return c.media.Rename(ctx, sprintID, from, to)
}

// QueueStatus returns the state of the write queue.
func (c *Client) QueueStatus() QueueStatus {
	return c.coord.Status()
}

// SubscribeQueue calls fn on every write queue change until unsubscribe is called.
func (c *Client) SubscribeQueue(fn func(QueueStatus)) (unsubscribe func()) {
	return c.coord.Subscribe(fn)
}
