package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/reviewdata/internal/coordinator"
	"github.com/slok/reviewdata/internal/log"
	"github.com/slok/reviewdata/internal/operation"
	"github.com/slok/reviewdata/internal/printer"
	"github.com/slok/reviewdata/internal/storage"
	"github.com/slok/reviewdata/internal/storage/github"
	"github.com/slok/reviewdata/internal/storage/memory"
	"github.com/slok/reviewdata/internal/storage/sqlite"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

// Store backends.
const (
	BackendGitHub = "github"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string

	Backend         string
	Repo            string
	Token           string
	Branch          string
	APIURL          string
	DBPath          string
	SettleDelay     time.Duration
	RequestInterval time.Duration
	MaxRetries      int

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	app.Flag("backend", "Document store backend.").Default(BackendGitHub).EnumVar(&c.Backend, BackendGitHub, BackendSQLite, BackendMemory)
	app.Flag("repo", "GitHub data repository (owner/name).").StringVar(&c.Repo)
	app.Flag("token", "GitHub token.").Envar("GITHUB_TOKEN").StringVar(&c.Token)
	app.Flag("branch", "GitHub data repository branch, empty uses the default branch.").StringVar(&c.Branch)
	app.Flag("api-url", "GitHub API URL.").Default("https://api.github.com").StringVar(&c.APIURL)

	defaultDBPath := filepath.Join(homedir.HomeDir(), ".reviewdata", "reviewdata.db")
	app.Flag("db-path", "Path to the SQLite database file (sqlite backend).").Envar("REVIEWDATA_DB_PATH").Default(defaultDBPath).StringVar(&c.DBPath)

	app.Flag("settle-delay", "Wait after a successful write before running the next one.").Default("500ms").DurationVar(&c.SettleDelay)
	app.Flag("request-interval", "Minimum spacing between GitHub API requests.").Default("300ms").DurationVar(&c.RequestInterval)
	app.Flag("max-retries", "Retries of an operation that keeps conflicting, 0 disables them.").Default("7").IntVar(&c.MaxRetries)

	return c
}

// newStore returns the document store of the selected backend and its closer.
func (r *RootCommand) newStore(ctx context.Context) (storage.DocumentStore, func() error, error) {
	noop := func() error { return nil }

	switch r.Backend {
	case BackendSQLite:
		s, err := sqlite.NewStore(ctx, sqlite.StoreConfig{DBPath: r.DBPath, Logger: r.Logger})
		if err != nil {
			return nil, nil, fmt.Errorf("could not create sqlite store: %w", err)
		}
		return s, s.Close, nil
	case BackendMemory:
		s, err := memory.NewStore(memory.StoreConfig{Logger: r.Logger})
		if err != nil {
			return nil, nil, fmt.Errorf("could not create memory store: %w", err)
		}
		return s, noop, nil
	default:
		s, err := github.NewStore(github.StoreConfig{
			Repo:            r.Repo,
			Token:           r.Token,
			Branch:          r.Branch,
			APIURL:          r.APIURL,
			RequestInterval: r.RequestInterval,
			Logger:          r.Logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("could not create github store: %w", err)
		}
		return s, noop, nil
	}
}

// writer has the dependencies of the commands that mutate review data.
type writer struct {
	store      storage.DocumentStore
	dispatcher *operation.Dispatcher
	coord      *coordinator.Coordinator
	close      func() error
}

func (r *RootCommand) newWriter(ctx context.Context) (*writer, error) {
	store, closeStore, err := r.newStore(ctx)
	if err != nil {
		return nil, err
	}

	d, err := operation.NewDispatcher(operation.DispatcherConfig{Store: store, Logger: r.Logger})
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("could not create dispatcher: %w", err)
	}

	maxRetries, err := coordinatorMaxRetries(r.MaxRetries)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	coord, err := coordinator.New(coordinator.Config{
		SettleDelay: r.SettleDelay,
		MaxRetries:  maxRetries,
		Logger:      r.Logger,
	})
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("could not create coordinator: %w", err)
	}

	coord.Subscribe(func(st coordinator.Status) {
		if st.Current != nil {
			r.Logger.Debugf("Queue: running %s (%s), %d pending", st.Current.Type, st.Current.ID, st.QueueLength)
		}
	})

	return &writer{store: store, dispatcher: d, coord: coord, close: closeStore}, nil
}

// coordinatorMaxRetries maps the --max-retries flag to the coordinator setting. The flag
// carries its own default, so zero disables the retries.
func coordinatorMaxRetries(flag int) (int, error) {
	switch {
	case flag < 0:
		return 0, fmt.Errorf("max retries can't be negative: %d", flag)
	case flag == 0:
		return coordinator.NoRetries, nil
	default:
		return flag, nil
	}
}

func newPrinter(format string, w io.Writer) printer.Printer {
	if format == "json" {
		return printer.NewJSONPrinter(w)
	}
	return printer.NewTablePrinter(w)
}

// parseGoalRef parses goal references like "3", "G3" (main goal) or "S3" (side goal).
func parseGoalRef(s string) (operation.GoalRef, error) {
	ref := operation.GoalRef{}
	id := s
	switch {
	case strings.HasPrefix(strings.ToUpper(s), "S"):
		ref.SideGoal = true
		id = s[1:]
	case strings.HasPrefix(strings.ToUpper(s), "G"):
		id = s[1:]
	}

	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 {
		return ref, fmt.Errorf("invalid goal %q, use the goal ID, G<id> or S<id> for side goals", s)
	}
	ref.GoalID = n

	return ref, nil
}

// readInput reads a file, "-" reads the standard input.
func (r *RootCommand) readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(r.Stdin)
	}

	return os.ReadFile(path)
}
