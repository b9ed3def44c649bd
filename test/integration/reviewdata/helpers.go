package reviewdata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slok/reviewdata/internal/model"
	"github.com/slok/reviewdata/internal/storage/sqlite"
	"github.com/slok/reviewdata/test/integration/testutils"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Binary string
}

func (c *Config) defaults() error {
	if c.Binary == "" {
		c.Binary = "reviewdata"
	}

	// go test changes the CWD to the test package directory.
	if !filepath.IsAbs(c.Binary) {
		return fmt.Errorf("REVIEWDATA_INTEGRATION_BINARY must be an absolute path, got %q", c.Binary)
	}
	if _, err := os.Stat(c.Binary); err != nil {
		return fmt.Errorf("reviewdata binary not found at %q: %w", c.Binary, err)
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the config is invalid or the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "REVIEWDATA_INTEGRATION"
		envBinary     = "REVIEWDATA_INTEGRATION_BINARY"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{Binary: os.Getenv(envBinary)}
	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// Run runs a reviewdata command against the SQLite database.
func Run(ctx context.Context, config Config, dbPath string, args ...string) (stdout, stderr []byte, err error) {
	args = append([]string{"--backend", "sqlite", "--db-path", dbPath, "--settle-delay", "10ms"}, args...)
	return testutils.RunReviewDataArgs(ctx, nil, config.Binary, args, true)
}

// SeedSprint stores a sprint document in the SQLite database and points the
// current sprint to it.
func SeedSprint(ctx context.Context, t *testing.T, dbPath string, sprint model.Sprint) {
	t.Helper()

	store, err := sqlite.NewStore(ctx, sqlite.StoreConfig{DBPath: dbPath})
	require.NoError(t, err)
	defer store.Close()

	data, err := model.EncodeDocument(sprint)
	require.NoError(t, err)
	_, err = store.Write(ctx, model.SprintPath(sprint.ID), data, "")
	require.NoError(t, err)

	data, err = model.EncodeDocument(model.CurrentSprint{CurrentSprintID: sprint.ID, IsActive: !sprint.IsClosed()})
	require.NoError(t, err)
	_, err = store.Write(ctx, model.CurrentSprintPath, data, "")
	require.NoError(t, err)
}
