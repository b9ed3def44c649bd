package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/slok/reviewdata/internal/log"
)

//go:embed sql/*.sql
var schemaFiles embed.FS

// SchemaConfig is the configuration of the document schema migrator.
type SchemaConfig struct {
	DB     *sql.DB
	Logger log.Logger
}

func (c *SchemaConfig) defaults() error {
	if c.DB == nil {
		return fmt.Errorf("db is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite.Schema"})

	return nil
}

// Schema keeps the documents table of the local store at the latest version.
type Schema struct {
	db     *sql.DB
	logger log.Logger
}

// NewSchema returns a document schema migrator.
func NewSchema(cfg SchemaConfig) (*Schema, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Schema{db: cfg.DB, logger: cfg.Logger}, nil
}

// Ensure applies the pending schema migrations and returns the resulting schema
// version. A database written by a newer binary (dirty or unknown version) fails.
func (s *Schema) Ensure(ctx context.Context) (uint, error) {
	m, release, err := s.migrate()
	if err != nil {
		return 0, err
	}
	defer release()

	before, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("could not read document schema version: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("could not migrate document schema: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("could not read document schema version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("document schema version %d is dirty", version)
	}

	if version != before {
		s.logger.Infof("Document schema migrated from version %d to %d", before, version)
	} else {
		s.logger.Debugf("Document schema up to date at version %d", version)
	}

	return version, nil
}

func (s *Schema) migrate() (*migrate.Migrate, func(), error) {
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create sqlite migration driver: %w", err)
	}

	src, err := iofs.New(schemaFiles, "sql")
	if err != nil {
		return nil, nil, fmt.Errorf("could not load document schema files: %w", err)
	}
	release := func() {
		if err := src.Close(); err != nil {
			s.logger.Warningf("could not close document schema files: %s", err)
		}
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("could not create document schema migration: %w", err)
	}

	return m, release, nil
}
