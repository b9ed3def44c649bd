package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/reviewdata/internal/log"
	"github.com/slok/reviewdata/internal/model"
	"github.com/slok/reviewdata/internal/storage"
	"github.com/slok/reviewdata/internal/storage/sqlite/migrations"
)

// StoreConfig is the configuration for the SQLite document store.
type StoreConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *StoreConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Store is a SQLite implementation of storage.DocumentStore, used as a local
// stand in of the data repository.
type Store struct {
	db     *sql.DB
	logger log.Logger
}

// NewStore creates a new SQLite document store.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	schema, err := migrations.NewSchema(migrations.SchemaConfig{DB: db, Logger: cfg.Logger})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create document schema migrator: %w", err)
	}
	version, err := schema.Ensure(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	cfg.Logger.Debugf("SQLite document store initialized at %s (schema v%d)", cfg.DBPath, version)

	return &Store{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func cleanPath(p string) string { return strings.Trim(path.Clean("/"+p), "/") }

// Fetch returns the document at path or nil if missing.
func (s *Store) Fetch(ctx context.Context, p string) (*model.Document, error) {
	p = cleanPath(p)

	var doc model.Document
	query := `SELECT path, content, version FROM documents WHERE path = ?`
	err := s.db.QueryRowContext(ctx, query, p).Scan(&doc.Path, &doc.Content, &doc.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not query document %s: %w", p, err)
	}

	return &doc, nil
}

// Write creates or updates a document checking the version inside a transaction.
func (s *Store) Write(ctx context.Context, p string, content []byte, version string) (string, error) {
	p = cleanPath(p)
	if content == nil {
		content = []byte{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // Rollback is safe to call after Commit

	current, exists, err := currentVersion(ctx, tx, p)
	if err != nil {
		return "", err
	}

	switch {
	case exists && version == "":
		return "", fmt.Errorf("creating %s: document exists: %w", p, model.ErrConflict)
	case exists && version != current:
		return "", fmt.Errorf("writing %s: version %s is stale: %w", p, version, model.ErrConflict)
	case !exists && version != "":
		return "", fmt.Errorf("writing %s: document was removed: %w", p, model.ErrConflict)
	}

	newVersion := storage.BlobVersion(content)
	query := `
		INSERT INTO documents (path, content, version, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET content = excluded.content, version = excluded.version, updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, query, p, content, newVersion, time.Now().UTC().Unix()); err != nil {
		return "", fmt.Errorf("could not write document %s: %w", p, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("could not commit transaction: %w", err)
	}

	s.logger.Debugf("Wrote %s (version %s)", p, newVersion)
	return newVersion, nil
}

// Delete removes a document checking the version.
func (s *Store) Delete(ctx context.Context, p string, version string) error {
	p = cleanPath(p)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, exists, err := currentVersion(ctx, tx, p)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("deleting %s: %w", p, model.ErrNotFound)
	}
	if current != version {
		return fmt.Errorf("deleting %s: version %s is stale: %w", p, version, model.ErrConflict)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, p); err != nil {
		return fmt.Errorf("could not delete document %s: %w", p, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	s.logger.Debugf("Deleted %s", p)
	return nil
}

// List returns the direct children of a directory.
func (s *Store) List(ctx context.Context, p string) ([]model.Entry, error) {
	p = cleanPath(p)
	prefix := p + "/"
	if p == "" {
		prefix = ""
	}

	query := `SELECT path, version, length(content) FROM documents WHERE substr(path, 1, ?) = ?`
	rows, err := s.db.QueryContext(ctx, query, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("could not list documents: %w", err)
	}
	defer rows.Close()

	dirs := map[string]bool{}
	entries := []model.Entry{}
	for rows.Next() {
		var fp, version string
		var size int64
		if err := rows.Scan(&fp, &version, &size); err != nil {
			return nil, fmt.Errorf("could not scan document: %w", err)
		}

		rest := strings.TrimPrefix(fp, prefix)
		if name, _, nested := strings.Cut(rest, "/"); nested {
			if !dirs[name] {
				dirs[name] = true
				entries = append(entries, model.Entry{Name: name, Path: prefix + name, Kind: model.EntryKindDir})
			}
			continue
		}
		entries = append(entries, model.Entry{
			Name:    rest,
			Path:    fp,
			Version: version,
			Size:    size,
			Kind:    model.EntryKindFile,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// UploadBinary stores raw bytes, same semantics as Write.
func (s *Store) UploadBinary(ctx context.Context, p string, data []byte, version string) (string, error) {
	return s.Write(ctx, p, data, version)
}

// DownloadBinary returns the raw bytes of a document.
func (s *Store) DownloadBinary(ctx context.Context, p string) ([]byte, error) {
	doc, err := s.Fetch(ctx, p)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%s: %w", p, model.ErrNotFound)
	}

	return doc.Content, nil
}

func currentVersion(ctx context.Context, tx *sql.Tx, p string) (version string, exists bool, err error) {
	err = tx.QueryRowContext(ctx, `SELECT version FROM documents WHERE path = ?`, p).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("could not query document version %s: %w", p, err)
	}

	return version, true, nil
}
