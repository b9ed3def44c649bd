package memory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/slok/reviewdata/internal/log"
	"github.com/slok/reviewdata/internal/model"
	"github.com/slok/reviewdata/internal/storage"
)

// StoreConfig is the configuration for the memory document store.
type StoreConfig struct {
	Logger log.Logger
}

func (c *StoreConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Store is an in-memory implementation of storage.DocumentStore.
type Store struct {
	files  map[string][]byte
	mu     sync.RWMutex
	logger log.Logger
}

// NewStore creates a new memory document store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Store{
		files:  make(map[string][]byte),
		logger: cfg.Logger,
	}, nil
}

func cleanPath(p string) string { return strings.Trim(path.Clean("/"+p), "/") }

// Fetch returns the document at path or nil if missing.
func (s *Store) Fetch(ctx context.Context, p string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p = cleanPath(p)
	data, ok := s.files[p]
	if !ok {
		return nil, nil
	}

	return &model.Document{
		Path:    p,
		Content: copyBytes(data),
		Version: storage.BlobVersion(data),
	}, nil
}

// Write creates or updates a document checking the version.
func (s *Store) Write(ctx context.Context, p string, content []byte, version string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p = cleanPath(p)
	current, exists := s.files[p]
	switch {
	case exists && version == "":
		return "", fmt.Errorf("creating %s: document exists: %w", p, model.ErrConflict)
	case exists && version != storage.BlobVersion(current):
		return "", fmt.Errorf("writing %s: version %s is stale: %w", p, version, model.ErrConflict)
	case !exists && version != "":
		return "", fmt.Errorf("writing %s: document was removed: %w", p, model.ErrConflict)
	}

	s.files[p] = copyBytes(content)
	v := storage.BlobVersion(content)
	s.logger.Debugf("Wrote %s (version %s)", p, v)

	return v, nil
}

// Delete removes a document checking the version.
func (s *Store) Delete(ctx context.Context, p string, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p = cleanPath(p)
	current, exists := s.files[p]
	if !exists {
		return fmt.Errorf("deleting %s: %w", p, model.ErrNotFound)
	}
	if version != storage.BlobVersion(current) {
		return fmt.Errorf("deleting %s: version %s is stale: %w", p, version, model.ErrConflict)
	}

	delete(s.files, p)
	s.logger.Debugf("Deleted %s", p)

	return nil
}

// List returns the direct children of a directory.
func (s *Store) List(ctx context.Context, p string) ([]model.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p = cleanPath(p)
	prefix := p + "/"
	if p == "" {
		prefix = ""
	}

	dirs := map[string]bool{}
	entries := []model.Entry{}
	for fp, data := range s.files {
		if !strings.HasPrefix(fp, prefix) {
			continue
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
			Version: storage.BlobVersion(data),
			Size:    int64(len(data)),
			Kind:    model.EntryKindFile,
		})
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

func copyBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
