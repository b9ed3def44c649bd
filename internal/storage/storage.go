package storage

import (
	"context"

	"github.com/slok/reviewdata/internal/model"
)

// DocumentStore is the path addressed, versioned document store the review data lives in.
//
// Every update or delete requires the version token obtained on the last fetch,
// stores reject stale tokens with an error wrapping model.ErrConflict.
type DocumentStore interface {
	// Fetch returns the document at path, or nil without error if it doesn't exist.
	Fetch(ctx context.Context, path string) (*model.Document, error)
	// Write creates the document when version is empty, updates it otherwise. Returns the new version.
	Write(ctx context.Context, path string, content []byte, version string) (string, error)
	// Delete removes the document at path.
	Delete(ctx context.Context, path string, version string) error
	// List returns the children of a directory, an absent directory is an empty list.
	List(ctx context.Context, path string) ([]model.Entry, error)
	// UploadBinary is the same as Write for opaque payloads.
	UploadBinary(ctx context.Context, path string, data []byte, version string) (string, error)
	// DownloadBinary returns the raw bytes at path, fails with model.ErrNotFound if missing.
	DownloadBinary(ctx context.Context, path string) ([]byte, error)
}
