// Package storagetest has the behavior checks every storage.DocumentStore implementation must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/reviewdata/internal/model"
	"github.com/slok/reviewdata/internal/storage"
)

// TestDocumentStore runs the document store behavior checks. newStore must return an empty store.
func TestDocumentStore(t *testing.T, newStore func(t *testing.T) storage.DocumentStore) {
	tests := map[string]struct {
		actions func(ctx context.Context, t *testing.T, s storage.DocumentStore)
	}{
		"Fetching a missing document should return nil.": {
			actions: func(ctx context.Context, t *testing.T, s storage.DocumentStore) {
				doc, err := s.Fetch(ctx, "sprints/sprint-1.json")
				require.NoError(t, err)
				assert.Nil(t, doc)
			},
		},

		"Creating and updating with the fetched version should work.": {
			actions: func(ctx context.Context, t *testing.T, s storage.DocumentStore) {
				v1, err := s.Write(ctx, "sprints/sprint-1.json", []byte(`{"id":1}`), "")
				require.NoError(t, err)
				require.NotEmpty(t, v1)

				doc, err := s.Fetch(ctx, "sprints/sprint-1.json")
				require.NoError(t, err)
				require.NotNil(t, doc)
				assert.Equal(t, v1, doc.Version)
				assert.Equal(t, `{"id":1}`, string(doc.Content))

				v2, err := s.Write(ctx, "sprints/sprint-1.json", []byte(`{"id":1,"x":2}`), doc.Version)
				require.NoError(t, err)
				assert.NotEqual(t, v1, v2)
			},
		},

		"Updating with a stale version should conflict.": {
			actions: func(ctx context.Context, t *testing.T, s storage.DocumentStore) {
				v1, err := s.Write(ctx, "current-sprint.json", []byte(`{"currentSprintId":1}`), "")
				require.NoError(t, err)
				_, err = s.Write(ctx, "current-sprint.json", []byte(`{"currentSprintId":2}`), v1)
				require.NoError(t, err)

				_, err = s.Write(ctx, "current-sprint.json", []byte(`{"currentSprintId":3}`), v1)
				assert.True(t, errors.Is(err, model.ErrConflict), "got: %v", err)
			},
		},

		"Creating an existing document should conflict.": {
			actions: func(ctx context.Context, t *testing.T, s storage.DocumentStore) {
				_, err := s.Write(ctx, "current-sprint.json", []byte(`{}`), "")
				require.NoError(t, err)

				_, err = s.Write(ctx, "current-sprint.json", []byte(`{}`), "")
				assert.True(t, errors.Is(err, model.ErrConflict), "got: %v", err)
			},
		},

		"Deleting should require the current version.": {
			actions: func(ctx context.Context, t *testing.T, s storage.DocumentStore) {
				v, err := s.UploadBinary(ctx, "media/sprint-1/a.png", []byte{1, 2, 3}, "")
				require.NoError(t, err)

				err = s.Delete(ctx, "media/sprint-1/a.png", "0000000000000000000000000000000000000000")
				assert.True(t, errors.Is(err, model.ErrConflict), "got: %v", err)

				require.NoError(t, s.Delete(ctx, "media/sprint-1/a.png", v))

				err = s.Delete(ctx, "media/sprint-1/a.png", v)
				assert.True(t, errors.Is(err, model.ErrNotFound), "got: %v", err)
			},
		},

		"Listing should return the direct children.": {
			actions: func(ctx context.Context, t *testing.T, s storage.DocumentStore) {
				_, err := s.UploadBinary(ctx, "media/sprint-1/a.png", []byte{1}, "")
				require.NoError(t, err)
				_, err = s.UploadBinary(ctx, "media/sprint-1/b.png", []byte{1, 2}, "")
				require.NoError(t, err)
				_, err = s.UploadBinary(ctx, "media/sprint-2/c.png", []byte{1}, "")
				require.NoError(t, err)

				entries, err := s.List(ctx, "media/sprint-1")
				require.NoError(t, err)
				require.Len(t, entries, 2)
				assert.Equal(t, "a.png", entries[0].Name)
				assert.Equal(t, "b.png", entries[1].Name)
				assert.Equal(t, int64(2), entries[1].Size)
				assert.Equal(t, model.EntryKindFile, entries[1].Kind)

				entries, err = s.List(ctx, "media")
				require.NoError(t, err)
				require.Len(t, entries, 2)
				assert.Equal(t, model.EntryKindDir, entries[0].Kind)
			},
		},

		"Listing a missing directory should return empty.": {
			actions: func(ctx context.Context, t *testing.T, s storage.DocumentStore) {
				entries, err := s.List(ctx, "media/sprint-404")
				require.NoError(t, err)
				assert.Empty(t, entries)
			},
		},

		"Binary round trip should keep the bytes.": {
			actions: func(ctx context.Context, t *testing.T, s storage.DocumentStore) {
				data := []byte{0x00, 0xff, 0x10, 0x80}
				_, err := s.UploadBinary(ctx, "media/sprint-1/raw.bin", data, "")
				require.NoError(t, err)

				got, err := s.DownloadBinary(ctx, "media/sprint-1/raw.bin")
				require.NoError(t, err)
				assert.Equal(t, data, got)

				_, err = s.DownloadBinary(ctx, "media/sprint-1/missing.bin")
				assert.True(t, errors.Is(err, model.ErrNotFound), "got: %v", err)
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			test.actions(context.Background(), t, newStore(t))
		})
	}
}
