package lib_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/reviewdata/pkg/lib"
)

func TestNew(t *testing.T) {
	tests := map[string]struct {
		config lib.Config
		expErr bool
		expIs  error
	}{
		"Memory backend should work.": {
			config: lib.Config{Backend: lib.BackendMemory},
		},

		"SQLite backend should work.": {
			config: lib.Config{Backend: lib.BackendSQLite, DBPath: filepath.Join(t.TempDir(), "test.db")},
		},

		"GitHub backend without repository should fail.": {
			config: lib.Config{},
			expErr: true,
		},

		"Unknown backend should fail.": {
			config: lib.Config{Backend: "s3"},
			expErr: true,
			expIs:  lib.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			client, err := lib.New(context.Background(), test.config)

			if test.expErr {
				assert.Error(err)
				if test.expIs != nil {
					assert.True(errors.Is(err, test.expIs), "expected error %v, got: %v", test.expIs, err)
				}
				return
			}

			assert.NoError(err)
			assert.NoError(client.Close())
		})
	}
}

func TestClientOnEmptyStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	client, err := lib.New(ctx, lib.Config{Backend: lib.BackendMemory})
	require.NoError(t, err)
	defer client.Close()

	_, _, err = client.GetSprint(ctx, 0)
	assert.True(errors.Is(err, lib.ErrNotFound))

	_, err = client.AddComment(ctx, 1, lib.GoalRef{GoalID: 1}, "ana", "hi")
	assert.True(errors.Is(err, lib.ErrNotFound))

	_, err = client.ReopenSprint(ctx, 1)
	assert.True(errors.Is(err, lib.ErrNotFound))

	files, err := client.ListMedia(ctx, 1)
	assert.NoError(err)
	assert.Empty(files)

	assert.Nil(client.QueueStatus().Current)
	assert.Zero(client.QueueStatus().QueueLength)
}

func TestClientMediaAndSprintFlow(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	client, err := lib.New(ctx, lib.Config{
		Backend:     lib.BackendSQLite,
		DBPath:      filepath.Join(t.TempDir(), "test.db"),
		SettleDelay: time.Millisecond,
	})
	require.NoError(err)
	defer client.Close()

	var statuses atomic.Int32
	unsubscribe := client.SubscribeQueue(func(lib.QueueStatus) { statuses.Add(1) })
	defer unsubscribe()

	mf, err := client.UploadMedia(ctx, 5, "demo.gif", []byte("gif"))
	require.NoError(err)
	assert.Equal("media/sprint-5/demo.gif", mf.Path)

	mf, err = client.RenameMedia(ctx, 5, "demo.gif", "final.gif")
	require.NoError(err)
	assert.Equal("final.gif", mf.Name)

	data, err := client.DownloadMedia(ctx, 5, "final.gif")
	require.NoError(err)
	assert.Equal([]byte("gif"), data)

	require.NoError(client.DeleteMedia(ctx, 5, "final.gif"))
	err = client.DeleteMedia(ctx, 5, "final.gif")
	assert.True(errors.Is(err, lib.ErrNotFound))

	assert.Eventually(func() bool { return statuses.Load() > 0 }, time.Second, 5*time.Millisecond)
}

func TestNewSQLiteDefaultsToHomeDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	client, err := lib.New(context.Background(), lib.Config{Backend: lib.BackendSQLite, MaxRetries: lib.NoRetries})
	require.NoError(t, err)
	defer client.Close()

	_, err = os.Stat(filepath.Join(home, ".reviewdata", "reviewdata.db"))
	assert.NoError(t, err)
}
