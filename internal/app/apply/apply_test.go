package apply_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/reviewdata/internal/app/apply"
	"github.com/slok/reviewdata/internal/coordinator"
	"github.com/slok/reviewdata/internal/model"
	"github.com/slok/reviewdata/internal/operation"
	"github.com/slok/reviewdata/internal/storage/memory"
)

// recordingExecutor records the execution order before delegating.
type recordingExecutor struct {
	next  operation.Executor
	mu    sync.Mutex
	order []string
}

func (r *recordingExecutor) Execute(ctx context.Context, op operation.Op) (any, error) {
	r.mu.Lock()
	r.order = append(r.order, op.Type())
	r.mu.Unlock()
	return r.next.Execute(ctx, op)
}

func TestService_Run(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	store, err := memory.NewStore(memory.StoreConfig{})
	require.NoError(err)
	sprint, err := model.EncodeDocument(model.Sprint{
		ID:     3,
		Status: model.SprintStatusActive,
		Goals:  []model.Goal{{ID: 1, Title: "Search"}},
	})
	require.NoError(err)
	_, err = store.Write(ctx, model.SprintPath(3), sprint, "")
	require.NoError(err)

	d, err := operation.NewDispatcher(operation.DispatcherConfig{Store: store})
	require.NoError(err)
	exec := &recordingExecutor{next: d}
	coord, err := coordinator.New(coordinator.Config{SettleDelay: time.Millisecond})
	require.NoError(err)

	svc, err := apply.NewService(apply.ServiceConfig{Coordinator: coord, Executor: exec})
	require.NoError(err)

	comment := operation.AddComment{SprintID: 3, Goal: operation.GoalRef{GoalID: 1}, Author: "ana", Text: "ok"}
	results, err := svc.Run(ctx, apply.Request{Operations: []operation.Op{
		operation.SaveAchievements{SprintID: 3, Markdown: "- search v2"},
		comment,
		comment,
		operation.ReopenSprint{SprintID: 3},
		operation.DeleteMedia{SprintID: 3, Name: "missing.png"},
	}})
	require.NoError(err)
	require.Len(results, 5)

	assert.NoError(results[0].Err)
	assert.NoError(results[1].Err)
	assert.True(errors.Is(results[2].Err, coordinator.ErrDuplicate))
	assert.Empty(results[2].ID)
	assert.NoError(results[3].Err)
	assert.True(errors.Is(results[4].Err, model.ErrNotFound))

	// The first queued operation may start before the rest are queued, the
	// critical reopen jumps ahead of every other pending one.
	exec.mu.Lock()
	order := exec.order
	exec.mu.Unlock()
	require.Len(order, 4)
	if order[0] == operation.TypeSaveAchievements {
		assert.Equal([]string{operation.TypeSaveAchievements, operation.TypeReopenSprint, operation.TypeAddComment, operation.TypeDeleteMedia}, order)
	} else {
		assert.Equal([]string{operation.TypeReopenSprint, operation.TypeSaveAchievements, operation.TypeAddComment, operation.TypeDeleteMedia}, order)
	}

	doc, err := store.Fetch(ctx, model.CurrentSprintPath)
	require.NoError(err)
	var pointer model.CurrentSprint
	require.NoError(json.Unmarshal(doc.Content, &pointer))
	assert.Equal(model.CurrentSprint{CurrentSprintID: 3, IsActive: true}, pointer)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := apply.NewService(apply.ServiceConfig{})
	assert.Error(t, err)
}
