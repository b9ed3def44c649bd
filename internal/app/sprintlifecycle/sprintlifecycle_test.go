package sprintlifecycle_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/reviewdata/internal/app/sprintlifecycle"
	"github.com/slok/reviewdata/internal/coordinator"
	"github.com/slok/reviewdata/internal/model"
	"github.com/slok/reviewdata/internal/operation"
	"github.com/slok/reviewdata/internal/storage/memory"
)

func TestService_Run(t *testing.T) {
	tests := map[string]struct {
		status     model.SprintStatus
		req        sprintlifecycle.Request
		expStatus  model.SprintStatus
		expPointer model.CurrentSprint
		expErr     error
	}{
		"closing an active sprint should close it and deactivate the pointer": {
			status:     model.SprintStatusActive,
			req:        sprintlifecycle.Request{SprintID: 5, Action: sprintlifecycle.ActionClose},
			expStatus:  model.SprintStatusClosed,
			expPointer: model.CurrentSprint{CurrentSprintID: 5, IsActive: false},
		},
		"reopening a closed sprint should activate it and the pointer": {
			status:     model.SprintStatusClosed,
			req:        sprintlifecycle.Request{SprintID: 5, Action: sprintlifecycle.ActionReopen},
			expStatus:  model.SprintStatusActive,
			expPointer: model.CurrentSprint{CurrentSprintID: 5, IsActive: true},
		},
		"closing a missing sprint should fail": {
			status: model.SprintStatusActive,
			req:    sprintlifecycle.Request{SprintID: 6, Action: sprintlifecycle.ActionClose},
			expErr: model.ErrNotFound,
		},
		"invalid sprint ID should fail": {
			req:    sprintlifecycle.Request{SprintID: 0, Action: sprintlifecycle.ActionClose},
			expErr: model.ErrNotValid,
		},
		"unknown action should fail": {
			req:    sprintlifecycle.Request{SprintID: 5, Action: "archive"},
			expErr: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			ctx := context.Background()

			store, err := memory.NewStore(memory.StoreConfig{})
			require.NoError(err)
			sprint, err := model.EncodeDocument(model.Sprint{ID: 5, Name: "Sprint 5", Status: test.status})
			require.NoError(err)
			_, err = store.Write(ctx, model.SprintPath(5), sprint, "")
			require.NoError(err)
			_, err = store.Write(ctx, model.CurrentSprintPath, []byte(`{"currentSprintId":5,"isActive":true}`), "")
			require.NoError(err)

			d, err := operation.NewDispatcher(operation.DispatcherConfig{Store: store})
			require.NoError(err)
			coord, err := coordinator.New(coordinator.Config{SettleDelay: time.Millisecond})
			require.NoError(err)

			svc, err := sprintlifecycle.NewService(sprintlifecycle.ServiceConfig{Coordinator: coord, Executor: d})
			require.NoError(err)

			got, err := svc.Run(ctx, test.req)
			if test.expErr != nil {
				assert.True(errors.Is(err, test.expErr), "got: %v", err)
				return
			}
			require.NoError(err)
			assert.Equal(test.expStatus, got.Status)

			doc, err := store.Fetch(ctx, model.CurrentSprintPath)
			require.NoError(err)
			var pointer model.CurrentSprint
			require.NoError(json.Unmarshal(doc.Content, &pointer))
			assert.Equal(test.expPointer, pointer)
		})
	}
}
