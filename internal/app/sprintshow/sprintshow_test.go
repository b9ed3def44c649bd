package sprintshow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/reviewdata/internal/app/sprintshow"
	"github.com/slok/reviewdata/internal/log"
	"github.com/slok/reviewdata/internal/model"
	"github.com/slok/reviewdata/internal/storage/storagemock"
)

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		config sprintshow.ServiceConfig
		expErr bool
	}{
		"valid config should create service": {
			config: sprintshow.ServiceConfig{Store: &storagemock.MockDocumentStore{}, Logger: log.Noop},
		},
		"missing store should fail": {
			config: sprintshow.ServiceConfig{Logger: log.Noop},
			expErr: true,
		},
		"nil logger should default to noop": {
			config: sprintshow.ServiceConfig{Store: &storagemock.MockDocumentStore{}},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			svc, err := sprintshow.NewService(test.config)

			if test.expErr {
				require.Error(err)
				require.Nil(svc)
			} else {
				require.NoError(err)
				require.NotNil(svc)
			}
		})
	}
}

func TestService_Run(t *testing.T) {
	pointer := &model.Document{Path: model.CurrentSprintPath, Content: []byte(`{"currentSprintId":12,"isActive":true}`), Version: "p1"}
	sprint12 := &model.Document{Path: "sprints/sprint-12.json", Content: []byte(`{"id":12,"name":"Sprint 12","status":"active"}`), Version: "s1"}
	sprint11 := &model.Document{Path: "sprints/sprint-11.json", Content: []byte(`{"id":11,"name":"Sprint 11","status":"closed"}`), Version: "s2"}

	tests := map[string]struct {
		mock       func(m *storagemock.MockDocumentStore)
		req        sprintshow.Request
		expName    string
		expCurrent bool
		expErr     error
	}{
		"no sprint ID should show the current sprint": {
			mock: func(m *storagemock.MockDocumentStore) {
				m.On("Fetch", mock.Anything, model.CurrentSprintPath).Once().Return(pointer, nil)
				m.On("Fetch", mock.Anything, "sprints/sprint-12.json").Once().Return(sprint12, nil)
			},
			expName:    "Sprint 12",
			expCurrent: true,
		},
		"a sprint ID should show that sprint": {
			mock: func(m *storagemock.MockDocumentStore) {
				m.On("Fetch", mock.Anything, model.CurrentSprintPath).Once().Return(pointer, nil)
				m.On("Fetch", mock.Anything, "sprints/sprint-11.json").Once().Return(sprint11, nil)
			},
			req:     sprintshow.Request{SprintID: 11},
			expName: "Sprint 11",
		},
		"no sprint ID without pointer should fail": {
			mock: func(m *storagemock.MockDocumentStore) {
				m.On("Fetch", mock.Anything, model.CurrentSprintPath).Once().Return(nil, nil)
			},
			expErr: model.ErrNotFound,
		},
		"missing sprint should fail": {
			mock: func(m *storagemock.MockDocumentStore) {
				m.On("Fetch", mock.Anything, model.CurrentSprintPath).Once().Return(nil, nil)
				m.On("Fetch", mock.Anything, "sprints/sprint-99.json").Once().Return(nil, nil)
			},
			req:    sprintshow.Request{SprintID: 99},
			expErr: model.ErrNotFound,
		},
		"malformed sprint should fail": {
			mock: func(m *storagemock.MockDocumentStore) {
				m.On("Fetch", mock.Anything, model.CurrentSprintPath).Once().Return(nil, nil)
				m.On("Fetch", mock.Anything, "sprints/sprint-3.json").Once().Return(&model.Document{Content: []byte("{")}, nil)
			},
			req:    sprintshow.Request{SprintID: 3},
			expErr: model.ErrNotValid,
		},
		"store errors should be returned": {
			mock: func(m *storagemock.MockDocumentStore) {
				m.On("Fetch", mock.Anything, model.CurrentSprintPath).Once().Return(nil, model.ErrPermissionDenied)
			},
			expErr: model.ErrPermissionDenied,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			store := storagemock.NewMockDocumentStore(t)
			test.mock(store)

			svc, err := sprintshow.NewService(sprintshow.ServiceConfig{Store: store})
			require.NoError(err)

			res, err := svc.Run(context.Background(), test.req)
			if test.expErr != nil {
				assert.True(errors.Is(err, test.expErr), "got: %v", err)
				return
			}
			require.NoError(err)
			assert.Equal(test.expName, res.Sprint.Name)
			assert.Equal(test.expCurrent, res.IsCurrent())
		})
	}
}
