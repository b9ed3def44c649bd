package operation_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/reviewdata/internal/model"
	"github.com/slok/reviewdata/internal/operation"
	"github.com/slok/reviewdata/internal/storage/memory"
)

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

const sprint42 = `{
  "id": 42,
  "name": "Sprint 42",
  "status": "active",
  "startDate": "2026-03-02",
  "endDate": "2026-03-13",
  "goals": [
    {"id": 1, "title": "Payments API", "client": null, "tag": "G1", "comments": [
      {"id": "c1", "author": "ana", "text": "looks good", "createdAt": "2026-03-10T09:00:00Z"}
    ]}
  ],
  "sideGoals": [
    {"id": 1, "title": "Docs", "client": null, "tag": "S1", "comments": []}
  ],
  "achievements": "",
  "nextSprintPlans": "",
  "closedAt": null,
  "jiraBaseUrl": "https://jira.example.com"
}`

func newSeededStore(t *testing.T, docs map[string]string) *memory.Store {
	t.Helper()

	s, err := memory.NewStore(memory.StoreConfig{})
	require.NoError(t, err)
	for p, content := range docs {
		_, err := s.Write(context.Background(), p, []byte(content), "")
		require.NoError(t, err)
	}

	return s
}

func newTestDispatcher(t *testing.T, store *memory.Store) *operation.Dispatcher {
	t.Helper()

	d, err := operation.NewDispatcher(operation.DispatcherConfig{
		Store: store,
		Now:   func() time.Time { return testNow },
		NewID: func() string { return "new-id" },
	})
	require.NoError(t, err)
	return d
}

func readSprint(t *testing.T, store *memory.Store, id int) model.Sprint {
	t.Helper()

	doc, err := store.Fetch(context.Background(), model.SprintPath(id))
	require.NoError(t, err)
	require.NotNil(t, doc)

	var s model.Sprint
	require.NoError(t, json.Unmarshal(doc.Content, &s))
	return s
}

func readCurrentSprint(t *testing.T, store *memory.Store) *model.CurrentSprint {
	t.Helper()

	doc, err := store.Fetch(context.Background(), model.CurrentSprintPath)
	require.NoError(t, err)
	if doc == nil {
		return nil
	}

	var cs model.CurrentSprint
	require.NoError(t, json.Unmarshal(doc.Content, &cs))
	return &cs
}

func TestNewDispatcher(t *testing.T) {
	_, err := operation.NewDispatcher(operation.DispatcherConfig{})
	assert.Error(t, err)
}

func TestDispatcherComments(t *testing.T) {
	tests := map[string]struct {
		op         operation.Op
		expErr     error
		expComment *model.Comment
		expGoal    func(t *testing.T, s model.Sprint)
	}{
		"Adding a comment should append it to the goal.": {
			op: operation.AddComment{SprintID: 42, Goal: operation.GoalRef{GoalID: 1}, Author: "bob", Text: " ship it "},
			expComment: &model.Comment{
				ID:        "new-id",
				Author:    "bob",
				Text:      "ship it",
				CreatedAt: testNow,
			},
			expGoal: func(t *testing.T, s model.Sprint) {
				require.Len(t, s.Goals[0].Comments, 2)
				assert.Equal(t, "ship it", s.Goals[0].Comments[1].Text)
				assert.Empty(t, s.SideGoals[0].Comments)
			},
		},
		"Adding a comment to a side goal should not touch the main goal with the same ID.": {
			op:         operation.AddComment{SprintID: 42, Goal: operation.GoalRef{GoalID: 1, SideGoal: true}, Author: "bob", Text: "docs"},
			expComment: &model.Comment{ID: "new-id", Author: "bob", Text: "docs", CreatedAt: testNow},
			expGoal: func(t *testing.T, s model.Sprint) {
				assert.Len(t, s.Goals[0].Comments, 1)
				require.Len(t, s.SideGoals[0].Comments, 1)
				assert.Equal(t, "docs", s.SideGoals[0].Comments[0].Text)
			},
		},
		"Adding an empty comment should fail.": {
			op:     operation.AddComment{SprintID: 42, Goal: operation.GoalRef{GoalID: 1}, Author: "bob", Text: "  "},
			expErr: model.ErrNotValid,
		},
		"Adding a comment to a missing goal should fail.": {
			op:     operation.AddComment{SprintID: 42, Goal: operation.GoalRef{GoalID: 9}, Author: "bob", Text: "hi"},
			expErr: model.ErrNotFound,
		},
		"Adding a comment to a missing sprint should fail.": {
			op:     operation.AddComment{SprintID: 7, Goal: operation.GoalRef{GoalID: 1}, Author: "bob", Text: "hi"},
			expErr: model.ErrNotFound,
		},
		"Updating a comment should change the text and set the update time.": {
			op: operation.UpdateComment{SprintID: 42, Goal: operation.GoalRef{GoalID: 1}, CommentID: "c1", Text: "needs work"},
			expComment: &model.Comment{
				ID:        "c1",
				Author:    "ana",
				Text:      "needs work",
				CreatedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
				UpdatedAt: &testNow,
			},
			expGoal: func(t *testing.T, s model.Sprint) {
				require.Len(t, s.Goals[0].Comments, 1)
				assert.Equal(t, "needs work", s.Goals[0].Comments[0].Text)
			},
		},
		"Updating a missing comment should fail.": {
			op:     operation.UpdateComment{SprintID: 42, Goal: operation.GoalRef{GoalID: 1}, CommentID: "nope", Text: "x"},
			expErr: model.ErrNotFound,
		},
		"Deleting a comment should remove it.": {
			op: operation.DeleteComment{SprintID: 42, Goal: operation.GoalRef{GoalID: 1}, CommentID: "c1"},
			expGoal: func(t *testing.T, s model.Sprint) {
				assert.Empty(t, s.Goals[0].Comments)
			},
		},
		"Deleting a missing comment should fail.": {
			op:     operation.DeleteComment{SprintID: 42, Goal: operation.GoalRef{GoalID: 1}, CommentID: "nope"},
			expErr: model.ErrNotFound,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			store := newSeededStore(t, map[string]string{model.SprintPath(42): sprint42})
			d := newTestDispatcher(t, store)

			res, err := d.Execute(context.Background(), test.op)
			if test.expErr != nil {
				assert.True(errors.Is(err, test.expErr), "got: %v", err)
				return
			}
			require.NoError(err)

			if test.expComment != nil {
				assert.Equal(test.expComment, res)
			}

			s := readSprint(t, store, 42)
			test.expGoal(t, s)

			// The sync job fields survive the rewrite.
			data, err := model.EncodeDocument(s)
			require.NoError(err)
			assert.Contains(string(data), `"jiraBaseUrl": "https://jira.example.com"`)
		})
	}
}

func TestDispatcherNotes(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	store := newSeededStore(t, map[string]string{model.SprintPath(42): sprint42})
	d := newTestDispatcher(t, store)

	_, err := d.Execute(context.Background(), operation.SaveAchievements{SprintID: 42, Markdown: "- shipped payments <v2>"})
	require.NoError(err)
	_, err = d.Execute(context.Background(), operation.SaveNextSprintPlans{SprintID: 42, Markdown: "- refunds"})
	require.NoError(err)

	s := readSprint(t, store, 42)
	assert.Equal("- shipped payments <v2>", s.Achievements)
	assert.Equal("- refunds", s.NextSprintPlans)

	doc, err := store.Fetch(context.Background(), model.SprintPath(42))
	require.NoError(err)
	assert.Contains(string(doc.Content), "<v2>")
}

func TestDispatcherSprintLifecycle(t *testing.T) {
	tests := map[string]struct {
		pointer    string
		ops        []operation.Op
		expStatus  model.SprintStatus
		expClosed  bool
		expPointer *model.CurrentSprint
	}{
		"Closing the current sprint should deactivate the pointer.": {
			pointer:    `{"currentSprintId": 42, "isActive": true}`,
			ops:        []operation.Op{operation.CloseSprint{SprintID: 42}},
			expStatus:  model.SprintStatusClosed,
			expClosed:  true,
			expPointer: &model.CurrentSprint{CurrentSprintID: 42, IsActive: false},
		},
		"Closing a sprint that isn't the current one should leave the pointer untouched.": {
			pointer:    `{"currentSprintId": 43, "isActive": true}`,
			ops:        []operation.Op{operation.CloseSprint{SprintID: 42}},
			expStatus:  model.SprintStatusClosed,
			expClosed:  true,
			expPointer: &model.CurrentSprint{CurrentSprintID: 43, IsActive: true},
		},
		"Closing without pointer document should not create it.": {
			ops:       []operation.Op{operation.CloseSprint{SprintID: 42}},
			expStatus: model.SprintStatusClosed,
			expClosed: true,
		},
		"Reopening a closed sprint should activate it and point to it.": {
			pointer:    `{"currentSprintId": 43, "isActive": true}`,
			ops:        []operation.Op{operation.CloseSprint{SprintID: 42}, operation.ReopenSprint{SprintID: 42}},
			expStatus:  model.SprintStatusActive,
			expPointer: &model.CurrentSprint{CurrentSprintID: 42, IsActive: true},
		},
		"Reopening without pointer document should create it.": {
			ops:        []operation.Op{operation.ReopenSprint{SprintID: 42}},
			expStatus:  model.SprintStatusActive,
			expPointer: &model.CurrentSprint{CurrentSprintID: 42, IsActive: true},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			docs := map[string]string{model.SprintPath(42): sprint42}
			if test.pointer != "" {
				docs[model.CurrentSprintPath] = test.pointer
			}
			store := newSeededStore(t, docs)
			d := newTestDispatcher(t, store)

			for _, op := range test.ops {
				_, err := d.Execute(context.Background(), op)
				require.NoError(err)
			}

			s := readSprint(t, store, 42)
			assert.Equal(test.expStatus, s.Status)
			if test.expClosed {
				require.NotNil(s.ClosedAt)
				assert.Equal(testNow, *s.ClosedAt)
			} else {
				assert.Nil(s.ClosedAt)
			}
			assert.Equal(test.expPointer, readCurrentSprint(t, store))
		})
	}
}

func TestDispatcherClosedSprintKeepsReviewFieldsEditable(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	store := newSeededStore(t, map[string]string{model.SprintPath(42): sprint42})
	d := newTestDispatcher(t, store)

	_, err := d.Execute(ctx, operation.CloseSprint{SprintID: 42})
	require.NoError(err)

	ops := []operation.Op{
		operation.AddComment{SprintID: 42, Goal: operation.GoalRef{GoalID: 1}, Author: "ana", Text: "retro"},
		operation.UpdateComment{SprintID: 42, Goal: operation.GoalRef{GoalID: 1}, CommentID: "c1", Text: "edited after close"},
		operation.SaveAchievements{SprintID: 42, Markdown: "- shipped"},
		operation.SaveNextSprintPlans{SprintID: 42, Markdown: "- billing"},
	}
	for _, op := range ops {
		_, err := d.Execute(ctx, op)
		require.NoError(err, op.Type())
	}

	s := readSprint(t, store, 42)
	assert.Equal(model.SprintStatusClosed, s.Status)
	assert.Equal(testNow, *s.ClosedAt)
	assert.Equal("- shipped", s.Achievements)
	assert.Equal("- billing", s.NextSprintPlans)
	require.Len(s.Goals[0].Comments, 2)
	assert.Equal("edited after close", s.Goals[0].Comments[0].Text)
	assert.Equal("retro", s.Goals[0].Comments[1].Text)

	_, err = d.Execute(ctx, operation.DeleteComment{SprintID: 42, Goal: operation.GoalRef{GoalID: 1}, CommentID: "c1"})
	require.NoError(err)
	s = readSprint(t, store, 42)
	assert.Equal(model.SprintStatusClosed, s.Status)
	assert.Len(s.Goals[0].Comments, 1)
}

func TestDispatcherMedia(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	ctx := context.Background()

	t.Run("Upload, replace, rename and delete should keep the media directory consistent.", func(t *testing.T) {
		assert := assert.New(t)
		require := require.New(t)

		store := newSeededStore(t, nil)
		d := newTestDispatcher(t, store)

		res, err := d.Execute(ctx, operation.UploadMedia{SprintID: 42, Name: "demo.png", Data: png})
		require.NoError(err)
		mf := res.(*model.MediaFile)
		assert.Equal("media/sprint-42/demo.png", mf.Path)
		assert.Equal(int64(4), mf.Size)

		// Uploading again replaces it.
		_, err = d.Execute(ctx, operation.UploadMedia{SprintID: 42, Name: "demo.png", Data: []byte("v2")})
		require.NoError(err)

		res, err = d.Execute(ctx, operation.RenameMedia{SprintID: 42, From: "demo.png", To: "final.png"})
		require.NoError(err)
		assert.Equal("final.png", res.(*model.MediaFile).Name)

		entries, err := store.List(ctx, "media/sprint-42")
		require.NoError(err)
		require.Len(entries, 1)
		assert.Equal("final.png", entries[0].Name)

		data, err := store.DownloadBinary(ctx, "media/sprint-42/final.png")
		require.NoError(err)
		assert.Equal([]byte("v2"), data)

		_, err = d.Execute(ctx, operation.DeleteMedia{SprintID: 42, Name: "final.png"})
		require.NoError(err)
		entries, err = store.List(ctx, "media/sprint-42")
		require.NoError(err)
		assert.Empty(entries)
	})

	t.Run("Rename should resume after an interrupted copy.", func(t *testing.T) {
		require := require.New(t)

		store := newSeededStore(t, map[string]string{
			"media/sprint-42/a.png": "same",
			"media/sprint-42/b.png": "same",
		})
		d := newTestDispatcher(t, store)

		_, err := d.Execute(ctx, operation.RenameMedia{SprintID: 42, From: "a.png", To: "b.png"})
		require.NoError(err)

		entries, err := store.List(ctx, "media/sprint-42")
		require.NoError(err)
		require.Len(entries, 1)
		assert.Equal(t, "b.png", entries[0].Name)
	})

	tests := map[string]struct {
		op     operation.Op
		expErr error
	}{
		"Uploading with an invalid name should fail.": {
			op:     operation.UploadMedia{SprintID: 42, Name: "../x.png", Data: png},
			expErr: model.ErrNotValid,
		},
		"Uploading empty data should fail.": {
			op:     operation.UploadMedia{SprintID: 42, Name: "x.png"},
			expErr: model.ErrNotValid,
		},
		"Deleting missing media should fail.": {
			op:     operation.DeleteMedia{SprintID: 42, Name: "missing.png"},
			expErr: model.ErrNotFound,
		},
		"Renaming missing media should fail.": {
			op:     operation.RenameMedia{SprintID: 42, From: "missing.png", To: "b.png"},
			expErr: model.ErrNotFound,
		},
		"Renaming onto different existing media should fail.": {
			op:     operation.RenameMedia{SprintID: 42, From: "a.png", To: "c.png"},
			expErr: model.ErrAlreadyExists,
		},
		"Renaming onto itself should fail.": {
			op:     operation.RenameMedia{SprintID: 42, From: "a.png", To: "a.png"},
			expErr: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			store := newSeededStore(t, map[string]string{
				"media/sprint-42/a.png": "aaa",
				"media/sprint-42/c.png": "ccc",
			})
			d := newTestDispatcher(t, store)

			_, err := d.Execute(ctx, test.op)
			assert.True(t, errors.Is(err, test.expErr), "got: %v", err)
		})
	}
}

func TestDispatcherUnknownOperation(t *testing.T) {
	d := newTestDispatcher(t, newSeededStore(t, nil))

	_, err := d.Execute(context.Background(), nil)
	assert.True(t, errors.Is(err, model.ErrNotValid))
}
