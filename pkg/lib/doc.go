// Package lib provides a Go SDK for editing sprint review data programmatically.
//
// All the writes of a [Client] go through a single operation queue: they run
// one at a time, sprint close and reopen jump ahead of the pending edits, a
// repeated submission is rejected while the first one is still pending and
// version conflicts are retried with backoff.
//
// # Quick Start
//
//	client, err := lib.New(ctx, lib.Config{
//	    Backend: lib.BackendGitHub,
//	    GitHub:  lib.GitHubConfig{Repo: "acme/sprint-reviews", Token: os.Getenv("GITHUB_TOKEN")},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	sprint, _, _ := client.GetSprint(ctx, 0)
//	client.AddComment(ctx, sprint.ID, lib.GoalRef{GoalID: 1}, "ana", "Shipped!")
//	client.CloseSprint(ctx, sprint.ID)
//
// # Backends
//
//   - [BackendGitHub]: Documents stored in a GitHub repository through the Contents API.
//   - [BackendSQLite]: Documents stored in a local SQLite database.
//   - [BackendMemory]: In-memory documents, useful for tests.
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrNotFound]: Sprint, goal, comment or media file does not exist.
//   - [ErrAlreadyExists]: Media rename target already exists.
//   - [ErrNotValid]: Invalid input or operation (e.g. an empty comment or a bad media name).
//   - [ErrConflict]: Document changed concurrently, retried by the queue.
//   - [ErrRetriesExhausted]: Conflicts persisted after all the retries.
//   - [ErrDuplicate]: Same operation already pending.
package lib
