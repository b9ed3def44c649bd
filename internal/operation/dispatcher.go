package operation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/reviewdata/internal/log"
	"github.com/slok/reviewdata/internal/model"
	"github.com/slok/reviewdata/internal/storage"
)

// DispatcherConfig is the configuration of the Dispatcher.
type DispatcherConfig struct {
	Store storage.DocumentStore
	// Now returns the current time, used for comment and close timestamps.
	Now func() time.Time
	// NewID returns new comment IDs.
	NewID  func() string
	Logger log.Logger
}

func (c *DispatcherConfig) defaults() error {
	if c.Store == nil {
		return fmt.Errorf("store is required")
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewID == nil {
		c.NewID = func() string { return ulid.Make().String() }
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "operation.Dispatcher"})
	return nil
}

// Dispatcher applies operations on the document store.
//
// Every call fetches the current state, so it's safe to run again after a
// version conflict. It doesn't serialize anything by itself, that's the job of
// the coordinator.
type Dispatcher struct {
	store  storage.DocumentStore
	now    func() time.Time
	newID  func() string
	logger log.Logger
}

// NewDispatcher returns a new Dispatcher.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Dispatcher{
		store:  cfg.Store,
		now:    cfg.Now,
		newID:  cfg.NewID,
		logger: cfg.Logger,
	}, nil
}

// Execute runs the operation once.
//
// Results by operation:
//   - AddComment, UpdateComment: *model.Comment.
//   - SaveAchievements, SaveNextSprintPlans, CloseSprint, ReopenSprint: *model.Sprint.
//   - UploadMedia, RenameMedia: *model.MediaFile.
//   - DeleteComment, DeleteMedia: nil.
func (d *Dispatcher) Execute(ctx context.Context, op Op) (any, error) {
	switch o := op.(type) {
	case AddComment:
		return d.addComment(ctx, o)
	case UpdateComment:
		return d.updateComment(ctx, o)
	case DeleteComment:
		return nil, d.deleteComment(ctx, o)
	case SaveAchievements:
		return d.saveNotes(ctx, o.SprintID, func(s *model.Sprint) { s.Achievements = o.Markdown })
	case SaveNextSprintPlans:
		return d.saveNotes(ctx, o.SprintID, func(s *model.Sprint) { s.NextSprintPlans = o.Markdown })
	case CloseSprint:
		return d.closeSprint(ctx, o)
	case ReopenSprint:
		return d.reopenSprint(ctx, o)
	case UploadMedia:
		return d.uploadMedia(ctx, o)
	case DeleteMedia:
		return nil, d.deleteMedia(ctx, o)
	case RenameMedia:
		return d.renameMedia(ctx, o)
	case nil:
		return nil, fmt.Errorf("operation is required: %w", model.ErrNotValid)
	default:
		return nil, fmt.Errorf("unknown operation %T: %w", op, model.ErrNotValid)
	}
}

func (d *Dispatcher) addComment(ctx context.Context, o AddComment) (*model.Comment, error) {
	text := strings.TrimSpace(o.Text)
	if text == "" {
		return nil, fmt.Errorf("comment text is required: %w", model.ErrNotValid)
	}
	author := strings.TrimSpace(o.Author)
	if author == "" {
		return nil, fmt.Errorf("comment author is required: %w", model.ErrNotValid)
	}

	var added model.Comment
	err := d.mutateGoal(ctx, o.SprintID, o.Goal, func(g *model.Goal) error {
		added = model.Comment{
			ID:        d.newID(),
			Author:    author,
			Text:      text,
			CreatedAt: d.now().UTC(),
		}
		g.Comments = append(g.Comments, added)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &added, nil
}

func (d *Dispatcher) updateComment(ctx context.Context, o UpdateComment) (*model.Comment, error) {
	text := strings.TrimSpace(o.Text)
	if text == "" {
		return nil, fmt.Errorf("comment text is required: %w", model.ErrNotValid)
	}

	var updated model.Comment
	err := d.mutateGoal(ctx, o.SprintID, o.Goal, func(g *model.Goal) error {
		idx := slices.IndexFunc(g.Comments, func(c model.Comment) bool { return c.ID == o.CommentID })
		if idx < 0 {
			return fmt.Errorf("comment %q: %w", o.CommentID, model.ErrNotFound)
		}
		now := d.now().UTC()
		g.Comments[idx].Text = text
		g.Comments[idx].UpdatedAt = &now
		updated = g.Comments[idx]
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

func (d *Dispatcher) deleteComment(ctx context.Context, o DeleteComment) error {
	return d.mutateGoal(ctx, o.SprintID, o.Goal, func(g *model.Goal) error {
		idx := slices.IndexFunc(g.Comments, func(c model.Comment) bool { return c.ID == o.CommentID })
		if idx < 0 {
			return fmt.Errorf("comment %q: %w", o.CommentID, model.ErrNotFound)
		}
		g.Comments = slices.Delete(g.Comments, idx, idx+1)
		return nil
	})
}

// mutateGoal runs a goal mutation and writes the sprint back. Closing a sprint only
// freezes the synced data, comments stay editable.
func (d *Dispatcher) mutateGoal(ctx context.Context, sprintID int, ref GoalRef, mutate func(g *model.Goal) error) error {
	sprint, version, err := d.fetchSprint(ctx, sprintID)
	if err != nil {
		return err
	}

	goal, err := sprint.Goal(ref.GoalID, ref.SideGoal)
	if err != nil {
		return err
	}
	if err := mutate(goal); err != nil {
		return err
	}

	_, err = d.writeDocument(ctx, model.SprintPath(sprintID), sprint, version)
	return err
}

func (d *Dispatcher) saveNotes(ctx context.Context, sprintID int, set func(s *model.Sprint)) (*model.Sprint, error) {
	sprint, version, err := d.fetchSprint(ctx, sprintID)
	if err != nil {
		return nil, err
	}

	set(sprint)
	if _, err := d.writeDocument(ctx, model.SprintPath(sprintID), sprint, version); err != nil {
		return nil, err
	}

	return sprint, nil
}

func (d *Dispatcher) closeSprint(ctx context.Context, o CloseSprint) (*model.Sprint, error) {
	sprint, version, err := d.fetchSprint(ctx, o.SprintID)
	if err != nil {
		return nil, err
	}

	// A retry after the sprint write succeeded only needs to move the pointer.
	if !sprint.IsClosed() {
		now := d.now().UTC()
		sprint.Status = model.SprintStatusClosed
		sprint.ClosedAt = &now
		if _, err := d.writeDocument(ctx, model.SprintPath(o.SprintID), sprint, version); err != nil {
			return nil, err
		}
	}

	pointer, pointerVersion, err := d.fetchCurrentSprint(ctx)
	if err != nil {
		return nil, err
	}
	if pointer != nil && pointer.CurrentSprintID == o.SprintID && pointer.IsActive {
		pointer.IsActive = false
		if _, err := d.writeDocument(ctx, model.CurrentSprintPath, pointer, pointerVersion); err != nil {
			return nil, fmt.Errorf("sprint %d closed but current sprint pointer not updated: %w", o.SprintID, err)
		}
	}

	d.logger.Infof("Sprint %d closed", o.SprintID)
	return sprint, nil
}

func (d *Dispatcher) reopenSprint(ctx context.Context, o ReopenSprint) (*model.Sprint, error) {
	sprint, version, err := d.fetchSprint(ctx, o.SprintID)
	if err != nil {
		return nil, err
	}

	if sprint.Status != model.SprintStatusActive || sprint.ClosedAt != nil {
		sprint.Status = model.SprintStatusActive
		sprint.ClosedAt = nil
		if _, err := d.writeDocument(ctx, model.SprintPath(o.SprintID), sprint, version); err != nil {
			return nil, err
		}
	}

	pointer, pointerVersion, err := d.fetchCurrentSprint(ctx)
	if err != nil {
		return nil, err
	}
	want := model.CurrentSprint{CurrentSprintID: o.SprintID, IsActive: true}
	if pointer == nil || *pointer != want {
		if _, err := d.writeDocument(ctx, model.CurrentSprintPath, want, pointerVersion); err != nil {
			return nil, fmt.Errorf("sprint %d reopened but current sprint pointer not updated: %w", o.SprintID, err)
		}
	}

	d.logger.Infof("Sprint %d reopened", o.SprintID)
	return sprint, nil
}

func (d *Dispatcher) uploadMedia(ctx context.Context, o UploadMedia) (*model.MediaFile, error) {
	if err := model.ValidateMediaName(o.Name); err != nil {
		return nil, err
	}
	if len(o.Data) == 0 {
		return nil, fmt.Errorf("media %q is empty: %w", o.Name, model.ErrNotValid)
	}

	current, err := d.mediaEntry(ctx, o.SprintID, o.Name)
	if err != nil {
		return nil, err
	}
	version := ""
	if current != nil {
		version = current.Version
	}

	p := model.MediaPath(o.SprintID, o.Name)
	newVersion, err := d.store.UploadBinary(ctx, p, o.Data, version)
	if err != nil {
		return nil, fmt.Errorf("could not upload media: %w", err)
	}

	return &model.MediaFile{
		SprintID: o.SprintID,
		Name:     o.Name,
		Path:     p,
		Version:  newVersion,
		Size:     int64(len(o.Data)),
	}, nil
}

func (d *Dispatcher) deleteMedia(ctx context.Context, o DeleteMedia) error {
	if err := model.ValidateMediaName(o.Name); err != nil {
		return err
	}

	current, err := d.mediaEntry(ctx, o.SprintID, o.Name)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("media %q of sprint %d: %w", o.Name, o.SprintID, model.ErrNotFound)
	}

	if err := d.store.Delete(ctx, current.Path, current.Version); err != nil {
		return fmt.Errorf("could not delete media: %w", err)
	}

	return nil
}

func (d *Dispatcher) renameMedia(ctx context.Context, o RenameMedia) (*model.MediaFile, error) {
	if err := model.ValidateMediaName(o.From); err != nil {
		return nil, err
	}
	if err := model.ValidateMediaName(o.To); err != nil {
		return nil, err
	}
	if o.From == o.To {
		return nil, fmt.Errorf("media %q can't be renamed to itself: %w", o.From, model.ErrNotValid)
	}

	src, err := d.mediaEntry(ctx, o.SprintID, o.From)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("media %q of sprint %d: %w", o.From, o.SprintID, model.ErrNotFound)
	}
	dst, err := d.mediaEntry(ctx, o.SprintID, o.To)
	if err != nil {
		return nil, err
	}

	data, err := d.store.DownloadBinary(ctx, src.Path)
	if err != nil {
		return nil, fmt.Errorf("could not download media: %w", err)
	}

	toPath := model.MediaPath(o.SprintID, o.To)
	toVersion := storage.BlobVersion(data)
	switch {
	case dst == nil:
		toVersion, err = d.store.UploadBinary(ctx, toPath, data, "")
		if err != nil {
			return nil, fmt.Errorf("could not upload renamed media: %w", err)
		}
	case dst.Version != toVersion:
		return nil, fmt.Errorf("media %q of sprint %d: %w", o.To, o.SprintID, model.ErrAlreadyExists)
	default:
		// Same content already in place, a previous attempt was interrupted after the copy.
	}

	if err := d.store.Delete(ctx, src.Path, src.Version); err != nil {
		return nil, fmt.Errorf("could not delete renamed media source: %w", err)
	}

	return &model.MediaFile{
		SprintID: o.SprintID,
		Name:     o.To,
		Path:     toPath,
		Version:  toVersion,
		Size:     int64(len(data)),
	}, nil
}

func (d *Dispatcher) mediaEntry(ctx context.Context, sprintID int, name string) (*model.Entry, error) {
	entries, err := d.store.List(ctx, model.SprintMediaDir(sprintID))
	if err != nil {
		return nil, fmt.Errorf("could not list media: %w", err)
	}

	for _, e := range entries {
		if e.Kind == model.EntryKindFile && e.Name == name {
			return &e, nil
		}
	}

	return nil, nil
}

func (d *Dispatcher) fetchSprint(ctx context.Context, id int) (*model.Sprint, string, error) {
	p := model.SprintPath(id)
	doc, err := d.store.Fetch(ctx, p)
	if err != nil {
		return nil, "", fmt.Errorf("could not fetch sprint %d: %w", id, err)
	}
	if doc == nil {
		return nil, "", fmt.Errorf("sprint %d: %w", id, model.ErrNotFound)
	}

	var s model.Sprint
	if err := json.Unmarshal(doc.Content, &s); err != nil {
		return nil, "", fmt.Errorf("malformed sprint document %s: %s: %w", p, err, model.ErrNotValid)
	}

	return &s, doc.Version, nil
}

// fetchCurrentSprint returns a nil pointer when the document doesn't exist.
func (d *Dispatcher) fetchCurrentSprint(ctx context.Context) (*model.CurrentSprint, string, error) {
	doc, err := d.store.Fetch(ctx, model.CurrentSprintPath)
	if err != nil {
		return nil, "", fmt.Errorf("could not fetch current sprint: %w", err)
	}
	if doc == nil || len(bytes.TrimSpace(doc.Content)) == 0 {
		version := ""
		if doc != nil {
			version = doc.Version
		}
		return nil, version, nil
	}

	var cs model.CurrentSprint
	if err := json.Unmarshal(doc.Content, &cs); err != nil {
		return nil, "", fmt.Errorf("malformed current sprint document: %s: %w", err, model.ErrNotValid)
	}

	return &cs, doc.Version, nil
}

func (d *Dispatcher) writeDocument(ctx context.Context, p string, v any, version string) (string, error) {
	data, err := model.EncodeDocument(v)
	if err != nil {
		return "", fmt.Errorf("could not encode %s: %w", p, err)
	}

	newVersion, err := d.store.Write(ctx, p, data, version)
	if err != nil {
		return "", fmt.Errorf("could not write %s: %w", p, err)
	}
	d.logger.Debugf("Wrote %s (version %s)", p, newVersion)

	return newVersion, nil
}
