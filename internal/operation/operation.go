// Package operation has the named mutations of the review data and the logic
// that applies them on the document store.
//
// Operations are plain values carrying their parameters, the Dispatcher knows how
// to run each of them (fetch, transform and write back) and ToCoordinator adapts
// them to the coordinator queue.
package operation

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/slok/reviewdata/internal/coordinator"
)

// Operation types.
const (
	TypeAddComment          = "add-comment"
	TypeUpdateComment       = "update-comment"
	TypeDeleteComment       = "delete-comment"
	TypeSaveAchievements    = "save-achievements"
	TypeSaveNextSprintPlans = "save-next-sprint-plans"
	TypeCloseSprint         = "close-sprint"
	TypeReopenSprint        = "reopen-sprint"
	TypeUploadMedia         = "upload-media"
	TypeDeleteMedia         = "delete-media"
	TypeRenameMedia         = "rename-media"
)

// Op is a mutation of the review data.
type Op interface {
	// Type is the operation kind.
	Type() string
	// Key identifies the same request made twice.
	Key() string
	// Priority on the coordinator queue.
	Priority() int

	isOp()
}

// GoalRef points to a goal of a sprint.
type GoalRef struct {
	GoalID int
	// SideGoal selects the side goals list, goal IDs are only unique inside each list.
	SideGoal bool
}

func (g GoalRef) key() string {
	if g.SideGoal {
		return fmt.Sprintf("side-%d", g.GoalID)
	}
	return fmt.Sprintf("goal-%d", g.GoalID)
}

// AddComment adds a comment to a goal.
type AddComment struct {
	SprintID int
	Goal     GoalRef
	Author   string
	Text     string
}

// UpdateComment replaces the text of a goal comment.
type UpdateComment struct {
	SprintID  int
	Goal      GoalRef
	CommentID string
	Text      string
}

// DeleteComment removes a comment from a goal.
type DeleteComment struct {
	SprintID  int
	Goal      GoalRef
	CommentID string
}

// SaveAchievements sets the achievements markdown of a sprint.
type SaveAchievements struct {
	SprintID int
	Markdown string
}

// SaveNextSprintPlans sets the next sprint plans markdown of a sprint.
type SaveNextSprintPlans struct {
	SprintID int
	Markdown string
}

// CloseSprint closes the review of a sprint.
type CloseSprint struct {
	SprintID int
}

// ReopenSprint reopens the review of a sprint and makes it the current one.
type ReopenSprint struct {
	SprintID int
}

// UploadMedia stores a media file of a sprint, replacing it if it already exists.
type UploadMedia struct {
	SprintID int
	Name     string
	Data     []byte
}

// DeleteMedia removes a media file of a sprint.
type DeleteMedia struct {
	SprintID int
	Name     string
}

// RenameMedia renames a media file of a sprint.
type RenameMedia struct {
	SprintID int
	From     string
	To       string
}

func (AddComment) Type() string          { return TypeAddComment }
func (UpdateComment) Type() string       { return TypeUpdateComment }
func (DeleteComment) Type() string       { return TypeDeleteComment }
func (SaveAchievements) Type() string    { return TypeSaveAchievements }
func (SaveNextSprintPlans) Type() string { return TypeSaveNextSprintPlans }
func (CloseSprint) Type() string         { return TypeCloseSprint }
func (ReopenSprint) Type() string        { return TypeReopenSprint }
func (UploadMedia) Type() string         { return TypeUploadMedia }
func (DeleteMedia) Type() string         { return TypeDeleteMedia }
func (RenameMedia) Type() string         { return TypeRenameMedia }

// Sprint lifecycle changes jump the queue so edits made after them see the final state.
func (AddComment) Priority() int          { return coordinator.PriorityNormal }
func (UpdateComment) Priority() int       { return coordinator.PriorityNormal }
func (DeleteComment) Priority() int       { return coordinator.PriorityNormal }
func (SaveAchievements) Priority() int    { return coordinator.PriorityNormal }
func (SaveNextSprintPlans) Priority() int { return coordinator.PriorityNormal }
func (CloseSprint) Priority() int         { return coordinator.PriorityCritical }
func (ReopenSprint) Priority() int        { return coordinator.PriorityCritical }
func (UploadMedia) Priority() int         { return coordinator.PriorityNormal }
func (DeleteMedia) Priority() int         { return coordinator.PriorityNormal }
func (RenameMedia) Priority() int         { return coordinator.PriorityNormal }

func (o AddComment) Key() string {
	return fmt.Sprintf("%s:%d:%s:%s", o.Type(), o.SprintID, o.Goal.key(), digest(o.Author, o.Text))
}

func (o UpdateComment) Key() string {
	return fmt.Sprintf("%s:%d:%s:%s:%s", o.Type(), o.SprintID, o.Goal.key(), o.CommentID, digest(o.Text))
}

func (o DeleteComment) Key() string {
	return fmt.Sprintf("%s:%d:%s:%s", o.Type(), o.SprintID, o.Goal.key(), o.CommentID)
}

func (o SaveAchievements) Key() string {
	return fmt.Sprintf("%s:%d:%s", o.Type(), o.SprintID, digest(o.Markdown))
}

func (o SaveNextSprintPlans) Key() string {
	return fmt.Sprintf("%s:%d:%s", o.Type(), o.SprintID, digest(o.Markdown))
}

func (o CloseSprint) Key() string  { return fmt.Sprintf("%s:%d", o.Type(), o.SprintID) }
func (o ReopenSprint) Key() string { return fmt.Sprintf("%s:%d", o.Type(), o.SprintID) }

func (o UploadMedia) Key() string {
	return fmt.Sprintf("%s:%d:%s:%s", o.Type(), o.SprintID, o.Name, digest(string(o.Data)))
}

func (o DeleteMedia) Key() string { return fmt.Sprintf("%s:%d:%s", o.Type(), o.SprintID, o.Name) }

func (o RenameMedia) Key() string {
	return fmt.Sprintf("%s:%d:%s:%s", o.Type(), o.SprintID, o.From, o.To)
}

func (AddComment) isOp()          {}
func (UpdateComment) isOp()       {}
func (DeleteComment) isOp()       {}
func (SaveAchievements) isOp()    {}
func (SaveNextSprintPlans) isOp() {}
func (CloseSprint) isOp()         {}
func (ReopenSprint) isOp()        {}
func (UploadMedia) isOp()         {}
func (DeleteMedia) isOp()         {}
func (RenameMedia) isOp()         {}

// digest keeps keys short when they depend on user content.
func digest(parts ...string) string {
	h := sha1.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}
