package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/reviewdata/internal/app/comment"
)

type CommentCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
	action  comment.Action

	sprintID  int
	goal      string
	commentID string
	author    string
	text      string
	format    string
}

// NewCommentAddCommand returns the comment add command.
func NewCommentAddCommand(rootCmd *RootCommand, commentCmd *kingpin.CmdClause) *CommentCommand {
	c := &CommentCommand{rootCmd: rootCmd, action: comment.ActionAdd}

	c.Cmd = commentCmd.Command("add", "Add a comment to a goal.")
	c.Cmd.Arg("sprint-id", "Sprint ID.").Required().IntVar(&c.sprintID)
	c.Cmd.Arg("goal", "Goal ID (G<id> or S<id> for side goals).").Required().StringVar(&c.goal)
	c.Cmd.Flag("author", "Comment author.").Envar("REVIEWDATA_AUTHOR").Required().StringVar(&c.author)
	c.Cmd.Flag("text", "Comment text.").Short('t').Required().StringVar(&c.text)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

// NewCommentEditCommand returns the comment edit command.
func NewCommentEditCommand(rootCmd *RootCommand, commentCmd *kingpin.CmdClause) *CommentCommand {
	c := &CommentCommand{rootCmd: rootCmd, action: comment.ActionUpdate}

	c.Cmd = commentCmd.Command("edit", "Edit the text of a goal comment.")
	c.Cmd.Arg("sprint-id", "Sprint ID.").Required().IntVar(&c.sprintID)
	c.Cmd.Arg("goal", "Goal ID (G<id> or S<id> for side goals).").Required().StringVar(&c.goal)
	c.Cmd.Arg("comment-id", "Comment ID.").Required().StringVar(&c.commentID)
	c.Cmd.Flag("text", "New comment text.").Short('t').Required().StringVar(&c.text)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

// NewCommentRmCommand returns the comment rm command.
func NewCommentRmCommand(rootCmd *RootCommand, commentCmd *kingpin.CmdClause) *CommentCommand {
	c := &CommentCommand{rootCmd: rootCmd, action: comment.ActionDelete}

	c.Cmd = commentCmd.Command("rm", "Remove a goal comment.")
	c.Cmd.Arg("sprint-id", "Sprint ID.").Required().IntVar(&c.sprintID)
	c.Cmd.Arg("goal", "Goal ID (G<id> or S<id> for side goals).").Required().StringVar(&c.goal)
	c.Cmd.Arg("comment-id", "Comment ID.").Required().StringVar(&c.commentID)

	return c
}

func (c CommentCommand) Name() string { return c.Cmd.FullCommand() }

func (c CommentCommand) Run(ctx context.Context) error {
	goal, err := parseGoalRef(c.goal)
	if err != nil {
		return err
	}

	w, err := c.rootCmd.newWriter(ctx)
	if err != nil {
		return err
	}
	defer w.close()

	svc, err := comment.NewService(comment.ServiceConfig{
		Coordinator: w.coord,
		Executor:    w.dispatcher,
		Logger:      c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	cm, err := svc.Run(ctx, comment.Request{
		Action:    c.action,
		SprintID:  c.sprintID,
		Goal:      goal,
		CommentID: c.commentID,
		Author:    c.author,
		Text:      c.text,
	})
	if err != nil {
		return err
	}

	p := newPrinter(c.format, c.rootCmd.Stdout)
	if cm == nil {
		return p.PrintMessage(fmt.Sprintf("Removed comment %s", c.commentID))
	}

	return p.PrintComment(*cm)
}
