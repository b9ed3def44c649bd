package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/reviewdata/internal/app/notes"
)

type NotesSetCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
	field   notes.Field

	sprintID int
	file     string
}

// NewAchievementsSetCommand returns the achievements set command.
func NewAchievementsSetCommand(rootCmd *RootCommand, app *kingpin.Application) *NotesSetCommand {
	return newNotesSetCommand(rootCmd, app.Command("achievements", "Manage sprint achievements."), notes.FieldAchievements)
}

// NewPlansSetCommand returns the plans set command.
func NewPlansSetCommand(rootCmd *RootCommand, app *kingpin.Application) *NotesSetCommand {
	return newNotesSetCommand(rootCmd, app.Command("plans", "Manage next sprint plans."), notes.FieldNextSprintPlans)
}

func newNotesSetCommand(rootCmd *RootCommand, parent *kingpin.CmdClause, field notes.Field) *NotesSetCommand {
	c := &NotesSetCommand{rootCmd: rootCmd, field: field}

	c.Cmd = parent.Command("set", fmt.Sprintf("Replace the %s markdown of a sprint.", field))
	c.Cmd.Arg("sprint-id", "Sprint ID.").Required().IntVar(&c.sprintID)
	c.Cmd.Flag("file", "Markdown file, '-' reads from stdin.").Short('f').Required().StringVar(&c.file)

	return c
}

func (c NotesSetCommand) Name() string { return c.Cmd.FullCommand() }

func (c NotesSetCommand) Run(ctx context.Context) error {
	md, err := c.rootCmd.readInput(c.file)
	if err != nil {
		return fmt.Errorf("could not read markdown: %w", err)
	}

	w, err := c.rootCmd.newWriter(ctx)
	if err != nil {
		return err
	}
	defer w.close()

	svc, err := notes.NewService(notes.ServiceConfig{
		Coordinator: w.coord,
		Executor:    w.dispatcher,
		Logger:      c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	if _, err := svc.Run(ctx, notes.Request{SprintID: c.sprintID, Field: c.field, Markdown: string(md)}); err != nil {
		return err
	}

	return newPrinter("table", c.rootCmd.Stdout).PrintMessage(fmt.Sprintf("Saved %s of sprint %d", c.field, c.sprintID))
}
