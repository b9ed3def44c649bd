package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/reviewdata/internal/app/sprintlifecycle"
	"github.com/slok/reviewdata/internal/app/sprintshow"
)

type SprintShowCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	sprintID int
	format   string
}

// NewSprintShowCommand returns the sprint show command.
func NewSprintShowCommand(rootCmd *RootCommand, sprintCmd *kingpin.CmdClause) *SprintShowCommand {
	c := &SprintShowCommand{rootCmd: rootCmd}

	c.Cmd = sprintCmd.Command("show", "Show a sprint review, the current sprint if no ID is given.").Default()
	c.Cmd.Arg("sprint-id", "Sprint ID.").IntVar(&c.sprintID)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c SprintShowCommand) Name() string { return c.Cmd.FullCommand() }

func (c SprintShowCommand) Run(ctx context.Context) error {
	store, closeStore, err := c.rootCmd.newStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := sprintshow.NewService(sprintshow.ServiceConfig{
		Store:  store,
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	res, err := svc.Run(ctx, sprintshow.Request{SprintID: c.sprintID})
	if err != nil {
		return fmt.Errorf("could not get sprint: %w", err)
	}

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintSprint(res.Sprint, res.IsCurrent()); err != nil {
		return fmt.Errorf("could not print sprint: %w", err)
	}

	return nil
}

type SprintLifecycleCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
	action  sprintlifecycle.Action

	sprintID int
}

// NewSprintCloseCommand returns the sprint close command.
func NewSprintCloseCommand(rootCmd *RootCommand, sprintCmd *kingpin.CmdClause) *SprintLifecycleCommand {
	return newSprintLifecycleCommand(rootCmd, sprintCmd, sprintlifecycle.ActionClose, "Close the review of a sprint.")
}

// NewSprintReopenCommand returns the sprint reopen command.
func NewSprintReopenCommand(rootCmd *RootCommand, sprintCmd *kingpin.CmdClause) *SprintLifecycleCommand {
	return newSprintLifecycleCommand(rootCmd, sprintCmd, sprintlifecycle.ActionReopen, "Reopen the review of a sprint and make it the current one.")
}

func newSprintLifecycleCommand(rootCmd *RootCommand, sprintCmd *kingpin.CmdClause, action sprintlifecycle.Action, help string) *SprintLifecycleCommand {
	c := &SprintLifecycleCommand{rootCmd: rootCmd, action: action}

	c.Cmd = sprintCmd.Command(string(action), help)
	c.Cmd.Arg("sprint-id", "Sprint ID.").Required().IntVar(&c.sprintID)

	return c
}

func (c SprintLifecycleCommand) Name() string { return c.Cmd.FullCommand() }

func (c SprintLifecycleCommand) Run(ctx context.Context) error {
	w, err := c.rootCmd.newWriter(ctx)
	if err != nil {
		return err
	}
	defer w.close()

	svc, err := sprintlifecycle.NewService(sprintlifecycle.ServiceConfig{
		Coordinator: w.coord,
		Executor:    w.dispatcher,
		Logger:      c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	sprint, err := svc.Run(ctx, sprintlifecycle.Request{SprintID: c.sprintID, Action: c.action})
	if err != nil {
		return err
	}

	return newPrinter("table", c.rootCmd.Stdout).PrintMessage(fmt.Sprintf("Sprint %d (%s) is %s", sprint.ID, sprint.Name, sprint.Status))
}
