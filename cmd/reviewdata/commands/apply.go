package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/reviewdata/internal/app/apply"
	"github.com/slok/reviewdata/internal/printer"
	storageio "github.com/slok/reviewdata/internal/storage/io"
)

type ApplyCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	file   string
	format string
}

// NewApplyCommand returns the apply command.
func NewApplyCommand(rootCmd *RootCommand, app *kingpin.Application) *ApplyCommand {
	c := &ApplyCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("apply", "Apply a YAML batch of review operations.")
	c.Cmd.Flag("file", "Operations YAML file.").Short('f').Required().ExistingFileVar(&c.file)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c ApplyCommand) Name() string { return c.Cmd.FullCommand() }

func (c ApplyCommand) Run(ctx context.Context) error {
	abs, err := filepath.Abs(c.file)
	if err != nil {
		return fmt.Errorf("could not resolve file path: %w", err)
	}
	repo := storageio.NewOperationsYAMLRepository(os.DirFS(filepath.Dir(abs)))
	ops, err := repo.GetOperations(ctx, filepath.Base(abs))
	if err != nil {
		return fmt.Errorf("could not load operations: %w", err)
	}

	w, err := c.rootCmd.newWriter(ctx)
	if err != nil {
		return err
	}
	defer w.close()

	svc, err := apply.NewService(apply.ServiceConfig{
		Coordinator: w.coord,
		Executor:    w.dispatcher,
		Logger:      c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	results, err := svc.Run(ctx, apply.Request{Operations: ops})
	if err != nil {
		return err
	}

	out := make([]printer.OperationResult, 0, len(results))
	failed := 0
	for _, r := range results {
		out = append(out, printer.OperationResult{ID: r.ID, Type: r.Op.Type(), Err: r.Err})
		if r.Err != nil {
			failed++
		}
	}
	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintOperationResults(out); err != nil {
		return fmt.Errorf("could not print results: %w", err)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d operations failed", failed, len(results))
	}

	return nil
}
