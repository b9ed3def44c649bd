package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/reviewdata/internal/model"
)

type RateLimitCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewRateLimitCommand returns the ratelimit command.
func NewRateLimitCommand(rootCmd *RootCommand, app *kingpin.Application) *RateLimitCommand {
	c := &RateLimitCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("ratelimit", "Show the GitHub API quota of the token.")
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c RateLimitCommand) Name() string { return c.Cmd.FullCommand() }

func (c RateLimitCommand) Run(ctx context.Context) error {
	if c.rootCmd.Backend != BackendGitHub {
		return fmt.Errorf("rate limit is only available on the %s backend", BackendGitHub)
	}

	store, closeStore, err := c.rootCmd.newStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	rl, ok := store.(interface{ RateLimit() model.RateLimitInfo })
	if !ok {
		return fmt.Errorf("store doesn't track rate limits")
	}

	// Quota headers come with every response, any cheap read is enough.
	if _, err := store.Fetch(ctx, model.CurrentSprintPath); err != nil {
		return fmt.Errorf("could not reach the data repository: %w", err)
	}

	return newPrinter(c.format, c.rootCmd.Stdout).PrintRateLimit(rl.RateLimit())
}
