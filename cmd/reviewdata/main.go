package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"github.com/slok/reviewdata/cmd/reviewdata/commands"
	"github.com/slok/reviewdata/internal/log"
	loglogrus "github.com/slok/reviewdata/internal/log/logrus"
)

const (
	// Version is the application version (set via ldflags).
	Version = "dev"
)

// Run runs the main application.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	app := kingpin.New("reviewdata", "Sprint review data management tool.")
	app.DefaultEnvars()
	rootCmd := commands.NewRootCommand(app)

	// Sprint subcommands share a parent command.
	sprintCmd := app.Command("sprint", "Show, close and reopen sprint reviews.")
	sprintShowCmd := commands.NewSprintShowCommand(rootCmd, sprintCmd)
	sprintCloseCmd := commands.NewSprintCloseCommand(rootCmd, sprintCmd)
	sprintReopenCmd := commands.NewSprintReopenCommand(rootCmd, sprintCmd)

	commentCmd := app.Command("comment", "Manage goal comments.")
	commentAddCmd := commands.NewCommentAddCommand(rootCmd, commentCmd)
	commentEditCmd := commands.NewCommentEditCommand(rootCmd, commentCmd)
	commentRmCmd := commands.NewCommentRmCommand(rootCmd, commentCmd)

	achievementsSetCmd := commands.NewAchievementsSetCommand(rootCmd, app)
	plansSetCmd := commands.NewPlansSetCommand(rootCmd, app)

	mediaCmd := app.Command("media", "Manage sprint media files.")
	mediaListCmd := commands.NewMediaListCommand(rootCmd, mediaCmd)
	mediaUploadCmd := commands.NewMediaUploadCommand(rootCmd, mediaCmd)
	mediaDownloadCmd := commands.NewMediaDownloadCommand(rootCmd, mediaCmd)
	mediaRmCmd := commands.NewMediaRmCommand(rootCmd, mediaCmd)
	mediaMvCmd := commands.NewMediaMvCommand(rootCmd, mediaCmd)

	applyCmd := commands.NewApplyCommand(rootCmd, app)
	rateLimitCmd := commands.NewRateLimitCommand(rootCmd, app)

	cmds := map[string]commands.Command{
		sprintShowCmd.Name():      sprintShowCmd,
		sprintCloseCmd.Name():     sprintCloseCmd,
		sprintReopenCmd.Name():    sprintReopenCmd,
		commentAddCmd.Name():      commentAddCmd,
		commentEditCmd.Name():     commentEditCmd,
		commentRmCmd.Name():       commentRmCmd,
		achievementsSetCmd.Name(): achievementsSetCmd,
		plansSetCmd.Name():        plansSetCmd,
		mediaListCmd.Name():       mediaListCmd,
		mediaUploadCmd.Name():     mediaUploadCmd,
		mediaDownloadCmd.Name():   mediaDownloadCmd,
		mediaRmCmd.Name():         mediaRmCmd,
		mediaMvCmd.Name():         mediaMvCmd,
		applyCmd.Name():           applyCmd,
		rateLimitCmd.Name():       rateLimitCmd,
	}

	// Parse command.
	cmdName, err := app.Parse(args[1:])
	if err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	// Set standard input/output.
	rootCmd.Stdin = stdin
	rootCmd.Stdout = stdout
	rootCmd.Stderr = stderr

	// Auto-suppress logging for commands that produce structured output (table/JSON)
	// to prevent log noise from mixing with printer output in the terminal.
	// Users can still enable logging with --debug.
	printerCommands := map[string]bool{
		"sprint show": true,
		"media ls":    true,
		"ratelimit":   true,
	}
	if printerCommands[cmdName] && !rootCmd.Debug {
		rootCmd.NoLog = true
	}

	// Set logger.
	rootCmd.Logger = getLogger(*rootCmd)

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				rootCmd.Logger.Debugf("Termination signal received")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// Execute command.
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				err := cmds[cmdName].Run(ctx)
				if err != nil {
					return fmt.Errorf("%q command failed: %w", cmdName, err)
				}
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}

// getLogger returns the application logger.
func getLogger(config commands.RootCommand) log.Logger {
	if config.NoLog {
		return log.Noop
	}

	// If logger not disabled use logrus logger.
	logrusLog := logrus.New()
	logrusLog.Out = config.Stderr // By default logger goes to stderr (so it can split stdout prints).
	logrusLogEntry := logrus.NewEntry(logrusLog)

	if config.Debug {
		logrusLogEntry.Logger.SetLevel(logrus.DebugLevel)
	}

	// Log format.
	switch config.LoggerType {
	case commands.LoggerTypeDefault:
		logrusLogEntry.Logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !config.NoColor,
			DisableColors: config.NoColor,
		})
	case commands.LoggerTypeJSON:
		logrusLogEntry.Logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logger := loglogrus.NewLogrus(logrusLogEntry).WithValues(log.Kv{
		"version": Version,
	})

	logger.Debugf("Debug level is enabled") // Will log only when debug enabled.

	return logger
}

func main() {
	ctx := context.Background()
	err := Run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
