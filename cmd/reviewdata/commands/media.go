package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/reviewdata/internal/app/media"
)

// newMediaService returns the media service and its closer.
func (r *RootCommand) newMediaService(ctx context.Context) (*media.Service, func() error, error) {
	w, err := r.newWriter(ctx)
	if err != nil {
		return nil, nil, err
	}

	svc, err := media.NewService(media.ServiceConfig{
		Coordinator: w.coord,
		Executor:    w.dispatcher,
		Store:       w.store,
		Logger:      r.Logger,
	})
	if err != nil {
		_ = w.close()
		return nil, nil, fmt.Errorf("could not create service: %w", err)
	}

	return svc, w.close, nil
}

type MediaListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	sprintID int
	format   string
}

// NewMediaListCommand returns the media ls command.
func NewMediaListCommand(rootCmd *RootCommand, mediaCmd *kingpin.CmdClause) *MediaListCommand {
	c := &MediaListCommand{rootCmd: rootCmd}

	c.Cmd = mediaCmd.Command("ls", "List the media files of a sprint.")
	c.Cmd.Arg("sprint-id", "Sprint ID.").Required().IntVar(&c.sprintID)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c MediaListCommand) Name() string { return c.Cmd.FullCommand() }

func (c MediaListCommand) Run(ctx context.Context) error {
	svc, closeSvc, err := c.rootCmd.newMediaService(ctx)
	if err != nil {
		return err
	}
	defer closeSvc()

	files, err := svc.List(ctx, c.sprintID)
	if err != nil {
		return err
	}

	return newPrinter(c.format, c.rootCmd.Stdout).PrintMediaList(files)
}

type MediaUploadCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	sprintID int
	file     string
	name     string
}

// NewMediaUploadCommand returns the media upload command.
func NewMediaUploadCommand(rootCmd *RootCommand, mediaCmd *kingpin.CmdClause) *MediaUploadCommand {
	c := &MediaUploadCommand{rootCmd: rootCmd}

	c.Cmd = mediaCmd.Command("upload", "Upload a media file to a sprint, replacing the one with the same name.")
	c.Cmd.Arg("sprint-id", "Sprint ID.").Required().IntVar(&c.sprintID)
	c.Cmd.Arg("file", "Local file to upload.").Required().ExistingFileVar(&c.file)
	c.Cmd.Flag("name", "Media name, defaults to the file name.").StringVar(&c.name)

	return c
}

func (c MediaUploadCommand) Name() string { return c.Cmd.FullCommand() }

func (c MediaUploadCommand) Run(ctx context.Context) error {
	data, err := os.ReadFile(c.file)
	if err != nil {
		return fmt.Errorf("could not read file: %w", err)
	}
	name := c.name
	if name == "" {
		name = filepath.Base(c.file)
	}

	svc, closeSvc, err := c.rootCmd.newMediaService(ctx)
	if err != nil {
		return err
	}
	defer closeSvc()

	mf, err := svc.Upload(ctx, c.sprintID, name, data)
	if err != nil {
		return err
	}

	return newPrinter("table", c.rootCmd.Stdout).PrintMessage(fmt.Sprintf("Uploaded %s", mf.Path))
}

type MediaDownloadCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	sprintID int
	name     string
	output   string
}

// NewMediaDownloadCommand returns the media download command.
func NewMediaDownloadCommand(rootCmd *RootCommand, mediaCmd *kingpin.CmdClause) *MediaDownloadCommand {
	c := &MediaDownloadCommand{rootCmd: rootCmd}

	c.Cmd = mediaCmd.Command("download", "Download a media file of a sprint.")
	c.Cmd.Arg("sprint-id", "Sprint ID.").Required().IntVar(&c.sprintID)
	c.Cmd.Arg("name", "Media name.").Required().StringVar(&c.name)
	c.Cmd.Flag("output", "Output file, '-' writes to stdout. Defaults to the media name.").Short('o').StringVar(&c.output)

	return c
}

func (c MediaDownloadCommand) Name() string { return c.Cmd.FullCommand() }

func (c MediaDownloadCommand) Run(ctx context.Context) error {
	svc, closeSvc, err := c.rootCmd.newMediaService(ctx)
	if err != nil {
		return err
	}
	defer closeSvc()

	data, err := svc.Download(ctx, c.sprintID, c.name)
	if err != nil {
		return err
	}

	if c.output == "-" {
		_, err := c.rootCmd.Stdout.Write(data)
		return err
	}

	out := c.output
	if out == "" {
		out = c.name
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("could not write file: %w", err)
	}

	c.rootCmd.Logger.Infof("Downloaded %s to %s", c.name, out)
	return nil
}

type MediaRmCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	sprintID int
	name     string
}

// NewMediaRmCommand returns the media rm command.
func NewMediaRmCommand(rootCmd *RootCommand, mediaCmd *kingpin.CmdClause) *MediaRmCommand {
	c := &MediaRmCommand{rootCmd: rootCmd}

	c.Cmd = mediaCmd.Command("rm", "Remove a media file of a sprint.")
	c.Cmd.Arg("sprint-id", "Sprint ID.").Required().IntVar(&c.sprintID)
	c.Cmd.Arg("name", "Media name.").Required().StringVar(&c.name)

	return c
}

func (c MediaRmCommand) Name() string { return c.Cmd.FullCommand() }

func (c MediaRmCommand) Run(ctx context.Context) error {
	svc, closeSvc, err := c.rootCmd.newMediaService(ctx)
	if err != nil {
		return err
	}
	defer closeSvc()

	if err := svc.Delete(ctx, c.sprintID, c.name); err != nil {
		return err
	}

	return newPrinter("table", c.rootCmd.Stdout).PrintMessage(fmt.Sprintf("Removed %s", c.name))
}

type MediaMvCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	sprintID int
	from     string
	to       string
}

// NewMediaMvCommand returns the media mv command.
func NewMediaMvCommand(rootCmd *RootCommand, mediaCmd *kingpin.CmdClause) *MediaMvCommand {
	c := &MediaMvCommand{rootCmd: rootCmd}

	c.Cmd = mediaCmd.Command("mv", "Rename a media file of a sprint.")
	c.Cmd.Arg("sprint-id", "Sprint ID.").Required().IntVar(&c.sprintID)
	c.Cmd.Arg("from", "Current media name.").Required().StringVar(&c.from)
	c.Cmd.Arg("to", "New media name.").Required().StringVar(&c.to)

	return c
}

func (c MediaMvCommand) Name() string { return c.Cmd.FullCommand() }

func (c MediaMvCommand) Run(ctx context.Context) error {
	svc, closeSvc, err := c.rootCmd.newMediaService(ctx)
	if err != nil {
		return err
	}
	defer closeSvc()

	mf, err := svc.Rename(ctx, c.sprintID, c.from, c.to)
	if err != nil {
		return err
	}

	return newPrinter("table", c.rootCmd.Stdout).PrintMessage(fmt.Sprintf("Renamed %s to %s", c.from, mf.Name))
}
