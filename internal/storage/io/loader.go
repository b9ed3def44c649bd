package io

import (
	"context"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/slok/reviewdata/internal/model"
	"github.com/slok/reviewdata/internal/operation"
)

// OperationsYAMLRepository loads batches of review operations from YAML files.
type OperationsYAMLRepository struct {
	fs fs.FS
}

// NewOperationsYAMLRepository creates a new YAML operations repository.
func NewOperationsYAMLRepository(filesystem fs.FS) *OperationsYAMLRepository {
	return &OperationsYAMLRepository{fs: filesystem}
}

// GetOperations loads the operations of a YAML batch file. Media files referenced by
// the batch are read relative to the batch file directory.
func (r *OperationsYAMLRepository) GetOperations(ctx context.Context, filePath string) ([]operation.Op, error) {
	data, err := fs.ReadFile(r.fs, filePath)
	if err != nil {
		return nil, fmt.Errorf("reading operations file: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var batch Batch
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("parsing YAML: %s: %w", err, model.ErrNotValid)
	}

	ops := make([]operation.Op, 0, len(batch.Operations))
	for i, o := range batch.Operations {
		if o.Sprint == 0 {
			o.Sprint = batch.Sprint
		}
		op, err := r.toOp(path.Dir(filePath), o)
		if err != nil {
			return nil, fmt.Errorf("operation %d (%s): %w", i, o.Type, err)
		}
		ops = append(ops, op)
	}

	return ops, nil
}

// Batch represents the YAML structure of an operations file.
type Batch struct {
	// Sprint is the default sprint of the operations that don't set one.
	Sprint     int             `yaml:"sprint"`
	Operations []OperationYAML `yaml:"operations"`
}

// OperationYAML represents a single operation on the YAML file, fields are used
// depending on the operation type.
type OperationYAML struct {
	Type     string `yaml:"type"`
	Sprint   int    `yaml:"sprint"`
	Goal     int    `yaml:"goal"`
	SideGoal bool   `yaml:"side_goal"`
	Comment  string `yaml:"comment"`
	Author   string `yaml:"author"`
	Text     string `yaml:"text"`
	Markdown string `yaml:"markdown"`
	Name     string `yaml:"name"`
	File     string `yaml:"file"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

func (r *OperationsYAMLRepository) toOp(baseDir string, o OperationYAML) (operation.Op, error) {
	if o.Sprint <= 0 {
		return nil, fmt.Errorf("sprint is required: %w", model.ErrNotValid)
	}

	goal := operation.GoalRef{GoalID: o.Goal, SideGoal: o.SideGoal}
	switch o.Type {
	case operation.TypeAddComment:
		return operation.AddComment{SprintID: o.Sprint, Goal: goal, Author: o.Author, Text: o.Text}, nil
	case operation.TypeUpdateComment:
		if o.Comment == "" {
			return nil, fmt.Errorf("comment is required: %w", model.ErrNotValid)
		}
		return operation.UpdateComment{SprintID: o.Sprint, Goal: goal, CommentID: o.Comment, Text: o.Text}, nil
	case operation.TypeDeleteComment:
		if o.Comment == "" {
			return nil, fmt.Errorf("comment is required: %w", model.ErrNotValid)
		}
		return operation.DeleteComment{SprintID: o.Sprint, Goal: goal, CommentID: o.Comment}, nil
	case operation.TypeSaveAchievements:
		return operation.SaveAchievements{SprintID: o.Sprint, Markdown: o.Markdown}, nil
	case operation.TypeSaveNextSprintPlans:
		return operation.SaveNextSprintPlans{SprintID: o.Sprint, Markdown: o.Markdown}, nil
	case operation.TypeCloseSprint:
		return operation.CloseSprint{SprintID: o.Sprint}, nil
	case operation.TypeReopenSprint:
		return operation.ReopenSprint{SprintID: o.Sprint}, nil
	case operation.TypeUploadMedia:
		if o.File == "" {
			return nil, fmt.Errorf("file is required: %w", model.ErrNotValid)
		}
		name := o.Name
		if name == "" {
			name = path.Base(o.File)
		}
		data, err := fs.ReadFile(r.fs, path.Join(baseDir, o.File))
		if err != nil {
			return nil, fmt.Errorf("reading media file: %w", err)
		}
		return operation.UploadMedia{SprintID: o.Sprint, Name: name, Data: data}, nil
	case operation.TypeDeleteMedia:
		return operation.DeleteMedia{SprintID: o.Sprint, Name: o.Name}, nil
	case operation.TypeRenameMedia:
		return operation.RenameMedia{SprintID: o.Sprint, From: o.From, To: o.To}, nil
	default:
		return nil, fmt.Errorf("unknown operation type %q: %w", o.Type, model.ErrNotValid)
	}
}
