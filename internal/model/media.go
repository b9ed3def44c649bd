package model

import (
	"fmt"
	"path"
	"regexp"
)

var mediaNameRegexp = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// MediaFile is a binary attached to a sprint review.
type MediaFile struct {
	SprintID int
	Name     string
	Path     string
	Version  string
	Size     int64
}

// MediaPath returns the store path of a sprint media file.
func MediaPath(sprintID int, name string) string {
	return path.Join(SprintMediaDir(sprintID), name)
}

// ValidateMediaName checks a media file name can be safely used as a path segment.
func ValidateMediaName(name string) error {
	if len(name) > 255 || !mediaNameRegexp.MatchString(name) {
		return fmt.Errorf("invalid media name %q: %w", name, ErrNotValid)
	}

	return nil
}
