package model

import "time"

// Document is a versioned object held by the document store.
type Document struct {
	Path    string
	Content []byte
	// Version is the token (content SHA) that must be sent back on update or delete.
	Version string
}

// EntryKind is the kind of a listed store entry.
type EntryKind string

const (
	EntryKindFile EntryKind = "file"
	EntryKindDir  EntryKind = "dir"
)

// Entry is a directory listing item.
type Entry struct {
	Name    string
	Path    string
	Version string
	Size    int64
	Kind    EntryKind
}

// RateLimitInfo is the last known outbound API quota state.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	UpdatedAt time.Time
}
