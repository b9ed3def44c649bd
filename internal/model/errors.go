package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrConflict is returned when a write is rejected because the version
	// token supplied is not the current one.
	ErrConflict = errors.New("version conflict")
	// ErrPermissionDenied is returned when the store rejects the credentials.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrStore is returned on any other unexpected store failure.
	ErrStore = errors.New("store error")
)
