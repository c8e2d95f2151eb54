package foldertree

import "errors"

var (
	// ErrNotFound covers both a missing folder and a folder owned by
	// someone else; callers must not be able to tell them apart.
	ErrNotFound = errors.New("folder not found")

	// ErrParentNotFound is returned when a referenced parent/target folder
	// is not owned by the caller. The boundary maps it to 403 with the same
	// "not found" wording, so existence is still hidden.
	ErrParentNotFound = errors.New("parent folder not found")

	// ErrInvalidName rejects names that are empty, too long, or contain
	// filesystem-unsafe characters.
	ErrInvalidName = errors.New("folder name must be between 1-255 chars and cannot contain special characters")
)
