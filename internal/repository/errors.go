package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist or a conditional update matched no row.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a unique constraint rejected the write.
	ErrConflict = errors.New("repository: conflict")
)
