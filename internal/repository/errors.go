package repository

import "errors"

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when a conditional update finds a
	// different version than the one it was conditioned on.
	ErrVersionConflict = errors.New("version conflict")
)
