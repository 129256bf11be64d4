// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow handlers to distinguish between
// different failure scenarios without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert collides with an existing row, such
// as saving the same movie twice.
var ErrConflict = errors.New("conflict")
