// Package repository holds the errors shared by every storage backend.
package repository

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrAccountNotFound = errors.New("account not found")
	ErrBackend         = errors.New("storage backend unavailable")
)
