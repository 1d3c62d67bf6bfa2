// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidType indicates an unknown task type was supplied.
var ErrInvalidType = errors.New("invalid task type")
