// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates malformed caller input (bad key or pattern).
var ErrValidation = errors.New("validation failed")

// ErrUnavailable indicates a cache tier backend could not be reached.
var ErrUnavailable = errors.New("tier unavailable")
