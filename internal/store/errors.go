package store

import "errors"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateRequestID is returned when an observation insert collides
// with an existing request id. Fatal to that observation; not retried.
var ErrDuplicateRequestID = errors.New("duplicate request id")
