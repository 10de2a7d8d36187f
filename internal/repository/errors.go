// Package repository defines error values reused across multiple
// repositories so handlers can map failures to HTTP responses without
// inspecting driver errors.
package repository

import "errors"

// ErrDuplicate is returned when an insert violates a unique constraint,
// such as registering an already-taken username or email. Handlers
// translate this into HTTP 409.
var ErrDuplicate = errors.New("duplicate entry")

// ErrNotFound is returned when an operation targets a row that does not
// exist or is soft-deleted. Handlers translate this into HTTP 404.
var ErrNotFound = errors.New("not found")
