package database

import "errors"

// Sentinel errors returned by every repository backend.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)
