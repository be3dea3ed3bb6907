package store

import "errors"

var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrUnknownDriver    = errors.New("unknown database driver")
)
