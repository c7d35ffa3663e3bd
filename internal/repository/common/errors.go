package common

import "errors"

// Shared repository errors.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrStaleState    = errors.New("entity changed concurrently")
)
