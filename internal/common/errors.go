// Package common holds the error kinds and sector arithmetic shared by the
// disk image packages.
package common

import "errors"

// Error kinds wrapped by the partition and disk image code. Match them with
// errors.Is.
var (
	ErrUnsupported = errors.New("unsupported operation")
	ErrCorrupt     = errors.New("corrupt or invalid data")
	ErrNotFound    = errors.New("not found")
)
