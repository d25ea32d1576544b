// Package blobstore defines the port for storing uploaded files.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInvalidName is returned for object names a store refuses to address.
var ErrInvalidName = errors.New("invalid object name")

// Store persists an object and returns the public URL it is served from.
type Store interface {
	Put(ctx context.Context, name, contentType string, size int64, body io.Reader) (url string, err error)
}

// ValidName reports whether name is a single visible path element, the form
// every store accepts.
func ValidName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("name is required: %w", ErrInvalidName)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("name %q contains a path separator: %w", name, ErrInvalidName)
	case name[0] == '.':
		return fmt.Errorf("name %q starts with '.': %w", name, ErrInvalidName)
	}
	return nil
}
