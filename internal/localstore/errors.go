package localstore

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Delete when no record has the given id.
//
//	if errors.Is(err, localstore.ErrNotFound) {
//	    // nothing to delete
//	}
var ErrNotFound = errors.New("record not found")

// StorageError reports a failure to decode or write a collection file.
// The in-memory cache is left untouched when one is returned.
type StorageError struct {
	Op   string // "read", "decode", "encode" or "write"
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("local storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
