package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Common errors returned by remote store operations.
var (
	// ErrRecordNotFound is returned when a read or update targets a record
	// that does not exist. Deletes never return it.
	ErrRecordNotFound = errors.New("remote record not found")

	// ErrZoneNotFound is returned when records are accessed before the
	// zone has been provisioned.
	ErrZoneNotFound = errors.New("remote zone not found")

	// ErrInvalidZone is returned at construction for an empty or
	// malformed zone name.
	ErrInvalidZone = errors.New("invalid zone name")
)

// NetworkError reports a transport-level failure talking to the store.
// The sync engine does not retry these; the next trigger does.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("remote %s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err is a transport failure rather than a
// reply from the store.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, context.DeadlineExceeded)
}

// wrapErr annotates err with the operation, turning transport failures into
// *NetworkError. Context cancellation is passed through untouched.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if IsNetworkError(err) {
		return &NetworkError{Op: op, Err: err}
	}
	return fmt.Errorf("remote %s: %w", op, err)
}
