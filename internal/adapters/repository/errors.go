package repository

import (
	"errors"
	"fmt"
)

// Sentinel kinds for store errors.
var (
	// ErrUnavailable wraps any failure reaching the backing storage.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrClosed is returned by operations on a closed store. It matches
	// ErrUnavailable under errors.Is.
	ErrClosed = fmt.Errorf("%w: store closed", ErrUnavailable)
)

func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
