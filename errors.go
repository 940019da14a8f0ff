package main

import (
	"errors"
	"fmt"
)

// Sentinel errors. Wrap them with %w; match with errors.Is.
var (
	ErrFetch             = errors.New("fetch failed")
	ErrMalformedResponse = errors.New("malformed response")
	ErrGridIntegrity     = errors.New("grid integrity")
	ErrInvalidWeekday    = errors.New("invalid weekday")
	ErrInvalidDate       = errors.New("invalid date")
	ErrDateMismatch      = errors.New("date mismatch")
	ErrNotFound          = errors.New("not found")
)

// GridIntegrityError reports a start/hint count mismatch in one direction.
type GridIntegrityError struct {
	Direction Direction
	Starts    int
	Hints     int
}

func (e *GridIntegrityError) Error() string {
	return fmt.Sprintf("grid integrity: %d %s starts but %d %s hints", e.Starts, e.Direction, e.Hints, e.Direction)
}

func (e *GridIntegrityError) Unwrap() error { return ErrGridIntegrity }

// StatusError is a non-2xx answer from the puzzle feed.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}

func integrity(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrGridIntegrity, fmt.Sprintf(format, args...))
}
