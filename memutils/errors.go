package memutils

import "github.com/cockroachdb/errors"

var (
	// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
	PowerOfTwoError error = errors.New("number must be a power of two")
	// ErrOutOfMemory is returned when no free block large enough for a request exists. It is an
	// expected failure under memory pressure.
	ErrOutOfMemory error = errors.New("no free block large enough for the requested order")
	// ErrInvalidOrder is returned when a requested order falls outside [0, MaxOrder)
	ErrInvalidOrder error = errors.New("order is out of range")
	// ErrNoPages is returned when a page allocator is initialized with an empty page array
	ErrNoPages error = errors.New("cannot initialize an allocator with zero pages")
)
