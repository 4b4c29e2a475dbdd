package memutils

import (
	"math/bits"

	cerrors "github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint | ~uint64
}

func CheckPow2[T Number](number T, name string) error {
	if number == 0 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// AlignDown rounds value down to a multiple of alignment, which must be a power of two
func AlignDown[T Number](value T, alignment T) T {
	return value &^ (alignment - 1)
}

// Log2Floor returns the index of the most significant set bit. It returns -1 for 0.
func Log2Floor(value uint64) int {
	return 63 - bits.LeadingZeros64(value)
}

// Log2Ceil returns the smallest n such that 1<<n >= value. It returns 0 for 0 and 1.
func Log2Ceil(value uint64) int {
	if value <= 1 {
		return 0
	}
	return 64 - bits.LeadingZeros64(value-1)
}
