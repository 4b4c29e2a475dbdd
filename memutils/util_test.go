package memutils_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/pagealloc/memutils"
)

func TestCheckPow2(t *testing.T) {
	require.NoError(t, memutils.CheckPow2(1, "pages"))
	require.NoError(t, memutils.CheckPow2(uint64(1)<<16, "pages"))

	err := memutils.CheckPow2(12, "pages")
	require.Error(t, err)
	require.True(t, errors.Is(err, memutils.PowerOfTwoError))
	require.Contains(t, err.Error(), "pages is 12")

	require.ErrorIs(t, memutils.CheckPow2(0, "pages"), memutils.PowerOfTwoError)
}

func TestAlign(t *testing.T) {
	require.Equal(t, 8, memutils.AlignDown(13, 8))
	require.Equal(t, 16, memutils.AlignDown(16, 8))
	require.Equal(t, uint64(64), memutils.AlignDown(uint64(64), 64))
	require.Equal(t, uint64(0), memutils.AlignDown(uint64(63), 64))
}

func TestLog2(t *testing.T) {
	require.Equal(t, -1, memutils.Log2Floor(0))
	require.Equal(t, 0, memutils.Log2Floor(1))
	require.Equal(t, 3, memutils.Log2Floor(13))
	require.Equal(t, 0, memutils.Log2Ceil(1))
	require.Equal(t, 4, memutils.Log2Ceil(13))
	require.Equal(t, 4, memutils.Log2Ceil(16))
}
