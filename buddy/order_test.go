package buddy_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/pagealloc/buddy"
	"github.com/vkngwrapper/pagealloc/memutils"
)

func TestPagesPerBlock(t *testing.T) {
	require.Equal(t, uint64(1), buddy.PagesPerBlock(0))
	require.Equal(t, uint64(4), buddy.PagesPerBlock(2))
	require.Equal(t, uint64(65536), buddy.PagesPerBlock(buddy.MaxOrder-1))
}

func TestIsAligned(t *testing.T) {
	require.True(t, buddy.IsAligned(0, 16))
	require.True(t, buddy.IsAligned(7, 0))
	require.True(t, buddy.IsAligned(8, 3))
	require.False(t, buddy.IsAligned(4, 3))
	require.False(t, buddy.IsAligned(1, 1))
}

func TestBuddy(t *testing.T) {
	pfn, ok := buddy.Buddy(0, 0)
	require.True(t, ok)
	require.Equal(t, buddy.PFN(1), pfn)

	pfn, ok = buddy.Buddy(1, 0)
	require.True(t, ok)
	require.Equal(t, buddy.PFN(0), pfn)

	pfn, ok = buddy.Buddy(8, 2)
	require.True(t, ok)
	require.Equal(t, buddy.PFN(12), pfn)

	pfn, ok = buddy.Buddy(12, 2)
	require.True(t, ok)
	require.Equal(t, buddy.PFN(8), pfn)

	_, ok = buddy.Buddy(2, 2)
	require.False(t, ok, "misaligned blocks have no buddy")

	_, ok = buddy.Buddy(0, buddy.MaxOrder)
	require.False(t, ok)
}

func TestOrderForPages(t *testing.T) {
	order, err := buddy.OrderForPages(1)
	require.NoError(t, err)
	require.Equal(t, buddy.Order(0), order)

	order, err = buddy.OrderForPages(5)
	require.NoError(t, err)
	require.Equal(t, buddy.Order(3), order)

	order, err = buddy.OrderForPages(buddy.PagesPerBlock(buddy.MaxOrder - 1))
	require.NoError(t, err)
	require.Equal(t, buddy.MaxOrder-1, order)

	_, err = buddy.OrderForPages(0)
	require.True(t, errors.Is(err, memutils.ErrInvalidOrder))

	_, err = buddy.OrderForPages(buddy.PagesPerBlock(buddy.MaxOrder-1) + 1)
	require.True(t, errors.Is(err, memutils.ErrInvalidOrder))
}
