package buddy_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/pagealloc/buddy"
)

func TestSlicePageTableBijection(t *testing.T) {
	pages := make([]buddy.Page, 10)
	table := buddy.NewPageTable(100, pages)

	require.Equal(t, buddy.PFN(100), table.Base())
	require.Equal(t, 10, table.Len())

	for i := range pages {
		pfn := table.PageToPFN(&pages[i])
		require.Equal(t, buddy.PFN(100+i), pfn)
		require.Same(t, &pages[i], table.PFNToPage(pfn))
	}
}

func TestSlicePageTableUnmapped(t *testing.T) {
	pages := make([]buddy.Page, 4)
	table := buddy.NewPageTable(8, pages)

	require.Nil(t, table.PFNToPage(7))
	require.Nil(t, table.PFNToPage(12))
	require.Nil(t, table.PFNToPage(buddy.NoPFN))

	other := make([]buddy.Page, 1)
	require.Equal(t, buddy.NoPFN, table.PageToPFN(&other[0]))
	require.Equal(t, buddy.NoPFN, table.PageToPFN(nil))

	empty := buddy.NewPageTable(0, nil)
	require.Equal(t, buddy.NoPFN, empty.PageToPFN(&pages[0]))
}
