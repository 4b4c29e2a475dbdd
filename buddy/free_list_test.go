package buddy

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

// emptyAllocator manages count pages but has nothing in its free lists, so tests can lay
// out blocks by hand
func emptyAllocator(t *testing.T, count int) *Allocator {
	pages := make([]Page, count)
	allocator := New(nil, NewPageTable(0, pages), CreateOptions{})
	require.NoError(t, allocator.Init(pages))

	allocator.reset()
	allocator.pageCount = count
	for i := range pages {
		pages[i].next = NoPFN
	}

	return allocator
}

func requireAssertionPanic(t *testing.T, f func()) {
	t.Helper()

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")

		err, ok := r.(error)
		require.True(t, ok, "expected the panic value to be an error, got %v", r)
		require.True(t, errors.HasAssertionFailure(err), "%+v", err)
	}()

	f()
}

func TestInsertBlockKeepsAscendingOrder(t *testing.T) {
	allocator := emptyAllocator(t, 16)

	allocator.insertBlock(8, 0)
	allocator.insertBlock(2, 0)
	slot := allocator.insertBlock(5, 0)
	allocator.insertBlock(12, 0)

	require.Equal(t, PFN(5), *slot)
	require.Equal(t, []PFN{2, 5, 8, 12}, allocator.freeAreaSnapshot()[0])
}

func TestInsertBlockTwicePanics(t *testing.T) {
	allocator := emptyAllocator(t, 16)
	allocator.insertBlock(4, 2)

	requireAssertionPanic(t, func() {
		allocator.insertBlock(4, 2)
	})
}

func TestRemoveBlock(t *testing.T) {
	allocator := emptyAllocator(t, 16)
	allocator.insertBlock(0, 1)
	allocator.insertBlock(4, 1)
	allocator.insertBlock(8, 1)

	allocator.removeBlock(4, 1)
	require.Equal(t, []PFN{0, 8}, allocator.freeAreaSnapshot()[1])
	require.Equal(t, NoPFN, allocator.page(4).next)

	allocator.removeBlock(0, 1)
	allocator.removeBlock(8, 1)
	require.Equal(t, NoPFN, allocator.freeAreas[1])
}

func TestRemoveAbsentBlockPanics(t *testing.T) {
	allocator := emptyAllocator(t, 16)
	allocator.insertBlock(0, 1)

	requireAssertionPanic(t, func() {
		allocator.removeBlock(2, 1)
	})

	requireAssertionPanic(t, func() {
		allocator.removeBlock(0, 0)
	})
}

func TestSplitBlock(t *testing.T) {
	allocator := emptyAllocator(t, 16)
	allocator.insertBlock(8, 3)

	lower := allocator.splitBlock(8, 3)
	require.Equal(t, PFN(8), lower)

	areas := allocator.freeAreaSnapshot()
	require.Empty(t, areas[3])
	require.Equal(t, []PFN{8, 12}, areas[2])
}

func TestSplitOrderZeroIsNoop(t *testing.T) {
	allocator := emptyAllocator(t, 16)
	allocator.insertBlock(3, 0)

	require.Equal(t, PFN(3), allocator.splitBlock(3, 0))
	require.Equal(t, []PFN{3}, allocator.freeAreaSnapshot()[0])
}

func TestSplitMisalignedPanics(t *testing.T) {
	allocator := emptyAllocator(t, 16)
	allocator.insertBlock(2, 0)

	requireAssertionPanic(t, func() {
		allocator.splitBlock(2, 2)
	})
}

func TestMergeBlockFromEitherHalf(t *testing.T) {
	allocator := emptyAllocator(t, 16)
	allocator.insertBlock(4, 2)
	allocator.insertBlock(0, 2)

	merged, ok := allocator.mergeBlock(4, 2)
	require.True(t, ok)
	require.Equal(t, PFN(0), merged)

	areas := allocator.freeAreaSnapshot()
	require.Empty(t, areas[2])
	require.Equal(t, []PFN{0}, areas[3])

	allocator.insertBlock(8, 3)
	merged, ok = allocator.mergeBlock(0, 3)
	require.True(t, ok)
	require.Equal(t, PFN(0), merged)
	require.Equal(t, []PFN{0}, allocator.freeAreaSnapshot()[4])
}

func TestMergeOutOfRange(t *testing.T) {
	allocator := emptyAllocator(t, 16)

	_, ok := allocator.mergeBlock(0, MaxOrder-1)
	require.False(t, ok)

	_, ok = allocator.mergeBlock(0, -1)
	require.False(t, ok)
}

func TestMergeWithoutFreeBuddyPanics(t *testing.T) {
	allocator := emptyAllocator(t, 16)
	allocator.insertBlock(0, 1)

	requireAssertionPanic(t, func() {
		allocator.mergeBlock(0, 1)
	})
}

func TestBuddyIsFreeUsesListNeighbors(t *testing.T) {
	allocator := emptyAllocator(t, 16)
	allocator.insertBlock(4, 1)
	allocator.insertBlock(6, 1)
	allocator.insertBlock(10, 1)

	require.True(t, allocator.buddyIsFree(4, 1))
	require.True(t, allocator.buddyIsFree(6, 1))
	require.False(t, allocator.buddyIsFree(10, 1))
}

func TestBuddyOutsidePoolIsNeverFree(t *testing.T) {
	allocator := emptyAllocator(t, 13)
	allocator.insertBlock(12, 0)

	require.False(t, allocator.buddyIsFree(12, 0))
}
