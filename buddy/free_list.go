package buddy

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// invariantViolation panics with an assertion failure. Free-list corruption is never reported
// as an ordinary error: once a list is inconsistent, no further operation on the allocator is safe.
func invariantViolation(format string, args ...any) {
	panic(errors.AssertionFailedf(format, args...))
}

func (a *Allocator) page(pfn PFN) *Page {
	page := a.table.PFNToPage(pfn)
	if page == nil {
		invariantViolation("pfn %#x is not mapped by the page table", pfn)
	}
	return page
}

// insertBlock links the block at pfn into the free list for order, keeping the list in ascending
// pfn order. It returns the slot that now points at the block.
func (a *Allocator) insertBlock(pfn PFN, order Order) *PFN {
	slot := &a.freeAreas[order]
	for *slot != NoPFN && pfn > *slot {
		slot = &a.page(*slot).next
	}

	if *slot == pfn {
		invariantViolation("block %#x is already in the order-%d free list", pfn, order)
	}

	a.page(pfn).next = *slot
	*slot = pfn

	return slot
}

// removeBlock unlinks the block at pfn from the free list for order. The block must be present.
func (a *Allocator) removeBlock(pfn PFN, order Order) {
	slot := &a.freeAreas[order]
	for *slot != NoPFN && *slot != pfn {
		slot = &a.page(*slot).next
	}

	if *slot != pfn {
		invariantViolation("block %#x is not in the order-%d free list", pfn, order)
	}

	page := a.page(pfn)
	*slot = page.next
	page.next = NoPFN
}

// splitBlock replaces the free block at pfn with its two halves in the list below and returns the
// lower half. Order-0 blocks cannot be split and are returned unchanged.
func (a *Allocator) splitBlock(pfn PFN, order Order) PFN {
	if !validOrder(order) {
		invariantViolation("cannot split a block at order %d", order)
	}

	if !IsAligned(pfn, order) {
		invariantViolation("block %#x is not aligned for order %d", pfn, order)
	}

	if order == 0 {
		a.logger.Debug("order 0 block cannot be split", slog.Uint64("PFN", uint64(pfn)))
		return pfn
	}

	a.removeBlock(pfn, order)
	a.insertBlock(pfn, order-1)
	a.insertBlock(pfn+PFN(PagesPerBlock(order-1)), order-1)

	return pfn
}

// mergeBlock replaces the free block at pfn and its free buddy with a single block in the list
// above and returns the merged block. Both halves must already be free at order. It returns false
// if the merged block would not fit in the free-area table.
func (a *Allocator) mergeBlock(pfn PFN, order Order) (PFN, bool) {
	if order < 0 || order > MaxOrder-2 {
		return NoPFN, false
	}

	buddy, ok := Buddy(pfn, order)
	if !ok {
		invariantViolation("block %#x is not aligned for order %d", pfn, order)
	}

	start := pfn
	if buddy < pfn {
		start = buddy
	}

	a.removeBlock(start, order)
	a.removeBlock(start+PFN(PagesPerBlock(order)), order)

	return *a.insertBlock(start, order+1), true
}

// buddyIsFree reports whether the buddy of the free block at pfn is also free at order.
//
// The check only looks at the two blocks' links: since each free list is strictly ascending and
// buddies are adjacent, two free buddies are always list neighbors, so one links to the other.
// This depends on removeBlock and Init clearing the link of every page that does not head a free
// block.
func (a *Allocator) buddyIsFree(pfn PFN, order Order) bool {
	buddy, ok := Buddy(pfn, order)
	if !ok || !a.inPool(buddy) {
		return false
	}

	buddyPage := a.table.PFNToPage(buddy)
	if buddyPage == nil {
		return false
	}

	return a.page(pfn).next == buddy || buddyPage.next == pfn
}
