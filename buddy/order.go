package buddy

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/pagealloc/memutils"
)

// PFN is a page frame number: the dense integer identity of a single page
type PFN uint64

// NoPFN marks the end of a free list and is returned by page tables for pages they do not map
const NoPFN PFN = math.MaxUint64

// Order is the exponent of a block's size: a block of order k spans 1<<k pages
type Order int

// MaxOrder is the number of distinct block orders. The largest block spans 1<<(MaxOrder-1) pages.
const MaxOrder Order = 17

// PagesPerBlock returns the number of pages that make up a single block of the given order
func PagesPerBlock(order Order) uint64 {
	return uint64(1) << order
}

// IsAligned returns true if pfn can begin a block of the given order
func IsAligned(pfn PFN, order Order) bool {
	return memutils.AlignDown(uint64(pfn), PagesPerBlock(order)) == uint64(pfn)
}

// Buddy returns the block that combines with the order-sized block at pfn to form a block
// of the next order. If pfn is aligned for order+1, the buddy is the next block; otherwise it is
// the previous one. The second return value is false if order is out of range or pfn is not aligned
// for order.
func Buddy(pfn PFN, order Order) (PFN, bool) {
	if order < 0 || order >= MaxOrder {
		return NoPFN, false
	}

	if !IsAligned(pfn, order) {
		return NoPFN, false
	}

	if IsAligned(pfn, order+1) {
		return pfn + PFN(PagesPerBlock(order)), true
	}

	return pfn - PFN(PagesPerBlock(order)), true
}

// OrderForPages returns the smallest order whose blocks hold at least pages pages
func OrderForPages(pages uint64) (Order, error) {
	if pages == 0 {
		return 0, errors.Wrap(memutils.ErrInvalidOrder, "a block must hold at least one page")
	}

	order := Order(memutils.Log2Ceil(pages))
	if order >= MaxOrder {
		return 0, errors.Wrapf(memutils.ErrInvalidOrder, "%d pages exceeds the largest block of %d pages", pages, PagesPerBlock(MaxOrder-1))
	}

	return order, nil
}

func validOrder(order Order) bool {
	return order >= 0 && order < MaxOrder
}
