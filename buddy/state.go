package buddy

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/pagealloc/memutils"
	"golang.org/x/exp/slog"
)

type validateFunc func() error

func (f validateFunc) Validate() error { return f() }

var _ memutils.Validatable = &Allocator{}

func (a *Allocator) freeAreaSnapshot() [][]PFN {
	areas := make([][]PFN, MaxOrder)
	for order := range a.freeAreas {
		for block := a.freeAreas[order]; block != NoPFN; block = a.page(block).next {
			areas[order] = append(areas[order], block)
		}
	}
	return areas
}

// FreeAreas returns the pfn of every free block, indexed by order, in ascending pfn order
func (a *Allocator) FreeAreas() [][]PFN {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.freeAreaSnapshot()
}

// DumpState writes one debug line per order to the logger, listing the pfns of the free blocks
// at that order in hex
func (a *Allocator) DumpState() {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.logger.Debug("BUDDY STATE:")

	for order, blocks := range a.freeAreaSnapshot() {
		var line strings.Builder
		fmt.Fprintf(&line, "[%d]", order)
		for _, pfn := range blocks {
			fmt.Fprintf(&line, " %x", uint64(pfn))
		}

		a.logger.Debug(line.String(), slog.Int("Order", order), slog.Int("FreeBlocks", len(blocks)))
	}
}

func (a *Allocator) sumFreePages() int {
	var sum int
	for order := range a.freeAreas {
		for block := a.freeAreas[order]; block != NoPFN; block = a.page(block).next {
			sum += int(PagesPerBlock(Order(order)))
		}
	}
	return sum
}

// SumFreePages returns the number of pages in all free blocks
func (a *Allocator) SumFreePages() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.sumFreePages()
}

// FreeBlockCount returns the number of free blocks across every order
func (a *Allocator) FreeBlockCount() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	var count int
	for _, blocks := range a.freeAreaSnapshot() {
		count += len(blocks)
	}
	return count
}

// AllocationCount returns the number of live allocations, including reserved pages
func (a *Allocator) AllocationCount() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.live.Count()
}

// PageCount returns the number of pages handed to Init
func (a *Allocator) PageCount() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.pageCount
}

// AddStatistics sums this allocator's page statistics into stats
func (a *Allocator) AddStatistics(stats *memutils.Statistics) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	stats.PoolCount++
	stats.PoolPages += a.pageCount
	stats.AllocationCount += a.live.Count()
	stats.AllocationPages += a.allocatedPages
}

// AddDetailedStatistics sums this allocator's page statistics, including the size of every free
// block and allocation, into stats
func (a *Allocator) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	stats.PoolCount++
	stats.PoolPages += a.pageCount

	a.live.Iter(func(pfn PFN, order Order) bool {
		stats.AddAllocation(int(PagesPerBlock(order)))
		return false
	})

	for order, blocks := range a.freeAreaSnapshot() {
		for range blocks {
			stats.AddFreeBlock(int(PagesPerBlock(Order(order))))
		}
	}
}

// PrintDetailedMap populates a json object with the allocator's totals and the contents of every
// free list
func (a *Allocator) PrintDetailedMap(json *jwriter.ObjectState) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	json.Name("Algorithm").String(a.Name())
	json.Name("Flags").String(a.flags.String())
	json.Name("BasePFN").Int(int(a.base))
	json.Name("TotalPages").Int(a.pageCount)
	json.Name("FreePages").Int(a.sumFreePages())
	json.Name("Allocations").Int(a.live.Count())
	json.Name("AllocatedPages").Int(a.allocatedPages)

	areas := json.Name("FreeAreas").Array()
	for order, blocks := range a.freeAreaSnapshot() {
		area := areas.Object()
		area.Name("Order").Int(order)
		area.Name("PagesPerBlock").Int(int(PagesPerBlock(Order(order))))

		pfns := area.Name("Blocks").Array()
		for _, pfn := range blocks {
			pfns.Int(int(pfn))
		}
		pfns.End()
		area.End()
	}
	areas.End()
}

// StateJSON renders PrintDetailedMap as a standalone json document
func (a *Allocator) StateJSON() ([]byte, error) {
	writer := jwriter.NewWriter()
	obj := writer.Object()
	a.PrintDetailedMap(&obj)
	obj.End()

	return writer.Bytes(), writer.Error()
}

// Validate performs internal consistency checks on the free-area table and the live allocation
// index. It walks every page in the pool, so it should only be run for diagnostics.
func (a *Allocator) Validate() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.validate()
}

func (a *Allocator) validate() error {
	if a.pageCount == 0 {
		for order, head := range a.freeAreas {
			if head != NoPFN {
				return errors.Errorf("order %d has free blocks but the allocator manages no pages", order)
			}
		}

		if a.live.Count() != 0 {
			return errors.New("the allocator manages no pages but has live allocations")
		}

		return nil
	}

	covered := make([]bool, a.pageCount)
	heads := make([]bool, a.pageCount)

	cover := func(pfn PFN, order Order) error {
		size := PagesPerBlock(order)
		if !a.inPool(pfn) || uint64(pfn-a.base)+size > uint64(a.pageCount) {
			return errors.Errorf("block %#x at order %d does not fit inside the pool", pfn, order)
		}

		start := uint64(pfn - a.base)
		for i := start; i < start+size; i++ {
			if covered[i] {
				return errors.Errorf("page %#x is covered by more than one block", a.base+PFN(i))
			}
			covered[i] = true
		}

		return nil
	}

	var freePages int
	for order := Order(0); order < MaxOrder; order++ {
		prev := NoPFN
		steps := 0

		for block := a.freeAreas[order]; block != NoPFN; {
			steps++
			if steps > a.pageCount {
				return errors.Errorf("the order-%d free list contains a cycle", order)
			}

			page := a.table.PFNToPage(block)
			if page == nil {
				return errors.Errorf("block %#x in the order-%d free list is not mapped by the page table", block, order)
			}

			if !IsAligned(block, order) {
				return errors.Errorf("block %#x in the order-%d free list is not aligned for its order", block, order)
			}

			if prev != NoPFN && block <= prev {
				return errors.Errorf("the order-%d free list is not in ascending order: %#x follows %#x", order, block, prev)
			}

			if a.live.Has(block) {
				return errors.Errorf("block %#x is in the order-%d free list but is also allocated", block, order)
			}

			err := cover(block, order)
			if err != nil {
				return err
			}
			heads[block-a.base] = true

			if order < MaxOrder-1 && IsAligned(block, order+1) && page.next == block+PFN(PagesPerBlock(order)) {
				return errors.Errorf("buddies %#x and %#x are both free at order %d but were not merged", block, page.next, order)
			}

			freePages += int(PagesPerBlock(order))
			prev = block
			block = page.next
		}
	}

	var allocatedPages int
	var liveErr error
	a.live.Iter(func(pfn PFN, order Order) bool {
		if !IsAligned(pfn, order) {
			liveErr = errors.Errorf("allocation %#x is not aligned for its order %d", pfn, order)
			return true
		}

		liveErr = cover(pfn, order)
		if liveErr != nil {
			return true
		}

		allocatedPages += int(PagesPerBlock(order))
		return false
	})
	if liveErr != nil {
		return liveErr
	}

	if allocatedPages != a.allocatedPages {
		return errors.Errorf("the allocated page count is %d, but the live allocations only added up to %d", a.allocatedPages, allocatedPages)
	}

	if freePages+allocatedPages != a.pageCount {
		return errors.Errorf("the pool holds %d pages, but free blocks (%d pages) and allocations (%d pages) do not add up to it", a.pageCount, freePages, allocatedPages)
	}

	for index, isHead := range heads {
		if isHead {
			continue
		}

		pfn := a.base + PFN(index)
		page := a.table.PFNToPage(pfn)
		if page == nil {
			return errors.Errorf("page %#x is inside the pool but not mapped by the page table", pfn)
		}

		if page.next != NoPFN {
			return errors.Errorf("page %#x does not head a free block but still has a free-list link", pfn)
		}
	}

	return nil
}
