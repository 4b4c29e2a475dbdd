package buddy

import (
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/pagealloc/internal/utils"
	"github.com/vkngwrapper/pagealloc/memutils"
	"golang.org/x/exp/slog"
)

// AlgorithmName is the name the buddy allocator reports to the host memory subsystem
const AlgorithmName = "buddy"

// Algorithm is the contract between a page allocation algorithm and the host memory subsystem
type Algorithm interface {
	// Name returns a static, friendly name used for debugging and algorithm selection
	Name() string
	// Init hands the algorithm every page it will manage. It must be called before any other method.
	Init(pages []Page) error
	// AllocPages allocates 1<<order contiguous pages and returns the first page of the range
	AllocPages(order Order) (*Page, error)
	// FreePages returns a block previously returned by AllocPages with the same order
	FreePages(page *Page, order Order)
	// ReservePage removes a single free page from circulation, returning false if it is not free
	ReservePage(page *Page) bool
	// DumpState writes the free-area table to the diagnostic log
	DumpState()
}

// CreateFlags indicate specific allocator behaviors to activate or deactivate
type CreateFlags uint32

const (
	// CreateSynchronized guards every Allocator method with an internal mutex. Without it, the
	// allocator does no locking of its own and the consumer must guarantee it is used from one
	// goroutine at a time.
	CreateSynchronized CreateFlags = 1 << iota
)

var createFlagsMapping = map[CreateFlags]string{
	CreateSynchronized: "CreateSynchronized",
}

func (f CreateFlags) String() string {
	if f == 0 {
		return "None"
	}

	var names []string
	for flag := CreateFlags(1); flag != 0 && flag <= f; flag <<= 1 {
		if f&flag == 0 {
			continue
		}

		name, ok := createFlagsMapping[flag]
		if !ok {
			name = "Unknown"
		}
		names = append(names, name)
	}

	return strings.Join(names, "|")
}

// CreateOptions contains optional settings when creating an allocator
type CreateOptions struct {
	Flags CreateFlags
}

// Allocator is a buddy page allocator. It keeps one ascending free list per order, threaded
// through the host's Page records, and serves power-of-two sized runs of pages by splitting
// larger blocks and eagerly coalescing freed buddies.
type Allocator struct {
	logger *slog.Logger
	table  PageTable
	mutex  utils.OptionalMutex
	flags  CreateFlags

	freeAreas [MaxOrder]PFN

	base           PFN
	pageCount      int
	allocatedPages int
	live           *swiss.Map[PFN, Order]
}

var _ Algorithm = &Allocator{}

// New creates an Allocator that translates between pfns and pages with table. It manages no pages
// until Init is called.
//
// logger - Receives debug output and the DumpState listing. A nil logger discards everything.
//
// table - The host's bijection between pfns and Page records
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, table PageTable, options CreateOptions) *Allocator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	allocator := &Allocator{
		logger: logger,
		table:  table,
		mutex: utils.OptionalMutex{
			UseMutex: options.Flags&CreateSynchronized != 0,
		},
		flags: options.Flags,
	}
	allocator.reset()

	return allocator
}

func (a *Allocator) reset() {
	for order := range a.freeAreas {
		a.freeAreas[order] = NoPFN
	}
	a.base = 0
	a.pageCount = 0
	a.allocatedPages = 0
	a.live = swiss.NewMap[PFN, Order](42)
}

func (a *Allocator) inPool(pfn PFN) bool {
	return pfn >= a.base && pfn != NoPFN && uint64(pfn-a.base) < uint64(a.pageCount)
}

func (a *Allocator) Name() string { return AlgorithmName }

// Flags returns the CreateFlags the allocator was built with
func (a *Allocator) Flags() CreateFlags { return a.flags }

// Init discards any previous state and places pages into the free-area table, carving them into the
// largest aligned blocks that fit, highest orders first. The pages must be mapped contiguously by
// the page table.
func (a *Allocator) Init(pages []Page) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.logger.Debug("Allocator::Init", slog.Int("PageCount", len(pages)))

	if len(pages) == 0 {
		return errors.Wrap(memutils.ErrNoPages, "buddy allocator")
	}

	base := a.table.PageToPFN(&pages[0])
	if base == NoPFN {
		return errors.New("the first page is not mapped by the page table")
	}

	last := a.table.PageToPFN(&pages[len(pages)-1])
	if last == NoPFN || last < base || uint64(last-base) != uint64(len(pages)-1) {
		return errors.Errorf("pages must be mapped contiguously starting at pfn %#x", base)
	}

	a.reset()
	a.base = base
	a.pageCount = len(pages)

	for i := range pages {
		pages[i].next = NoPFN
	}

	pfn := base
	remaining := uint64(len(pages))
	var placed [MaxOrder]int

	for remaining > 0 {
		order := Order(memutils.Log2Floor(remaining))
		if order > MaxOrder-1 {
			order = MaxOrder - 1
		}
		for !IsAligned(pfn, order) {
			order--
		}

		a.insertBlock(pfn, order)
		placed[order]++

		pfn += PFN(PagesPerBlock(order))
		remaining -= PagesPerBlock(order)
	}

	for order := MaxOrder - 1; order >= 0; order-- {
		if placed[order] > 0 {
			a.logger.Debug("  Initialized free area", slog.Int("Order", int(order)), slog.Int("Blocks", placed[order]))
		}
	}

	memutils.DebugValidate(validateFunc(a.validate))
	return nil
}

// AllocPages allocates 1<<order contiguous pages, aligned for order, and returns the page at the start
// of the block. If no free block of order or larger exists, the returned error wraps
// memutils.ErrOutOfMemory.
func (a *Allocator) AllocPages(order Order) (*Page, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.logger.Debug("Allocator::AllocPages", slog.Int("Order", int(order)))

	if !validOrder(order) {
		return nil, errors.Wrapf(memutils.ErrInvalidOrder, "cannot allocate at order %d", order)
	}

	current := order
	for current < MaxOrder && a.freeAreas[current] == NoPFN {
		current++
	}

	if current == MaxOrder {
		a.logger.Debug("  AllocPages FAILED", slog.Int("Order", int(order)))
		return nil, errors.Wrapf(memutils.ErrOutOfMemory, "order %d", order)
	}

	block := a.freeAreas[current]
	for ; current > order; current-- {
		block = a.splitBlock(block, current)
	}

	a.removeBlock(block, order)
	a.live.Put(block, order)
	a.allocatedPages += int(PagesPerBlock(order))

	memutils.DebugValidate(validateFunc(a.validate))
	return a.page(block), nil
}

// FreePages returns a block to the allocator and coalesces it with its buddies as far up the orders
// as they are free. The page and order must match a prior AllocPages call (or, at order 0, a prior
// ReservePage call). Any other input means the caller has broken the allocator's bookkeeping, and
// FreePages panics.
func (a *Allocator) FreePages(page *Page, order Order) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.logger.Debug("Allocator::FreePages", slog.Int("Order", int(order)))

	if !validOrder(order) {
		invariantViolation("cannot free a block at order %d", order)
	}

	pfn := a.table.PageToPFN(page)
	if !a.inPool(pfn) {
		invariantViolation("freed page is not managed by this allocator")
	}

	if !IsAligned(pfn, order) {
		invariantViolation("block %#x is not aligned for order %d", pfn, order)
	}

	liveOrder, ok := a.live.Get(pfn)
	if !ok {
		invariantViolation("block %#x is not allocated", pfn)
	}
	if liveOrder != order {
		invariantViolation("block %#x was allocated at order %d but freed at order %d", pfn, liveOrder, order)
	}

	a.live.Delete(pfn)
	a.allocatedPages -= int(PagesPerBlock(order))

	block := *a.insertBlock(pfn, order)
	for ; order < MaxOrder-1; order++ {
		if !a.buddyIsFree(block, order) {
			break
		}

		merged, ok := a.mergeBlock(block, order)
		if !ok {
			invariantViolation("cannot merge block %#x at order %d", block, order)
		}
		block = merged
		a.logger.Debug("  Merged buddies", slog.Uint64("PFN", uint64(block)), slog.Int("Order", int(order+1)))
	}

	memutils.DebugValidate(validateFunc(a.validate))
}

// ReservePage takes a single free page out of circulation, splitting whichever free block contains
// it. It returns false if page is nil or not currently free. A reserved page can be returned with
// FreePages at order 0.
func (a *Allocator) ReservePage(page *Page) bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if page == nil {
		return false
	}

	target := a.table.PageToPFN(page)
	a.logger.Debug("Allocator::ReservePage", slog.Uint64("PFN", uint64(target)))

	if !a.inPool(target) {
		return false
	}

	for order := Order(0); order < MaxOrder; order++ {
		for block := a.freeAreas[order]; block != NoPFN; block = a.page(block).next {
			if target < block {
				break
			}

			if target >= block+PFN(PagesPerBlock(order)) {
				continue
			}

			for order > 0 {
				block = a.splitBlock(block, order)
				order--

				if target >= block+PFN(PagesPerBlock(order)) {
					block, _ = Buddy(block, order)
				}
			}

			a.removeBlock(target, 0)
			a.live.Put(target, 0)
			a.allocatedPages++

			memutils.DebugValidate(validateFunc(a.validate))
			return true
		}
	}

	a.logger.Debug("  ReservePage FAILED", slog.Uint64("PFN", uint64(target)))
	return false
}
