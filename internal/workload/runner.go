package workload

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/pagealloc/buddy"
	"github.com/vkngwrapper/pagealloc/memutils"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

// Allocation is a block still held when a workload finishes
type Allocation struct {
	Label string
	PFN   buddy.PFN
	Order buddy.Order
}

// Result is the allocator state left behind by a workload
type Result struct {
	Allocator  *buddy.Allocator
	Statistics memutils.DetailedStatistics
	FreeAreas  [][]buddy.PFN
	// Live lists the blocks that were never freed, in pfn order
	Live []Allocation
}

type runner struct {
	logger    *slog.Logger
	table     *buddy.SlicePageTable
	allocator *buddy.Allocator

	live   map[buddy.PFN]Allocation
	labels map[string]buddy.PFN
}

// Run builds a pool of script.Pages pages starting at script.BasePFN and runs each step against
// it in order, using an allocator created with options. A step whose outcome differs from what it
// expects stops the run with an error naming the step.
func Run(logger *slog.Logger, script *Script, options buddy.CreateOptions) (*Result, error) {
	if err := script.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	pages := make([]buddy.Page, script.Pages)
	table := buddy.NewPageTable(buddy.PFN(script.BasePFN), pages)
	allocator := buddy.New(logger, table, options)

	if err := allocator.Init(pages); err != nil {
		return nil, errors.Wrap(err, "initializing the page pool")
	}

	r := &runner{
		logger:    logger,
		table:     table,
		allocator: allocator,
		live:      make(map[buddy.PFN]Allocation),
		labels:    make(map[string]buddy.PFN),
	}

	for index, step := range script.Steps {
		logger.Debug("Workload step", slog.Int("Index", index), slog.String("Op", string(step.Op)))

		if err := r.run(step); err != nil {
			return nil, errors.Wrapf(err, "step %d (%s)", index, step.Op)
		}
	}

	return r.result(), nil
}

func (r *runner) run(step Step) error {
	switch step.Op {
	case OpAlloc:
		return r.alloc(step)
	case OpFree:
		return r.free(step)
	case OpReserve:
		return r.reserve(step)
	case OpDump:
		r.allocator.DumpState()
		return nil
	case OpValidate:
		return errors.Wrap(r.allocator.Validate(), "allocator state is inconsistent")
	}

	return errors.Newf("unknown op %q", step.Op)
}

func (r *runner) alloc(step Step) error {
	order, err := step.order()
	if err != nil {
		return err
	}

	page, err := r.allocator.AllocPages(order)
	if err != nil {
		if step.ExpectFail && (errors.Is(err, memutils.ErrOutOfMemory) || errors.Is(err, memutils.ErrInvalidOrder)) {
			r.logger.Debug("  Allocation failed as expected", slog.Int("Order", int(order)))
			return nil
		}
		return err
	}

	pfn := r.table.PageToPFN(page)
	if step.ExpectFail {
		return errors.Newf("allocation at order %d returned pfn %#x but was expected to fail", order, pfn)
	}

	page.UserData = step.Label
	return r.record(Allocation{Label: step.Label, PFN: pfn, Order: order})
}

func (r *runner) free(step Step) error {
	var pfn buddy.PFN
	if step.Label != "" {
		labelled, ok := r.labels[step.Label]
		if !ok {
			return errors.Newf("no live allocation is labelled %q", step.Label)
		}
		pfn = labelled
	} else {
		pfn = buddy.PFN(*step.PFN)
	}

	allocation, ok := r.live[pfn]
	if !ok {
		return errors.Newf("no live allocation starts at pfn %#x", pfn)
	}

	page := r.table.PFNToPage(pfn)
	page.UserData = nil
	r.allocator.FreePages(page, allocation.Order)

	delete(r.live, pfn)
	if allocation.Label != "" {
		delete(r.labels, allocation.Label)
	}

	return nil
}

func (r *runner) reserve(step Step) error {
	pfn := buddy.PFN(*step.PFN)
	page := r.table.PFNToPage(pfn)

	reserved := r.allocator.ReservePage(page)
	if reserved == step.ExpectFail {
		if reserved {
			return errors.Newf("pfn %#x was reserved but was expected to be unavailable", pfn)
		}
		return errors.Newf("pfn %#x could not be reserved", pfn)
	}

	if !reserved {
		return nil
	}

	page.UserData = step.Label
	return r.record(Allocation{Label: step.Label, PFN: pfn, Order: 0})
}

func (r *runner) record(allocation Allocation) error {
	if allocation.Label != "" {
		if _, taken := r.labels[allocation.Label]; taken {
			return errors.Newf("label %q is already bound to a live allocation", allocation.Label)
		}
		r.labels[allocation.Label] = allocation.PFN
	}

	r.live[allocation.PFN] = allocation
	return nil
}

func (r *runner) result() *Result {
	result := &Result{
		Allocator: r.allocator,
		FreeAreas: r.allocator.FreeAreas(),
	}

	result.Statistics.Clear()
	r.allocator.AddDetailedStatistics(&result.Statistics)

	pfns := maps.Keys(r.live)
	slices.Sort(pfns)
	for _, pfn := range pfns {
		result.Live = append(result.Live, r.live[pfn])
	}

	return result
}
