package buddy

import "unsafe"

// Page is the per-page record owned by the host. The allocator writes the free-list link while the
// page heads a free block and never allocates or frees Page values itself.
type Page struct {
	next PFN

	// UserData belongs to the host and is never read by the allocator
	UserData any
}

//go:generate mockgen -source page.go -destination ./mocks/page_table.go -package mock_buddy

// PageTable translates between page frame numbers and the host's page records. It must be a stable
// bijection for as long as an Allocator uses it.
type PageTable interface {
	// PFNToPage returns nil if the pfn is not mapped
	PFNToPage(pfn PFN) *Page
	// PageToPFN returns NoPFN if the page is not mapped
	PageToPFN(page *Page) PFN
}

const pageRecordSize = unsafe.Sizeof(Page{})

// SlicePageTable maps a contiguous slice of pages onto the pfn range [base, base+len(pages))
type SlicePageTable struct {
	base  PFN
	pages []Page
}

var _ PageTable = &SlicePageTable{}

func NewPageTable(base PFN, pages []Page) *SlicePageTable {
	return &SlicePageTable{
		base:  base,
		pages: pages,
	}
}

func (t *SlicePageTable) Base() PFN { return t.base }

func (t *SlicePageTable) Len() int { return len(t.pages) }

func (t *SlicePageTable) PFNToPage(pfn PFN) *Page {
	if pfn < t.base || pfn == NoPFN {
		return nil
	}

	index := uint64(pfn - t.base)
	if index >= uint64(len(t.pages)) {
		return nil
	}

	return &t.pages[index]
}

func (t *SlicePageTable) PageToPFN(page *Page) PFN {
	if page == nil || len(t.pages) == 0 {
		return NoPFN
	}

	start := uintptr(unsafe.Pointer(&t.pages[0]))
	addr := uintptr(unsafe.Pointer(page))
	if addr < start {
		return NoPFN
	}

	offset := addr - start
	if offset%pageRecordSize != 0 || offset/pageRecordSize >= uintptr(len(t.pages)) {
		return NoPFN
	}

	return t.base + PFN(offset/pageRecordSize)
}
