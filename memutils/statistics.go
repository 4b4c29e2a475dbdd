package memutils

import "math"

// Statistics is a page-granular summary of a page allocator
type Statistics struct {
	// PoolCount is the number of allocators summed into this value
	PoolCount int
	// PoolPages is the number of pages handed to Init across all pools
	PoolPages int
	// AllocationCount is the number of live allocations, reservations included
	AllocationCount int
	// AllocationPages is the number of pages covered by live allocations
	AllocationPages int
}

func (s *Statistics) Clear() {
	s.PoolCount = 0
	s.PoolPages = 0
	s.AllocationCount = 0
	s.AllocationPages = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.PoolCount += other.PoolCount
	s.PoolPages += other.PoolPages
	s.AllocationCount += other.AllocationCount
	s.AllocationPages += other.AllocationPages
}

// FreePages is the number of pages not covered by a live allocation
func (s *Statistics) FreePages() int {
	return s.PoolPages - s.AllocationPages
}

type DetailedStatistics struct {
	Statistics
	FreeBlockCount     int
	AllocationPagesMin int
	AllocationPagesMax int
	FreeBlockPagesMin  int
	FreeBlockPagesMax  int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.FreeBlockCount = 0
	s.AllocationPagesMin = math.MaxInt
	s.AllocationPagesMax = 0
	s.FreeBlockPagesMin = math.MaxInt
	s.FreeBlockPagesMax = 0
}

func (s *DetailedStatistics) AddFreeBlock(pages int) {
	s.FreeBlockCount++

	if pages < s.FreeBlockPagesMin {
		s.FreeBlockPagesMin = pages
	}

	if pages > s.FreeBlockPagesMax {
		s.FreeBlockPagesMax = pages
	}
}

func (s *DetailedStatistics) AddAllocation(pages int) {
	s.AllocationCount++
	s.AllocationPages += pages

	if pages < s.AllocationPagesMin {
		s.AllocationPagesMin = pages
	}

	if pages > s.AllocationPagesMax {
		s.AllocationPagesMax = pages
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.FreeBlockCount += other.FreeBlockCount

	if other.FreeBlockPagesMin < s.FreeBlockPagesMin {
		s.FreeBlockPagesMin = other.FreeBlockPagesMin
	}

	if other.FreeBlockPagesMax > s.FreeBlockPagesMax {
		s.FreeBlockPagesMax = other.FreeBlockPagesMax
	}

	if other.AllocationPagesMin < s.AllocationPagesMin {
		s.AllocationPagesMin = other.AllocationPagesMin
	}

	if other.AllocationPagesMax > s.AllocationPagesMax {
		s.AllocationPagesMax = other.AllocationPagesMax
	}
}
