package workload

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/pagealloc/buddy"
	"github.com/vkngwrapper/pagealloc/memutils"
	"gopkg.in/yaml.v2"
)

// Op names the allocator operation a Step performs
type Op string

const (
	OpAlloc    Op = "alloc"
	OpFree     Op = "free"
	OpReserve  Op = "reserve"
	OpDump     Op = "dump"
	OpValidate Op = "validate"
)

// Step is one operation in a Script.
//
// alloc takes either Order or Pages (a power of two) and binds the result to Label, if one is set.
// free releases the allocation named by Label, or the one starting at PFN. reserve takes PFN and
// binds the reserved page to Label. ExpectFail inverts the outcome an alloc or reserve step
// requires.
type Step struct {
	Op         Op      `yaml:"op"`
	Order      int     `yaml:"order"`
	Pages      int     `yaml:"pages"`
	PFN        *uint64 `yaml:"pfn"`
	Label      string  `yaml:"label"`
	ExpectFail bool    `yaml:"expectFail"`
}

// Script describes a page pool and the operations to run against it
type Script struct {
	Pages   int    `yaml:"pages"`
	BasePFN uint64 `yaml:"basePFN"`
	Steps   []Step `yaml:"steps"`
}

func Parse(data []byte) (*Script, error) {
	var script Script
	if err := yaml.UnmarshalStrict(data, &script); err != nil {
		return nil, errors.Wrap(err, "unmarshaling workload script")
	}

	if err := script.Validate(); err != nil {
		return nil, err
	}

	return &script, nil
}

func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading workload script %s", path)
	}

	return Parse(data)
}

func (s *Script) Validate() error {
	if s.Pages <= 0 {
		return errors.Newf("a workload needs a positive page count, got %d", s.Pages)
	}

	for index, step := range s.Steps {
		err := step.validate()
		if err != nil {
			return errors.Wrapf(err, "step %d", index)
		}
	}

	return nil
}

func (s Step) validate() error {
	switch s.Op {
	case OpAlloc:
		if s.Pages < 0 {
			return errors.Newf("pages must be positive, got %d", s.Pages)
		}
		if s.Pages != 0 {
			if s.Order != 0 {
				return errors.New("alloc takes either order or pages, not both")
			}
			return memutils.CheckPow2(s.Pages, "pages")
		}
	case OpFree:
		if s.Label == "" && s.PFN == nil {
			return errors.New("free needs a label or a pfn")
		}
		if s.ExpectFail {
			return errors.New("free cannot be expected to fail")
		}
	case OpReserve:
		if s.PFN == nil {
			return errors.New("reserve needs a pfn")
		}
	case OpDump, OpValidate:
		if s.ExpectFail {
			return errors.Newf("%s cannot be expected to fail", s.Op)
		}
	default:
		return errors.Newf("unknown op %q", s.Op)
	}

	return nil
}

func (s Step) order() (buddy.Order, error) {
	if s.Pages == 0 {
		return buddy.Order(s.Order), nil
	}

	return buddy.OrderForPages(uint64(s.Pages))
}
