//go:build linux

package stack

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// mmapStack reserves class bytes of usable stack plus one leading guard
// page, mirroring spec.md §4.1: "a guard page is mprotect-ed PROT_NONE at
// the low end, detecting overflow as a SIGSEGV".
func (a *Allocator) mmapStack(class int) (*Stack, error) {
	guard := a.pageSize
	total := guard + class

	flags := unix.MAP_ANONYMOUS | unix.MAP_PRIVATE
	if a.hugePages {
		flags |= unix.MAP_HUGETLB
	}

	region, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, flags)
	if err != nil && a.hugePages {
		// Huge pages are a best-effort toggle (spec.md §4.1): fall back to
		// regular pages rather than failing the whole allocation.
		region, err = unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE,
			unix.MAP_ANONYMOUS|unix.MAP_PRIVATE)
	}
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", total, err)
	}

	if err := unix.Mprotect(region[:guard], unix.PROT_NONE); err != nil {
		_ = unix.Munmap(region)
		return nil, fmt.Errorf("mprotect guard page: %w", err)
	}

	return &Stack{
		region: region,
		usable: region[guard:],
		class:  class,
	}, nil
}
