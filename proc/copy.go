package proc

import (
	"errors"
	"fmt"

	"github.com/sarchlab/pgtrace/vm"
)

// ErrBadAddress is returned when the kernel cannot access a user address.
var ErrBadAddress = errors.New("bad user address")

// CopyOut copies data to the user address dst. Pages inside the logical size
// that are not backed yet are faulted in first. The accessed and dirty bits
// are not changed, since the kernel does not go through the MMU.
func (p *Process) CopyOut(dst uint64, data []byte) error {
	for len(data) > 0 {
		page, err := p.userPage(dst, AccessStore)
		if err != nil {
			return err
		}

		n := copy(page[vm.PageOffset(dst):], data)
		data = data[n:]
		dst += uint64(n)
	}

	return nil
}

// CopyIn copies len(buf) bytes from the user address src.
func (p *Process) CopyIn(buf []byte, src uint64) error {
	for len(buf) > 0 {
		page, err := p.userPage(src, AccessLoad)
		if err != nil {
			return err
		}

		n := copy(buf, page[vm.PageOffset(src):])
		buf = buf[n:]
		src += uint64(n)
	}

	return nil
}

func (p *Process) userPage(vAddr uint64, kind AccessKind) ([]byte, error) {
	p.mustNotBeReleased()

	pAddr, err := vm.Translate(p.mem, p.root, vAddr)
	if errors.Is(err, vm.ErrInvalidMapping) && vAddr < p.size {
		faultErr := p.HandlePageFault(vAddr, kind)
		if faultErr != nil {
			return nil, fmt.Errorf("%w 0x%x: %w", ErrBadAddress, vAddr, faultErr)
		}

		pAddr, err = vm.Translate(p.mem, p.root, vAddr)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadAddress, err)
	}

	if kind == AccessStore {
		pte, _ := vm.Lookup(p.mem, p.root, vAddr)
		if !pte.HasFlags(vm.FlagWrite) {
			return nil, fmt.Errorf("%w 0x%x: page is read-only",
				ErrBadAddress, vAddr)
		}
	}

	return p.mem.Bytes(vm.FrameFromAddress(pAddr)), nil
}
