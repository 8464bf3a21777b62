//go:build linux || darwin || freebsd

package vm

import "golang.org/x/sys/unix"

// allocArena maps an anonymous private region so that frames live outside the
// Go heap and are page aligned.
func allocArena(size int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(
		-1,
		0,
		size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE,
	)
	if err != nil {
		return nil, nil, err
	}

	return data, unix.Munmap, nil
}
