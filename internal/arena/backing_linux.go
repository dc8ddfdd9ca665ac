//go:build linux

package arena

import "golang.org/x/sys/unix"

// allocBacking maps an anonymous private region for the arena.
func allocBacking(size int) ([]byte, func([]byte) error, error) {
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}
	return buf, unix.Munmap, nil
}
