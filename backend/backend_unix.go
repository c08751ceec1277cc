//go:build unix

package backend

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Map memory-maps the image file at path into a Region. With writable set,
// the mapping is shared: bytes written through the region reach the file.
// The file descriptor is closed once the mapping exists; Close unmaps.
func Map(path string, writable bool) (*Region, error) {
	flag := os.O_RDONLY
	prot := unix.PROT_READ
	if writable {
		flag = os.O_RDWR
		prot |= unix.PROT_WRITE
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("could not open image %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("could not stat image %s: %w", path, err)
	}
	size := info.Size()
	if size == 0 {
		return nil, fmt.Errorf("image %s is empty", path)
	}

	b, err := unix.Mmap(int(f.Fd()), 0, int(size), prot, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("could not map image %s: %w", path, err)
	}
	return &Region{
		bytes: b,
		release: func() error {
			return unix.Munmap(b)
		},
	}, nil
}
