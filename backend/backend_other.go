//go:build !unix

package backend

import (
	"fmt"
	"os"
)

// Map reads the image file at path fully into memory. Without mmap support
// the region is a private copy: writes through it change the in-memory image
// only and never reach the file.
func Map(path string, writable bool) (*Region, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read image %s: %w", path, err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("image %s is empty", path)
	}
	return &Region{bytes: b}, nil
}
