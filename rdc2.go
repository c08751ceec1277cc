// Package rdc2 provides direct access to ext2 filesystem images without
// mounting them.
//
// The heavy lifting lives in the subpackages: backend acquires the image
// byte region, and ext2 parses and walks the filesystem inside it. This
// package ties the two together for the common case of an image file on
// disk:
//
//	img, err := rdc2.Open("/tmp/disk.img")
//	if err != nil { ... }
//	defer img.Close()
//
//	root, err := img.Root()
//	entries, err := root.DirectoryEntries()
//
// Open maps the file read-only; OpenWritable maps it shared, so cursor
// writes reach the file.
package rdc2

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/traxys/rdc2/backend"
	"github.com/traxys/rdc2/ext2"
)

// Image is an ext2 filesystem together with the mapped region backing it
type Image struct {
	*ext2.FileSystem
	region *backend.Region
}

// Open maps the image file at path read-only and opens the ext2 filesystem
// inside it. Writing through cursors of a read-only image will fault; use
// OpenWritable when writes are intended.
func Open(path string) (*Image, error) {
	return open(path, false)
}

// OpenWritable maps the image file at path with a shared writable mapping,
// so that cursor writes are persisted to the file.
func OpenWritable(path string) (*Image, error) {
	return open(path, true)
}

func open(path string, writable bool) (*Image, error) {
	region, err := backend.Map(path, writable)
	if err != nil {
		return nil, err
	}
	fs, err := ext2.Open(region.Bytes())
	if err != nil {
		if closeErr := region.Close(); closeErr != nil {
			log.Warnf("could not release image %s: %v", path, closeErr)
		}
		return nil, fmt.Errorf("could not open filesystem in %s: %w", path, err)
	}
	log.WithFields(log.Fields{
		"image":     path,
		"blockSize": fs.BlockSize(),
		"inodes":    fs.InodeCount(),
		"writable":  writable,
	}).Debug("opened ext2 image")
	return &Image{FileSystem: fs, region: region}, nil
}

// Close releases the mapped region. No inode, cursor or directory iterator
// created from the image may be used afterwards.
func (img *Image) Close() error {
	return img.region.Close()
}
