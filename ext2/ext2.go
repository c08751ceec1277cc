// Package ext2 reads and writes ext2 filesystem images directly, without
// going through an operating-system mount. The image is a fully resident
// byte region; all operations are plain memory transformations over it.
//
// A FileSystem is opened once from the region, inode lookups produce Inode
// views, and a Cursor created from an Inode walks the inode's logical byte
// stream across the direct and indirect block pointers. DirectoryEntries
// iterates the variable-length records of a directory inode through such a
// cursor.
//
// Nothing here allocates blocks or inodes: writes are limited to the space a
// file already has, and the allocation bitmaps and journal are left alone.
package ext2

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrInvalidSignature the superblock signature does not match 0xef53
	ErrInvalidSignature = errors.New("not a valid ext2 image: superblock signature mismatch")
	// ErrUnsupportedGeometry the superblock describes a geometry this package cannot address
	ErrUnsupportedGeometry = errors.New("unsupported filesystem geometry")
	// ErrOutOfRange an inode number or block address falls outside the filesystem
	ErrOutOfRange = errors.New("out of range")
	// ErrNotDirectory the inode is not a directory
	ErrNotDirectory = errors.New("inode is not a directory")
	// ErrCorruptDirectory a directory record is malformed
	ErrCorruptDirectory = errors.New("corrupt directory record")
)

const (
	// RootInode the inode number of the root directory, fixed by the format
	RootInode uint32 = 2

	// maxLogBlockSize caps block size at 64KiB
	maxLogBlockSize uint32 = 6
)

// FileSystem is the root handle on one ext2 image. It holds the image as a
// flat byte buffer together with the parsed superblock, the extended
// superblock when the dynamic revision provides one, and the block group
// descriptor table.
type FileSystem struct {
	image            []byte
	superblock       *superblock
	extended         *extendedSuperblock
	groupDescriptors []blockGroupDescriptor
	blockSize        uint32
}

// Open interprets region as a complete ext2 image and returns a FileSystem
// over it. The region is borrowed, not copied: Inode views and Cursors
// created from the returned FileSystem read from, and write into, region
// itself.
//
// It fails with ErrInvalidSignature when the superblock signature does not
// match, and with ErrUnsupportedGeometry when the block size or group
// geometry cannot be used.
func Open(region []byte) (*FileSystem, error) {
	if len(region) < SuperblockOffset+SuperblockSize {
		return nil, fmt.Errorf("image of %d bytes cannot hold a superblock: %w", len(region), ErrUnsupportedGeometry)
	}
	sbBytes := region[SuperblockOffset : SuperblockOffset+SuperblockSize]
	sb, err := superblockFromBytes(sbBytes)
	if err != nil {
		return nil, err
	}
	if sb.logBlockSize > maxLogBlockSize {
		return nil, fmt.Errorf("log block size %d too large: %w", sb.logBlockSize, ErrUnsupportedGeometry)
	}
	if sb.inodesPerGroup == 0 {
		return nil, fmt.Errorf("zero inodes per group: %w", ErrUnsupportedGeometry)
	}
	blockSize := sb.blockSizeBytes()

	var extended *extendedSuperblock
	if sb.majorVersion >= 1 {
		extended, err = extendedSuperblockFromBytes(sbBytes)
		if err != nil {
			return nil, fmt.Errorf("could not interpret extended superblock: %w", err)
		}
	}

	// the descriptor table sits in the first block after the one holding the
	// superblock: block 2 when the block size is 1024, block 1 otherwise
	gdtBlock := uint64(1)
	if blockSize == 1024 {
		gdtBlock = 2
	}
	groups := sb.blockGroupCount()
	gdtStart := gdtBlock * uint64(blockSize)
	gdtEnd := gdtStart + uint64(groups)*groupDescriptorSize
	if gdtEnd > uint64(len(region)) {
		return nil, fmt.Errorf("group descriptor table for %d groups ends at %d, past the image: %w", groups, gdtEnd, ErrOutOfRange)
	}
	gds, err := groupDescriptorsFromBytes(region[gdtStart:gdtEnd], groups)
	if err != nil {
		return nil, fmt.Errorf("could not interpret group descriptor table: %w", err)
	}

	return &FileSystem{
		image:            region,
		superblock:       sb,
		extended:         extended,
		groupDescriptors: gds,
		blockSize:        blockSize,
	}, nil
}

// BlockSize the block size of the filesystem in bytes
func (fs *FileSystem) BlockSize() uint32 {
	return fs.blockSize
}

// InodeCount the total number of inodes in the filesystem
func (fs *FileSystem) InodeCount() uint32 {
	return fs.superblock.inodeCount
}

// BlockCount the total number of blocks in the filesystem
func (fs *FileSystem) BlockCount() uint32 {
	return fs.superblock.blockCount
}

// Label the volume name, or "" on a revision-0 filesystem
func (fs *FileSystem) Label() string {
	if fs.extended == nil {
		return ""
	}
	return fs.extended.volumeName
}

// UUID the filesystem identifier, or nil on a revision-0 filesystem
func (fs *FileSystem) UUID() *uuid.UUID {
	if fs.extended == nil {
		return nil
	}
	id := fs.extended.filesystemID
	return &id
}

// FreeBlockCount the number of unallocated blocks recorded in the superblock
func (fs *FileSystem) FreeBlockCount() uint32 {
	return fs.superblock.freeBlockCount
}

// FreeInodeCount the number of unallocated inodes recorded in the superblock
func (fs *FileSystem) FreeInodeCount() uint32 {
	return fs.superblock.freeInodeCount
}

// BlocksPerGroup the number of blocks in each block group
func (fs *FileSystem) BlocksPerGroup() uint32 {
	return fs.superblock.blocksPerGroup
}

// InodesPerGroup the number of inodes in each block group
func (fs *FileSystem) InodesPerGroup() uint32 {
	return fs.superblock.inodesPerGroup
}

// BlockGroup is a read-only view of one entry of the block group descriptor
// table: the group's bookkeeping blocks and its free-space counters.
type BlockGroup struct {
	Number           uint32
	BlockBitmapBlock uint32
	InodeBitmapBlock uint32
	InodeTableBlock  uint32
	FreeBlockCount   uint16
	FreeInodeCount   uint16
	DirectoryCount   uint16
}

// BlockGroups the block group descriptor table, one entry per group
func (fs *FileSystem) BlockGroups() []BlockGroup {
	groups := make([]BlockGroup, len(fs.groupDescriptors))
	for i, gd := range fs.groupDescriptors {
		groups[i] = BlockGroup{
			Number:           gd.number,
			BlockBitmapBlock: gd.blockBitmapBlock,
			InodeBitmapBlock: gd.inodeBitmapBlock,
			InodeTableBlock:  gd.inodeTableBlock,
			FreeBlockCount:   gd.freeBlockCount,
			FreeInodeCount:   gd.freeInodeCount,
			DirectoryCount:   gd.directoryCount,
		}
	}
	return groups
}

// inodeStructSize the on-disk size of one inode record
func (fs *FileSystem) inodeStructSize() uint32 {
	if fs.extended != nil && fs.extended.inodeStructSize != 0 {
		return uint32(fs.extended.inodeStructSize)
	}
	return inodeDataSize
}

// GetInode looks up an inode by number. Inode numbers are 1-based; numbers
// outside [1, InodeCount] fail with ErrOutOfRange.
func (fs *FileSystem) GetInode(number uint32) (*Inode, error) {
	if number < 1 || number > fs.superblock.inodeCount {
		return nil, fmt.Errorf("inode %d not in [1, %d]: %w", number, fs.superblock.inodeCount, ErrOutOfRange)
	}
	group := (number - 1) / fs.superblock.inodesPerGroup
	index := (number - 1) % fs.superblock.inodesPerGroup

	tableBlock := fs.groupDescriptors[group].inodeTableBlock
	offset := uint64(tableBlock)*uint64(fs.blockSize) + uint64(index)*uint64(fs.inodeStructSize())
	end := offset + uint64(fs.inodeStructSize())
	if end > uint64(len(fs.image)) {
		return nil, fmt.Errorf("inode %d record at %d is past the image: %w", number, offset, ErrOutOfRange)
	}
	data, err := inodeDataFromBytes(fs.image[offset:end])
	if err != nil {
		return nil, fmt.Errorf("could not interpret inode %d: %w", number, err)
	}
	return &Inode{
		fs:     fs,
		number: number,
		group:  group,
		offset: offset,
		data:   data,
	}, nil
}

// Root returns the root directory inode
func (fs *FileSystem) Root() (*Inode, error) {
	return fs.GetInode(RootInode)
}

// blockBytes the raw bytes of physical block n
func (fs *FileSystem) blockBytes(n uint32) ([]byte, error) {
	start := uint64(n) * uint64(fs.blockSize)
	end := start + uint64(fs.blockSize)
	if end > uint64(len(fs.image)) {
		return nil, fmt.Errorf("block %d is past the image: %w", n, ErrOutOfRange)
	}
	return fs.image[start:end], nil
}
