package ext2

import (
	"encoding/binary"
	"fmt"
)

// groupDescriptorSize is the on-disk size in bytes of one block group descriptor
const groupDescriptorSize = 32

// blockGroupDescriptor describes one block group: where its bitmaps and
// inode table live, and its free counts.
type blockGroupDescriptor struct {
	number           uint32
	blockBitmapBlock uint32
	inodeBitmapBlock uint32
	inodeTableBlock  uint32
	freeBlockCount   uint16
	freeInodeCount   uint16
	directoryCount   uint16
}

// groupDescriptorsFromBytes create a slice of count descriptors from the raw
// descriptor table bytes
func groupDescriptorsFromBytes(b []byte, count uint32) ([]blockGroupDescriptor, error) {
	if len(b) < int(count)*groupDescriptorSize {
		return nil, fmt.Errorf("group descriptor table data too short: %d bytes for %d groups, must be at least %d bytes", len(b), count, count*groupDescriptorSize)
	}
	gds := make([]blockGroupDescriptor, 0, count)
	for i := uint32(0); i < count; i++ {
		gd, err := groupDescriptorFromBytes(b[i*groupDescriptorSize:(i+1)*groupDescriptorSize], i)
		if err != nil {
			return nil, err
		}
		gds = append(gds, *gd)
	}
	return gds, nil
}

// groupDescriptorFromBytes create a single descriptor from its 32 raw bytes
func groupDescriptorFromBytes(b []byte, number uint32) (*blockGroupDescriptor, error) {
	if len(b) < groupDescriptorSize {
		return nil, fmt.Errorf("group descriptor data too short: %d bytes, must be at least %d bytes", len(b), groupDescriptorSize)
	}
	gd := blockGroupDescriptor{
		number:           number,
		blockBitmapBlock: binary.LittleEndian.Uint32(b[0x0:0x4]),
		inodeBitmapBlock: binary.LittleEndian.Uint32(b[0x4:0x8]),
		inodeTableBlock:  binary.LittleEndian.Uint32(b[0x8:0xc]),
		freeBlockCount:   binary.LittleEndian.Uint16(b[0xc:0xe]),
		freeInodeCount:   binary.LittleEndian.Uint16(b[0xe:0x10]),
		directoryCount:   binary.LittleEndian.Uint16(b[0x10:0x12]),
	}
	return &gd, nil
}

// toBytes serialize the descriptor to its 32 on-disk bytes, the last 14 of
// which are unused and left zero
func (gd *blockGroupDescriptor) toBytes() []byte {
	b := make([]byte, groupDescriptorSize)
	binary.LittleEndian.PutUint32(b[0x0:0x4], gd.blockBitmapBlock)
	binary.LittleEndian.PutUint32(b[0x4:0x8], gd.inodeBitmapBlock)
	binary.LittleEndian.PutUint32(b[0x8:0xc], gd.inodeTableBlock)
	binary.LittleEndian.PutUint16(b[0xc:0xe], gd.freeBlockCount)
	binary.LittleEndian.PutUint16(b[0xe:0x10], gd.freeInodeCount)
	binary.LittleEndian.PutUint16(b[0x10:0x12], gd.directoryCount)
	return b
}
