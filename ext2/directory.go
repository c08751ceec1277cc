package ext2

import (
	"encoding/binary"
	"fmt"
	"io"
)

// EntryKind is the type tag carried by a directory record
type EntryKind uint8

const (
	EntryKindUnknown     EntryKind = 0
	EntryKindRegularFile EntryKind = 1
	EntryKindDirectory   EntryKind = 2
	EntryKindCharDevice  EntryKind = 3
	EntryKindBlockDevice EntryKind = 4
	EntryKindFifo        EntryKind = 5
	EntryKindSocket      EntryKind = 6
	EntryKindSymlink     EntryKind = 7
)

func (k EntryKind) String() string {
	switch k {
	case EntryKindRegularFile:
		return "regular file"
	case EntryKindDirectory:
		return "directory"
	case EntryKindCharDevice:
		return "character device"
	case EntryKindBlockDevice:
		return "block device"
	case EntryKindFifo:
		return "fifo"
	case EntryKindSocket:
		return "socket"
	case EntryKindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// dirEntryHeaderSize the fixed part of a directory record: 4-byte inode
// reference, 2-byte record size, 1-byte name length, 1-byte kind
const dirEntryHeaderSize = 8

// DirectoryEntry is one parsed directory record.
//
// Name aliases the image buffer rather than copying it: it stays valid until
// the next Next call or until something writes to the directory's blocks.
// Copy it if you keep it longer.
type DirectoryEntry struct {
	Inode      uint32
	RecordSize uint16
	Kind       EntryKind
	Name       []byte
}

// DirectoryEntries iterates the records of one directory inode in on-disk
// order, through a cursor over the directory's byte stream.
type DirectoryEntries struct {
	cursor *Cursor
}

// DirectoryEntries returns an iterator over the inode's directory records,
// starting at the first one. It fails with ErrNotDirectory when the inode
// does not hold a directory.
func (in *Inode) DirectoryEntries() (*DirectoryEntries, error) {
	if !in.IsDir() {
		return nil, fmt.Errorf("inode %d: %w", in.number, ErrNotDirectory)
	}
	cursor, err := in.Cursor()
	if err != nil {
		return nil, err
	}
	return &DirectoryEntries{cursor: cursor}, nil
}

// Next parses the record at the cursor position and advances the cursor by
// the record's declared size, skipping whatever padding follows the name.
// It returns io.EOF once the directory stream is exhausted or a terminating
// record of size 0 is reached.
//
// The format guarantees a record never crosses a block boundary, so each
// record is resolved entirely within the one physical block the cursor
// position translates to; a record that claims otherwise fails with
// ErrCorruptDirectory.
func (d *DirectoryEntries) Next() (*DirectoryEntry, error) {
	size := d.cursor.inode.Size()
	if d.cursor.position+dirEntryHeaderSize > size {
		return nil, io.EOF
	}
	blockSize := uint64(d.cursor.blockSize)
	offsetInBlock := d.cursor.position % blockSize

	physical, err := d.cursor.physicalBlock(d.cursor.position / blockSize)
	if err != nil {
		return nil, err
	}
	if physical == 0 {
		// a hole where a record should be ends the stream
		return nil, io.EOF
	}
	block, err := d.cursor.inode.fs.blockBytes(physical)
	if err != nil {
		return nil, err
	}

	record := block[offsetInBlock:]
	if len(record) < dirEntryHeaderSize {
		return nil, fmt.Errorf("record header at %d crosses a block boundary: %w", d.cursor.position, ErrCorruptDirectory)
	}
	inodeRef := binary.LittleEndian.Uint32(record[0:4])
	recordSize := binary.LittleEndian.Uint16(record[4:6])
	nameLen := record[6]
	kind := EntryKind(record[7])

	if recordSize == 0 {
		return nil, io.EOF
	}
	if recordSize < dirEntryHeaderSize || int(recordSize) > len(record) {
		return nil, fmt.Errorf("record of %d bytes at %d does not fit its block: %w", recordSize, d.cursor.position, ErrCorruptDirectory)
	}
	if int(dirEntryHeaderSize)+int(nameLen) > int(recordSize) {
		return nil, fmt.Errorf("name of %d bytes overflows its %d byte record: %w", nameLen, recordSize, ErrCorruptDirectory)
	}

	d.cursor.position += uint64(recordSize)
	return &DirectoryEntry{
		Inode:      inodeRef,
		RecordSize: recordSize,
		Kind:       kind,
		Name:       record[dirEntryHeaderSize : dirEntryHeaderSize+int(nameLen)],
	}, nil
}
