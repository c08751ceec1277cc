package ext2

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Cursor tracks a logical byte position inside one inode's byte stream and
// moves sequentially through it, translating each position to a physical
// block as it goes. It implements io.Reader, io.Writer and io.Seeker over
// the inode's already-allocated extent.
//
// A Cursor never allocates: reads of unallocated (sparse) blocks come back
// zero-filled, and writes that land on a sparse block or past the allocated
// extent are dropped for that segment while the position still advances.
type Cursor struct {
	inode     *Inode
	position  uint64
	blockSize uint32
}

// Cursor returns a cursor at position 0 of the inode's byte stream. It fails
// only when the block size is unknown or zero, since position 0 is always
// addressable otherwise.
func (in *Inode) Cursor() (*Cursor, error) {
	return in.cursorAt(0)
}

// CursorAtEnd returns a cursor positioned at the inode's logical size, ready
// to write into allocated space trailing the data in the last block.
func (in *Inode) CursorAtEnd() (*Cursor, error) {
	return in.cursorAt(in.Size())
}

func (in *Inode) cursorAt(position uint64) (*Cursor, error) {
	if in.fs == nil || in.fs.blockSize == 0 {
		return nil, fmt.Errorf("cannot create a cursor without a block size: %w", ErrUnsupportedGeometry)
	}
	return &Cursor{
		inode:     in,
		position:  position,
		blockSize: in.fs.blockSize,
	}, nil
}

// Position the current logical byte position
func (c *Cursor) Position() uint64 {
	return c.position
}

// Seek implements io.Seeker. The resulting position is bounded to
// [0, inode size].
func (c *Cursor) Seek(offset int64, whence int) (int64, error) {
	var position int64
	switch whence {
	case io.SeekStart:
		position = offset
	case io.SeekCurrent:
		position = int64(c.position) + offset
	case io.SeekEnd:
		position = int64(c.inode.Size()) + offset
	default:
		return 0, fmt.Errorf("unknown whence %d", whence)
	}
	if position < 0 {
		return 0, fmt.Errorf("cannot seek to %d, before the start of the stream", position)
	}
	if size := c.inode.Size(); uint64(position) > size {
		position = int64(size)
	}
	c.position = uint64(position)
	return position, nil
}

// pointersPerBlock the fan-out of each indirection level: one 32-bit block
// number per 4 bytes of block
func (c *Cursor) pointersPerBlock() uint64 {
	return uint64(c.blockSize / 4)
}

// physicalBlock translates a logical block index within the inode's byte
// stream to a physical block number, walking the direct, singly-, doubly-
// and triply-indirect pointers. A result of 0 means the logical block is
// unallocated (sparse); an index beyond what three indirection levels can
// address fails with ErrOutOfRange.
func (c *Cursor) physicalBlock(index uint64) (uint32, error) {
	data := c.inode.data
	logical := index
	if index < directPointerCount {
		return data.directPointers[index], nil
	}
	index -= directPointerCount

	ppb := c.pointersPerBlock()
	if index < ppb {
		return c.indirectEntry(data.singlyIndirect, index)
	}
	index -= ppb

	if index < ppb*ppb {
		intermediate, err := c.indirectEntry(data.doublyIndirect, index/ppb)
		if err != nil {
			return 0, err
		}
		return c.indirectEntry(intermediate, index%ppb)
	}
	index -= ppb * ppb

	if index < ppb*ppb*ppb {
		intermediate, err := c.indirectEntry(data.triplyIndirect, index/(ppb*ppb))
		if err != nil {
			return 0, err
		}
		intermediate, err = c.indirectEntry(intermediate, (index/ppb)%ppb)
		if err != nil {
			return 0, err
		}
		return c.indirectEntry(intermediate, index%ppb)
	}
	return 0, fmt.Errorf("logical block %d is beyond three indirection levels: %w", logical, ErrOutOfRange)
}

// indirectEntry the i-th 32-bit block number stored in the given indirect
// block. An indirect block number of 0 makes the whole subtree sparse.
func (c *Cursor) indirectEntry(block uint32, i uint64) (uint32, error) {
	if block == 0 {
		return 0, nil
	}
	b, err := c.inode.fs.blockBytes(block)
	if err != nil {
		return 0, fmt.Errorf("indirect block %d: %w", block, err)
	}
	return binary.LittleEndian.Uint32(b[i*4 : i*4+4]), nil
}

// Read copies up to len(p) bytes from the cursor position into p, advancing
// the cursor by the number of bytes copied. Block and indirection-level
// boundaries are crossed transparently. Sparse blocks read as zeroes. At the
// end of the inode's byte stream Read returns 0, io.EOF.
func (c *Cursor) Read(p []byte) (int, error) {
	size := c.inode.Size()
	if c.position >= size {
		return 0, io.EOF
	}
	blockSize := uint64(c.blockSize)
	total := 0
	for total < len(p) && c.position < size {
		offsetInBlock := c.position % blockSize
		segment := blockSize - offsetInBlock
		if remaining := size - c.position; segment > remaining {
			segment = remaining
		}
		if left := uint64(len(p) - total); segment > left {
			segment = left
		}

		physical, err := c.physicalBlock(c.position / blockSize)
		if err != nil {
			if total > 0 {
				return total, nil
			}
			return 0, err
		}
		dest := p[total : total+int(segment)]
		if physical == 0 {
			// sparse block, zero-filled
			for i := range dest {
				dest[i] = 0
			}
		} else {
			block, err := c.inode.fs.blockBytes(physical)
			if err != nil {
				if total > 0 {
					return total, nil
				}
				return 0, err
			}
			copy(dest, block[offsetInBlock:offsetInBlock+segment])
		}
		total += int(segment)
		c.position += segment
	}
	return total, nil
}

// Write copies bytes from p into the image at the cursor position, advancing
// the cursor. Writes are confined to the inode's already-allocated extent:
// a segment that lands on a sparse block, or past the last allocated block,
// is skipped rather than allocated, so no unrelated image bytes are touched.
// The cursor still advances over skipped segments and Write reports the full
// length consumed.
func (c *Cursor) Write(p []byte) (int, error) {
	blockSize := uint64(c.blockSize)
	// trailing space of the last block holding data stays writable, so the
	// bound is the allocated extent rather than the logical size
	allocated := (c.inode.Size() + blockSize - 1) / blockSize * blockSize

	total := 0
	for total < len(p) {
		if c.position >= allocated {
			// no allocation here: drop the rest, but account for it
			skipped := len(p) - total
			c.position += uint64(skipped)
			total = len(p)
			break
		}
		offsetInBlock := c.position % blockSize
		segment := blockSize - offsetInBlock
		if left := uint64(len(p) - total); segment > left {
			segment = left
		}

		physical, err := c.physicalBlock(c.position / blockSize)
		if err != nil {
			if total > 0 {
				return total, nil
			}
			return 0, err
		}
		if physical != 0 {
			block, err := c.inode.fs.blockBytes(physical)
			if err != nil {
				if total > 0 {
					return total, nil
				}
				return 0, err
			}
			copy(block[offsetInBlock:offsetInBlock+segment], p[total:total+int(segment)])
		}
		total += int(segment)
		c.position += segment
	}
	return total, nil
}
