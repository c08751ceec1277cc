package ext2

import (
	"encoding/binary"
	"testing"
)

// The tests run against a synthetic image built in memory, byte by byte at
// the documented on-disk offsets, so that the parsers are checked against
// the format rather than against their own serializers.
//
// Geometry: 1024-byte blocks, one group, 32 inodes of 128 bytes each.
//
//	block 0      boot region
//	block 1      superblock
//	block 2      group descriptor table
//	block 3, 4   block and inode bitmaps (left zero, unused here)
//	block 5..8   inode table
//	block 9      root directory data
//	block 10..21 foo.txt direct blocks
//	block 22..277 foo.txt singly-indirect data blocks
//	block 280/281 sparse.dat data blocks (logical 1 is a hole)
//	block 282    hello.txt data
//	block 300    foo.txt singly indirect pointer block
//	block 301    foo.txt doubly indirect pointer block
//	block 302    doubly indirect intermediate pointer block
//	block 303    foo.txt data block for logical index 268
//	block 310..312 huge.dat triply indirect pointer chain
//	block 313    huge.dat data block at the start of the triple range
const (
	testBlockSize      = 1024
	testBlockCount     = 400
	testInodeCount     = 32
	testInodesPerGroup = 32
	testInodeTable     = 5

	testRootInode   = 2
	testFooInode    = 12
	testSparseInode = 13
	testHelloInode  = 14
	testEmptyInode  = 15
	testBigInode    = 16
	testTripleInode = 17

	// foo.txt spans all twelve direct blocks, the whole singly indirect
	// level and the first doubly indirect block, 100 bytes into it
	testFooSize = (directPointerCount+256)*testBlockSize + 100

	// huge.dat is sparse everywhere except its last logical block, the first
	// one addressed through the triply indirect chain
	testTripleLogical = directPointerCount + 256 + 256*256
	testTripleSize    = testTripleLogical*testBlockSize + 50

	testHelloContent = "Hello, World!"

	testVolumeName = "rdc2test"
	testMountPath  = "/mnt/test"
)

// testFooByte the expected content byte of foo.txt at logical block
// logical, offset i
func testFooByte(logical, i int) byte {
	return byte((logical*31 + i) % 251)
}

func testInodeOffset(number uint32) uint64 {
	return testInodeTable*testBlockSize + uint64(number-1)*inodeDataSize
}

// testBuildImage assembles the synthetic image described above
func testBuildImage(t *testing.T) []byte {
	t.Helper()
	img := make([]byte, testBlockCount*testBlockSize)
	le16 := binary.LittleEndian.PutUint16
	le32 := binary.LittleEndian.PutUint32

	// superblock
	sb := img[SuperblockOffset:]
	le32(sb[0x0:], testInodeCount)
	le32(sb[0x4:], testBlockCount)
	le32(sb[0x8:], 20)  // reserved for the superuser
	le32(sb[0xc:], 50)  // free blocks
	le32(sb[0x10:], 17) // free inodes
	le32(sb[0x14:], 1)  // first data block
	le32(sb[0x18:], 0)  // log block size -> 1024
	le32(sb[0x1c:], 0)
	le32(sb[0x20:], 8192) // blocks per group
	le32(sb[0x24:], 8192)
	le32(sb[0x28:], testInodesPerGroup)
	le32(sb[0x2c:], 1700000000) // last mount time
	le32(sb[0x30:], 1700000100) // last write time
	le16(sb[0x34:], 3)          // mounts since check
	le16(sb[0x36:], 20)         // mounts until check
	le16(sb[0x38:], 0xef53)
	le16(sb[0x3a:], 1) // clean
	le16(sb[0x3c:], 1) // ignore errors
	le16(sb[0x3e:], 0) // minor version
	le32(sb[0x40:], 1690000000)
	le32(sb[0x44:], 7776000)
	le32(sb[0x48:], 0) // linux
	le32(sb[0x4c:], 1) // major version: dynamic revision

	// extended superblock
	le32(sb[0x54:], 11)  // first non-reserved inode
	le16(sb[0x58:], 128) // inode struct size
	le16(sb[0x5a:], 0)
	le32(sb[0x5c:], uint32(optionalFeatureResizeable))
	le32(sb[0x60:], uint32(requiredFeatureTypedDirectory))
	le32(sb[0x64:], uint32(writeFeatureSparseSuperblock|writeFeatureFileSize64))
	for i := 0; i < 16; i++ {
		sb[0x68+i] = byte(i + 1) // filesystem ID
	}
	copy(sb[0x78:], testVolumeName)
	copy(sb[0x88:], testMountPath)

	// group descriptor table, one group
	gdt := img[2*testBlockSize:]
	le32(gdt[0x0:], 3)              // block bitmap
	le32(gdt[0x4:], 4)              // inode bitmap
	le32(gdt[0x8:], testInodeTable) // inode table
	le16(gdt[0xc:], 50)
	le16(gdt[0xe:], 17)
	le16(gdt[0x10:], 1)

	putInode := func(number uint32, mode uint16, size uint32, fill func(rec []byte)) {
		rec := img[testInodeOffset(number):]
		le16(rec[0x0:], mode)
		le32(rec[0x4:], size)
		le16(rec[0x1a:], 1) // link count
		if fill != nil {
			fill(rec)
		}
	}

	// root directory: ".", "..", "foo.txt" in block 9
	putInode(testRootInode, 0x41ed, testBlockSize, func(rec []byte) {
		le32(rec[0x28:], 9)
		// the dir-ACL field is not an upper size for directories
		le32(rec[0x6c:], 777)
	})
	dir := img[9*testBlockSize:]
	le32(dir[0x0:], testRootInode)
	le16(dir[0x4:], 12)
	dir[0x6] = 1
	dir[0x7] = byte(EntryKindDirectory)
	copy(dir[0x8:], ".")
	le32(dir[0xc:], testRootInode)
	le16(dir[0x10:], 12)
	dir[0x12] = 2
	dir[0x13] = byte(EntryKindDirectory)
	copy(dir[0x14:], "..")
	le32(dir[0x18:], testFooInode)
	le16(dir[0x1c:], 1000) // padded out to the end of the block
	dir[0x1e] = 7
	dir[0x1f] = byte(EntryKindRegularFile)
	copy(dir[0x20:], "foo.txt")

	// foo.txt: direct, singly and doubly indirect blocks with a
	// deterministic pattern
	putInode(testFooInode, 0x81a4, testFooSize, func(rec []byte) {
		for i := 0; i < directPointerCount; i++ {
			le32(rec[0x28+i*4:], uint32(10+i))
		}
		le32(rec[0x58:], 300) // singly indirect
		le32(rec[0x5c:], 301) // doubly indirect
	})
	fillBlock := func(physical uint32, logical int) {
		b := img[physical*testBlockSize:][:testBlockSize]
		for i := range b {
			b[i] = testFooByte(logical, i)
		}
	}
	for i := 0; i < directPointerCount; i++ {
		fillBlock(uint32(10+i), i)
	}
	single := img[300*testBlockSize:]
	for i := 0; i < 256; i++ {
		le32(single[i*4:], uint32(22+i))
		fillBlock(uint32(22+i), directPointerCount+i)
	}
	le32(img[301*testBlockSize:], 302) // doubly indirect -> intermediate
	le32(img[302*testBlockSize:], 303) // intermediate -> data
	fillBlock(303, directPointerCount+256)

	// sparse.dat: three logical blocks, the middle one a hole
	putInode(testSparseInode, 0x81a4, 3*testBlockSize, func(rec []byte) {
		le32(rec[0x28:], 280)
		le32(rec[0x30:], 281)
	})
	for i := 0; i < testBlockSize; i++ {
		img[280*testBlockSize+i] = 'a'
		img[281*testBlockSize+i] = 'c'
	}

	// hello.txt: a few bytes in one block
	putInode(testHelloInode, 0x81a4, uint32(len(testHelloContent)), func(rec []byte) {
		le32(rec[0x28:], 282)
	})
	copy(img[282*testBlockSize:], testHelloContent)

	// empty: size zero, no blocks
	putInode(testEmptyInode, 0x81a4, 0, nil)

	// big64: upper size bits in the dir-ACL field
	putInode(testBigInode, 0x81a4, 100, func(rec []byte) {
		le32(rec[0x6c:], 1)
	})

	// huge.dat: every pointer zero except the triply indirect chain, which
	// allocates exactly one data block at the start of the triple range. The
	// other entries of the three pointer blocks stay zero, so the levels also
	// cover sparse subtrees.
	putInode(testTripleInode, 0x81a4, testTripleSize, func(rec []byte) {
		le32(rec[0x60:], 310) // triply indirect
	})
	le32(img[310*testBlockSize:], 311) // triply indirect -> first intermediate
	le32(img[311*testBlockSize:], 312) // intermediate -> innermost
	le32(img[312*testBlockSize:], 313) // innermost -> data
	for i := 0; i < testBlockSize; i++ {
		img[313*testBlockSize+i] = 't'
	}

	return img
}

// testOpen builds the image and opens it
func testOpen(t *testing.T) (*FileSystem, []byte) {
	t.Helper()
	img := testBuildImage(t)
	fs, err := Open(img)
	if err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}
	return fs, img
}

// testGetInode fetch an inode, failing the test on error
func testGetInode(t *testing.T, fs *FileSystem, number uint32) *Inode {
	t.Helper()
	in, err := fs.GetInode(number)
	if err != nil {
		t.Fatalf("GetInode(%d) returned error: %v", number, err)
	}
	return in
}

// testBuildImage2048 a minimal revision-0 image with 2048-byte blocks, to
// exercise the descriptor table landing in block 1 and the defaults that
// apply without an extended superblock
func testBuildImage2048(t *testing.T) []byte {
	t.Helper()
	img := make([]byte, 64*2048)
	le16 := binary.LittleEndian.PutUint16
	le32 := binary.LittleEndian.PutUint32

	sb := img[SuperblockOffset:]
	le32(sb[0x0:], 16)  // inode count
	le32(sb[0x4:], 64)  // block count
	le32(sb[0x18:], 1)  // log block size -> 2048
	le32(sb[0x20:], 64) // blocks per group
	le32(sb[0x28:], 16) // inodes per group
	le16(sb[0x38:], 0xef53)
	le16(sb[0x3a:], 1)
	le16(sb[0x3c:], 1)
	le32(sb[0x4c:], 0) // major version 0: no extended superblock

	// descriptor table in block 1
	gdt := img[2048:]
	le32(gdt[0x0:], 2)
	le32(gdt[0x4:], 2)
	le32(gdt[0x8:], 3) // inode table at block 3

	// root directory inode, one empty block
	rec := img[3*2048+(testRootInode-1)*128:]
	le16(rec[0x0:], 0x41ed)
	le32(rec[0x4:], 2048)
	le32(rec[0x28:], 5)

	return img
}
