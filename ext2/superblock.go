package ext2

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

const (
	// SuperblockOffset is where the superblock begins, in bytes from the start of the image
	SuperblockOffset = 1024
	// SuperblockSize is the size in bytes of the superblock region, including the extended part
	SuperblockSize = 1024

	superblockSignature  uint16 = 0xef53
	superblockBaseSize   int    = 84
	extendedDefinedBytes int    = 236
)

type fsState uint16
type errorPolicy uint16
type osID uint32

const (
	// fsStateClean the filesystem was unmounted cleanly
	fsStateClean fsState = 1
	// fsStateErrored the filesystem has errors
	fsStateErrored fsState = 2

	errorPolicyIgnore          errorPolicy = 1
	errorPolicyRemountReadOnly errorPolicy = 2
	errorPolicyKernelPanic     errorPolicy = 3

	osIDLinux   osID = 0
	osIDGNUHurd osID = 1
	osIDMasix   osID = 2
	osIDFreeBSD osID = 3
	osIDLites   osID = 4
)

type optionalFeatures uint32
type requiredFeatures uint32
type writeFeatures uint32

// optional features: the filesystem can be used safely while ignoring these
const (
	optionalFeaturePreallocate    optionalFeatures = 0x1
	optionalFeatureAFSServer      optionalFeatures = 0x2
	optionalFeatureJournaling     optionalFeatures = 0x4
	optionalFeatureExtendedInodes optionalFeatures = 0x8
	optionalFeatureResizeable     optionalFeatures = 0x10
	optionalFeatureDirHashIndex   optionalFeatures = 0x20
)

// required features: the filesystem must not be used at all without support for these
const (
	requiredFeatureCompression    requiredFeatures = 0x1
	requiredFeatureTypedDirectory requiredFeatures = 0x2
	requiredFeatureReplayJournal  requiredFeatures = 0x4
	requiredFeatureJournal        requiredFeatures = 0x8
)

// write features: the filesystem may be read, but not written, without support for these
const (
	writeFeatureSparseSuperblock    writeFeatures = 0x1
	writeFeatureFileSize64          writeFeatures = 0x2
	writeFeatureBinaryTreeDirectory writeFeatures = 0x4
)

func (f optionalFeatures) included(a optionalFeatures) bool {
	return f&a == a
}
func (f requiredFeatures) included(a requiredFeatures) bool {
	return f&a == a
}
func (f writeFeatures) included(a writeFeatures) bool {
	return f&a == a
}

// superblock is the ext2 superblock, the 84 bytes at offset 1024 that every
// revision defines. Multi-byte fields are little-endian on disk.
type superblock struct {
	inodeCount         uint32
	blockCount         uint32
	reservedBlockCount uint32
	freeBlockCount     uint32
	freeInodeCount     uint32
	firstDataBlock     uint32
	logBlockSize       uint32
	logFragmentSize    uint32
	blocksPerGroup     uint32
	fragmentsPerGroup  uint32
	inodesPerGroup     uint32
	lastMountTime      uint32
	lastWriteTime      uint32
	mountsSinceCheck   uint16
	mountsUntilCheck   uint16
	magic              uint16
	state              fsState
	errorPolicy        errorPolicy
	minorVersion       uint16
	lastCheckTime      uint32
	checkInterval      uint32
	creatorOS          osID
	majorVersion       uint32
	reservedBlocksUID  uint16
	reservedBlocksGID  uint16
}

// extendedSuperblock is the dynamic-revision extension that immediately
// follows the base superblock fields when majorVersion >= 1. Only the first
// 236 bytes of the superblock are defined; the rest is reserved.
type extendedSuperblock struct {
	firstNonReservedInode uint32
	inodeStructSize       uint16
	blockGroupNumber      uint16
	optionalFeatures      optionalFeatures
	requiredFeatures      requiredFeatures
	writeFeatures         writeFeatures
	filesystemID          uuid.UUID
	volumeName            string
	lastMountedPath       string
	compressionAlgorithm  uint32
	preallocateFileBlocks byte
	preallocateDirBlocks  byte
	journalID             uuid.UUID
	journalInode          uint32
	journalDevice         uint32
	orphanListHead        uint32
}

// blockSize in bytes, always 1024 shifted left by logBlockSize
func (sb *superblock) blockSizeBytes() uint32 {
	return 1024 << sb.logBlockSize
}

// blockGroupCount how many block groups the descriptor table covers
func (sb *superblock) blockGroupCount() uint32 {
	count := sb.inodeCount / sb.inodesPerGroup
	if sb.inodeCount%sb.inodesPerGroup != 0 {
		count++
	}
	return count
}

// superblockFromBytes create a superblock struct from the raw bytes at
// offset 1024 in the image. b must hold at least the 84 defined bytes.
func superblockFromBytes(b []byte) (*superblock, error) {
	if len(b) < superblockBaseSize {
		return nil, fmt.Errorf("superblock data too short: %d bytes, must be at least %d bytes", len(b), superblockBaseSize)
	}
	sb := superblock{
		inodeCount:         binary.LittleEndian.Uint32(b[0x0:0x4]),
		blockCount:         binary.LittleEndian.Uint32(b[0x4:0x8]),
		reservedBlockCount: binary.LittleEndian.Uint32(b[0x8:0xc]),
		freeBlockCount:     binary.LittleEndian.Uint32(b[0xc:0x10]),
		freeInodeCount:     binary.LittleEndian.Uint32(b[0x10:0x14]),
		firstDataBlock:     binary.LittleEndian.Uint32(b[0x14:0x18]),
		logBlockSize:       binary.LittleEndian.Uint32(b[0x18:0x1c]),
		logFragmentSize:    binary.LittleEndian.Uint32(b[0x1c:0x20]),
		blocksPerGroup:     binary.LittleEndian.Uint32(b[0x20:0x24]),
		fragmentsPerGroup:  binary.LittleEndian.Uint32(b[0x24:0x28]),
		inodesPerGroup:     binary.LittleEndian.Uint32(b[0x28:0x2c]),
		lastMountTime:      binary.LittleEndian.Uint32(b[0x2c:0x30]),
		lastWriteTime:      binary.LittleEndian.Uint32(b[0x30:0x34]),
		mountsSinceCheck:   binary.LittleEndian.Uint16(b[0x34:0x36]),
		mountsUntilCheck:   binary.LittleEndian.Uint16(b[0x36:0x38]),
		magic:              binary.LittleEndian.Uint16(b[0x38:0x3a]),
		state:              fsState(binary.LittleEndian.Uint16(b[0x3a:0x3c])),
		errorPolicy:        errorPolicy(binary.LittleEndian.Uint16(b[0x3c:0x3e])),
		minorVersion:       binary.LittleEndian.Uint16(b[0x3e:0x40]),
		lastCheckTime:      binary.LittleEndian.Uint32(b[0x40:0x44]),
		checkInterval:      binary.LittleEndian.Uint32(b[0x44:0x48]),
		creatorOS:          osID(binary.LittleEndian.Uint32(b[0x48:0x4c])),
		majorVersion:       binary.LittleEndian.Uint32(b[0x4c:0x50]),
		reservedBlocksUID:  binary.LittleEndian.Uint16(b[0x50:0x52]),
		reservedBlocksGID:  binary.LittleEndian.Uint16(b[0x52:0x54]),
	}
	if sb.magic != superblockSignature {
		return nil, ErrInvalidSignature
	}
	return &sb, nil
}

// toBytes serialize the superblock to its 84 defined bytes
func (sb *superblock) toBytes() []byte {
	b := make([]byte, superblockBaseSize)
	binary.LittleEndian.PutUint32(b[0x0:0x4], sb.inodeCount)
	binary.LittleEndian.PutUint32(b[0x4:0x8], sb.blockCount)
	binary.LittleEndian.PutUint32(b[0x8:0xc], sb.reservedBlockCount)
	binary.LittleEndian.PutUint32(b[0xc:0x10], sb.freeBlockCount)
	binary.LittleEndian.PutUint32(b[0x10:0x14], sb.freeInodeCount)
	binary.LittleEndian.PutUint32(b[0x14:0x18], sb.firstDataBlock)
	binary.LittleEndian.PutUint32(b[0x18:0x1c], sb.logBlockSize)
	binary.LittleEndian.PutUint32(b[0x1c:0x20], sb.logFragmentSize)
	binary.LittleEndian.PutUint32(b[0x20:0x24], sb.blocksPerGroup)
	binary.LittleEndian.PutUint32(b[0x24:0x28], sb.fragmentsPerGroup)
	binary.LittleEndian.PutUint32(b[0x28:0x2c], sb.inodesPerGroup)
	binary.LittleEndian.PutUint32(b[0x2c:0x30], sb.lastMountTime)
	binary.LittleEndian.PutUint32(b[0x30:0x34], sb.lastWriteTime)
	binary.LittleEndian.PutUint16(b[0x34:0x36], sb.mountsSinceCheck)
	binary.LittleEndian.PutUint16(b[0x36:0x38], sb.mountsUntilCheck)
	binary.LittleEndian.PutUint16(b[0x38:0x3a], sb.magic)
	binary.LittleEndian.PutUint16(b[0x3a:0x3c], uint16(sb.state))
	binary.LittleEndian.PutUint16(b[0x3c:0x3e], uint16(sb.errorPolicy))
	binary.LittleEndian.PutUint16(b[0x3e:0x40], sb.minorVersion)
	binary.LittleEndian.PutUint32(b[0x40:0x44], sb.lastCheckTime)
	binary.LittleEndian.PutUint32(b[0x44:0x48], sb.checkInterval)
	binary.LittleEndian.PutUint32(b[0x48:0x4c], uint32(sb.creatorOS))
	binary.LittleEndian.PutUint32(b[0x4c:0x50], sb.majorVersion)
	binary.LittleEndian.PutUint16(b[0x50:0x52], sb.reservedBlocksUID)
	binary.LittleEndian.PutUint16(b[0x52:0x54], sb.reservedBlocksGID)
	return b
}

// extendedSuperblockFromBytes create an extendedSuperblock from the raw
// superblock bytes. b is the whole superblock region starting at offset 1024,
// so the extended fields begin at byte 84.
func extendedSuperblockFromBytes(b []byte) (*extendedSuperblock, error) {
	if len(b) < extendedDefinedBytes {
		return nil, fmt.Errorf("extended superblock data too short: %d bytes, must be at least %d bytes", len(b), extendedDefinedBytes)
	}
	fsID, err := uuid.FromBytes(b[0x68:0x78])
	if err != nil {
		return nil, fmt.Errorf("could not read filesystem ID: %w", err)
	}
	journalID, err := uuid.FromBytes(b[0xd0:0xe0])
	if err != nil {
		return nil, fmt.Errorf("could not read journal ID: %w", err)
	}
	es := extendedSuperblock{
		firstNonReservedInode: binary.LittleEndian.Uint32(b[0x54:0x58]),
		inodeStructSize:       binary.LittleEndian.Uint16(b[0x58:0x5a]),
		blockGroupNumber:      binary.LittleEndian.Uint16(b[0x5a:0x5c]),
		optionalFeatures:      optionalFeatures(binary.LittleEndian.Uint32(b[0x5c:0x60])),
		requiredFeatures:      requiredFeatures(binary.LittleEndian.Uint32(b[0x60:0x64])),
		writeFeatures:         writeFeatures(binary.LittleEndian.Uint32(b[0x64:0x68])),
		filesystemID:          fsID,
		volumeName:            cString(b[0x78:0x88]),
		lastMountedPath:       cString(b[0x88:0xc8]),
		compressionAlgorithm:  binary.LittleEndian.Uint32(b[0xc8:0xcc]),
		preallocateFileBlocks: b[0xcc],
		preallocateDirBlocks:  b[0xcd],
		journalID:             journalID,
		journalInode:          binary.LittleEndian.Uint32(b[0xe0:0xe4]),
		journalDevice:         binary.LittleEndian.Uint32(b[0xe4:0xe8]),
		orphanListHead:        binary.LittleEndian.Uint32(b[0xe8:0xec]),
	}
	return &es, nil
}

// toBytes serialize the extended superblock to bytes 84..235 of the
// superblock region. The returned slice starts at byte 84.
func (es *extendedSuperblock) toBytes() []byte {
	b := make([]byte, extendedDefinedBytes-superblockBaseSize)
	binary.LittleEndian.PutUint32(b[0x0:0x4], es.firstNonReservedInode)
	binary.LittleEndian.PutUint16(b[0x4:0x6], es.inodeStructSize)
	binary.LittleEndian.PutUint16(b[0x6:0x8], es.blockGroupNumber)
	binary.LittleEndian.PutUint32(b[0x8:0xc], uint32(es.optionalFeatures))
	binary.LittleEndian.PutUint32(b[0xc:0x10], uint32(es.requiredFeatures))
	binary.LittleEndian.PutUint32(b[0x10:0x14], uint32(es.writeFeatures))
	copy(b[0x14:0x24], es.filesystemID[:])
	copy(b[0x24:0x34], []byte(es.volumeName))
	copy(b[0x34:0x74], []byte(es.lastMountedPath))
	binary.LittleEndian.PutUint32(b[0x74:0x78], es.compressionAlgorithm)
	b[0x78] = es.preallocateFileBlocks
	b[0x79] = es.preallocateDirBlocks
	copy(b[0x7c:0x8c], es.journalID[:])
	binary.LittleEndian.PutUint32(b[0x8c:0x90], es.journalInode)
	binary.LittleEndian.PutUint32(b[0x90:0x94], es.journalDevice)
	binary.LittleEndian.PutUint32(b[0x94:0x98], es.orphanListHead)
	return b
}

// cString interpret b as a NUL-terminated string
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
