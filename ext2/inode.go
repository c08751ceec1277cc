package ext2

import (
	"encoding/binary"
	"fmt"
)

type typePermissions uint16
type fileType uint16
type inodeFlags uint32

const (
	// inodeDataSize is the defined portion of an on-disk inode record. The
	// record itself is inodeStructSize bytes (128 without an extended
	// superblock), of which the first 128 are defined here.
	inodeDataSize = 128

	// directPointerCount how many direct block pointers an inode holds
	directPointerCount = 12

	// file type, stored in the top four bits of the type+permissions field
	fileTypeMask         fileType = 0xf000
	fileTypeFifo         fileType = 0x1000
	fileTypeCharDevice   fileType = 0x2000
	fileTypeDirectory    fileType = 0x4000
	fileTypeBlockDevice  fileType = 0x6000
	fileTypeRegularFile  fileType = 0x8000
	fileTypeSymbolicLink fileType = 0xa000
	fileTypeSocket       fileType = 0xc000

	permissionOtherExecute typePermissions = 0o00001
	permissionOtherWrite   typePermissions = 0o00002
	permissionOtherRead    typePermissions = 0o00004
	permissionGroupExecute typePermissions = 0o00010
	permissionGroupWrite   typePermissions = 0o00020
	permissionGroupRead    typePermissions = 0o00040
	permissionUserExecute  typePermissions = 0o00100
	permissionUserWrite    typePermissions = 0o00200
	permissionUserRead     typePermissions = 0o00400
	permissionSticky       typePermissions = 0o01000
	permissionSetGroupID   typePermissions = 0o02000
	permissionSetUserID    typePermissions = 0o04000

	inodeFlagSecureDeletion     inodeFlags = 0x00000001
	inodeFlagCopyOnDeletion     inodeFlags = 0x00000002
	inodeFlagCompressed         inodeFlags = 0x00000004
	inodeFlagSynchronousUpdates inodeFlags = 0x00000008
	inodeFlagImmutable          inodeFlags = 0x00000010
	inodeFlagAppendOnly         inodeFlags = 0x00000020
	inodeFlagNoDump             inodeFlags = 0x00000040
	inodeFlagNoAccessTimeUpdate inodeFlags = 0x00000080
	inodeFlagHashIndexedDir     inodeFlags = 0x00010000
	inodeFlagAFSDir             inodeFlags = 0x00020000
	inodeFlagJournalData        inodeFlags = 0x00040000
)

func (tp typePermissions) fileType() fileType {
	return fileType(tp) & fileTypeMask
}

func (tp typePermissions) included(a typePermissions) bool {
	return tp&a == a
}

func (f inodeFlags) included(a inodeFlags) bool {
	return f&a == a
}

// inodeData is the decoded on-disk inode record
type inodeData struct {
	typePermissions  typePermissions
	userID           uint16
	sizeLower        uint32
	accessTime       uint32
	creationTime     uint32
	modificationTime uint32
	deletionTime     uint32
	groupID          uint16
	linkCount        uint16
	sectorCount      uint32
	flags            inodeFlags
	osSpecific1      uint32
	directPointers   [directPointerCount]uint32
	singlyIndirect   uint32
	doublyIndirect   uint32
	triplyIndirect   uint32
	generation       uint32
	fileACL          uint32
	upperSizeOrACL   uint32
	fragmentAddress  uint32
	osSpecific2      [12]byte
}

// inodeDataFromBytes create an inodeData from the raw inode record
func inodeDataFromBytes(b []byte) (*inodeData, error) {
	if len(b) < inodeDataSize {
		return nil, fmt.Errorf("inode data too short: %d bytes, must be at least %d bytes", len(b), inodeDataSize)
	}
	in := inodeData{
		typePermissions:  typePermissions(binary.LittleEndian.Uint16(b[0x0:0x2])),
		userID:           binary.LittleEndian.Uint16(b[0x2:0x4]),
		sizeLower:        binary.LittleEndian.Uint32(b[0x4:0x8]),
		accessTime:       binary.LittleEndian.Uint32(b[0x8:0xc]),
		creationTime:     binary.LittleEndian.Uint32(b[0xc:0x10]),
		modificationTime: binary.LittleEndian.Uint32(b[0x10:0x14]),
		deletionTime:     binary.LittleEndian.Uint32(b[0x14:0x18]),
		groupID:          binary.LittleEndian.Uint16(b[0x18:0x1a]),
		linkCount:        binary.LittleEndian.Uint16(b[0x1a:0x1c]),
		sectorCount:      binary.LittleEndian.Uint32(b[0x1c:0x20]),
		flags:            inodeFlags(binary.LittleEndian.Uint32(b[0x20:0x24])),
		osSpecific1:      binary.LittleEndian.Uint32(b[0x24:0x28]),
		singlyIndirect:   binary.LittleEndian.Uint32(b[0x58:0x5c]),
		doublyIndirect:   binary.LittleEndian.Uint32(b[0x5c:0x60]),
		triplyIndirect:   binary.LittleEndian.Uint32(b[0x60:0x64]),
		generation:       binary.LittleEndian.Uint32(b[0x64:0x68]),
		fileACL:          binary.LittleEndian.Uint32(b[0x68:0x6c]),
		upperSizeOrACL:   binary.LittleEndian.Uint32(b[0x6c:0x70]),
		fragmentAddress:  binary.LittleEndian.Uint32(b[0x70:0x74]),
	}
	for i := 0; i < directPointerCount; i++ {
		in.directPointers[i] = binary.LittleEndian.Uint32(b[0x28+i*4 : 0x2c+i*4])
	}
	copy(in.osSpecific2[:], b[0x74:0x80])
	return &in, nil
}

// toBytes serialize the inode record to its 128 defined bytes
func (in *inodeData) toBytes() []byte {
	b := make([]byte, inodeDataSize)
	binary.LittleEndian.PutUint16(b[0x0:0x2], uint16(in.typePermissions))
	binary.LittleEndian.PutUint16(b[0x2:0x4], in.userID)
	binary.LittleEndian.PutUint32(b[0x4:0x8], in.sizeLower)
	binary.LittleEndian.PutUint32(b[0x8:0xc], in.accessTime)
	binary.LittleEndian.PutUint32(b[0xc:0x10], in.creationTime)
	binary.LittleEndian.PutUint32(b[0x10:0x14], in.modificationTime)
	binary.LittleEndian.PutUint32(b[0x14:0x18], in.deletionTime)
	binary.LittleEndian.PutUint16(b[0x18:0x1a], in.groupID)
	binary.LittleEndian.PutUint16(b[0x1a:0x1c], in.linkCount)
	binary.LittleEndian.PutUint32(b[0x1c:0x20], in.sectorCount)
	binary.LittleEndian.PutUint32(b[0x20:0x24], uint32(in.flags))
	binary.LittleEndian.PutUint32(b[0x24:0x28], in.osSpecific1)
	for i := 0; i < directPointerCount; i++ {
		binary.LittleEndian.PutUint32(b[0x28+i*4:0x2c+i*4], in.directPointers[i])
	}
	binary.LittleEndian.PutUint32(b[0x58:0x5c], in.singlyIndirect)
	binary.LittleEndian.PutUint32(b[0x5c:0x60], in.doublyIndirect)
	binary.LittleEndian.PutUint32(b[0x60:0x64], in.triplyIndirect)
	binary.LittleEndian.PutUint32(b[0x64:0x68], in.generation)
	binary.LittleEndian.PutUint32(b[0x68:0x6c], in.fileACL)
	binary.LittleEndian.PutUint32(b[0x6c:0x70], in.upperSizeOrACL)
	binary.LittleEndian.PutUint32(b[0x70:0x74], in.fragmentAddress)
	copy(b[0x74:0x80], in.osSpecific2[:])
	return b
}

// Inode is a view on one inode record inside the image. It borrows the
// FileSystem it came from and is valid for as long as that FileSystem is.
type Inode struct {
	fs     *FileSystem
	number uint32
	group  uint32
	offset uint64
	data   *inodeData
}

// Number the inode number this view resolves, 1-based
func (in *Inode) Number() uint32 {
	return in.number
}

// Size the logical size of the inode's byte stream in bytes. For regular
// files on filesystems with the 64-bit file size write feature, the
// directory-ACL field holds the upper 32 bits; for everything else only the
// lower 32 bits count.
func (in *Inode) Size() uint64 {
	size := uint64(in.data.sizeLower)
	if in.data.typePermissions.fileType() != fileTypeRegularFile {
		return size
	}
	if in.fs.extended != nil && in.fs.extended.writeFeatures.included(writeFeatureFileSize64) {
		size |= uint64(in.data.upperSizeOrACL) << 32
	}
	return size
}

// IsDir whether the inode is a directory
func (in *Inode) IsDir() bool {
	return in.data.typePermissions.fileType() == fileTypeDirectory
}

// IsRegular whether the inode is a regular file
func (in *Inode) IsRegular() bool {
	return in.data.typePermissions.fileType() == fileTypeRegularFile
}

// Links the number of hard links to the inode
func (in *Inode) Links() uint16 {
	return in.data.linkCount
}
