// Package backend acquires the byte regions filesystem images live in.
//
// The ext2 package works over a plain []byte; this package produces those
// regions, either by borrowing a caller-owned slice or by memory-mapping an
// image file so that writes through the region land in the file.
package backend

// Region is a fully resident byte view of a filesystem image, together with
// whatever is needed to release it.
type Region struct {
	bytes   []byte
	release func() error
}

// FromBytes wraps a caller-owned slice as a Region. Close is a no-op; the
// caller keeps ownership of the slice.
func FromBytes(b []byte) *Region {
	return &Region{bytes: b}
}

// Bytes the image bytes. The slice is shared, not copied: mutations are
// visible to every user of the region, and to the backing file when the
// region is a writable mapping.
func (r *Region) Bytes() []byte {
	return r.bytes
}

// Close releases the region. The bytes must not be used afterwards.
func (r *Region) Close() error {
	if r.release == nil {
		return nil
	}
	release := r.release
	r.release = nil
	r.bytes = nil
	return release()
}
