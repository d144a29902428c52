package multimodal

import (
	"fmt"
	"unsafe"

	"github.com/hybridgroup/yzma/pkg/mtmd"
)

// BitmapCollection is an ordered list of independently owned bitmap copies,
// used as the image input batch to tokenization. Add deep-copies the source
// bitmap so the collection's lifetime is decoupled from the bitmaps it was
// built from.
type BitmapCollection struct {
	entries []mtmd.Bitmap
	closed  bool
}

// NewBitmapCollection constructs an empty collection.
func NewBitmapCollection() *BitmapCollection {
	return &BitmapCollection{}
}

// Add copies the bitmap's pixels and id into a newly allocated native handle
// owned by the collection. The source bitmap may be closed afterwards without
// affecting the collection.
func (c *BitmapCollection) Add(bitmap *Bitmap) error {
	if c == nil || c.closed {
		return ErrCollectionDisposed
	}

	if bitmap == nil || bitmap.ptr == 0 {
		return ErrBitmapDisposed
	}

	nx := mtmd.BitmapGetNx(bitmap.ptr)
	ny := mtmd.BitmapGetNy(bitmap.ptr)

	data := mtmd.BitmapGetData(bitmap.ptr)
	if len(data) == 0 {
		return fmt.Errorf("unable to read bitmap data")
	}

	ptr := mtmd.BitmapInit(nx, ny, uintptr(unsafe.Pointer(&data[0])))
	if ptr == 0 {
		return fmt.Errorf("unable to copy bitmap into the collection")
	}

	if id := mtmd.BitmapGetId(bitmap.ptr); id != "" {
		mtmd.BitmapSetId(ptr, id)
	}

	c.entries = append(c.entries, ptr)

	return nil
}

// Count returns the number of bitmaps owned by the collection.
func (c *BitmapCollection) Count() int {
	if c == nil {
		return 0
	}

	return len(c.entries)
}

// Close releases every owned copy. It is safe to call multiple times.
func (c *BitmapCollection) Close() error {
	if c == nil || c.closed {
		return nil
	}
	c.closed = true

	for _, entry := range c.entries {
		mtmd.BitmapFree(entry)
	}
	c.entries = nil

	return nil
}

// snapshot returns the native handles for a borrowed, read-only view of the
// collection. The collection must stay alive for as long as the snapshot is
// in use.
func (c *BitmapCollection) snapshot() ([]mtmd.Bitmap, error) {
	if c == nil || c.closed {
		return nil, ErrCollectionDisposed
	}

	bitmaps := make([]mtmd.Bitmap, len(c.entries))
	copy(bitmaps, c.entries)

	return bitmaps, nil
}
