package multimodal

import (
	"github.com/hybridgroup/yzma/pkg/mtmd"
)

// Bitmap owns one decoded image buffer plus an optional string id. The
// wrapper is the exclusive owner of its native handle: once Close is called
// the handle is released and every accessor fails with ErrBitmapDisposed.
type Bitmap struct {
	ptr mtmd.Bitmap
}

// NewBitmapFromBuffer decodes the raw image bytes in buf into a bitmap. The
// buffer encoding is whatever the native decoder accepts (png, jpg, etc).
func (s *Session) NewBitmapFromBuffer(buf []byte) (*Bitmap, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	if len(buf) == 0 {
		return nil, &DecodeError{Reason: "buffer is empty"}
	}

	ptr := mtmd.BitmapInitFromBuf(s.mctx, &buf[0], uint64(len(buf)))
	if ptr == 0 {
		return nil, &DecodeError{Reason: "the image format may not be supported or the buffer may be corrupted"}
	}

	return &Bitmap{ptr: ptr}, nil
}

// Dimensions returns the decoder reported width and height in pixels.
func (b *Bitmap) Dimensions() (width uint32, height uint32, err error) {
	if b == nil || b.ptr == 0 {
		return 0, 0, ErrBitmapDisposed
	}

	return mtmd.BitmapGetNx(b.ptr), mtmd.BitmapGetNy(b.ptr), nil
}

// Data returns a fresh copy of the pixel buffer. The copy is width*height*3
// bytes, assuming 3 bytes per pixel. Buffers whose underlying encoding
// violates that assumption are not validated here.
func (b *Bitmap) Data() ([]byte, error) {
	if b == nil || b.ptr == 0 {
		return nil, ErrBitmapDisposed
	}

	pixels := mtmd.BitmapGetData(b.ptr)

	data := make([]byte, len(pixels))
	copy(data, pixels)

	return data, nil
}

// ID returns the bitmap's id, or an empty string when no id has been set.
func (b *Bitmap) ID() (string, error) {
	if b == nil || b.ptr == 0 {
		return "", ErrBitmapDisposed
	}

	return mtmd.BitmapGetId(b.ptr), nil
}

// SetID assigns an id to the bitmap. The id is carried through tokenization
// into the image chunk the bitmap produces.
func (b *Bitmap) SetID(id string) error {
	if b == nil || b.ptr == 0 {
		return ErrBitmapDisposed
	}

	mtmd.BitmapSetId(b.ptr, id)

	return nil
}

// Close releases the native bitmap handle. It is safe to call multiple
// times; the second and later calls are no-ops.
func (b *Bitmap) Close() error {
	if b == nil || b.ptr == 0 {
		return nil
	}

	mtmd.BitmapFree(b.ptr)
	b.ptr = 0

	return nil
}
