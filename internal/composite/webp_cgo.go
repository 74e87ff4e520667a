//go:build cgo

package composite

/*
#cgo pkg-config: libwebp
#include <stdlib.h>
#include <webp/encode.h>
*/
import "C"
import (
	"fmt"
	"image"
	"unsafe"
)

// webpEncoder encodes tiles as WebP via native libwebp. Decoding uses
// github.com/gen2brain/webp instead (see decoders in encoder.go) so a
// CGo-free build can still read back webp tiles it never wrote itself.
type webpEncoder struct{ Quality int }

func (e *webpEncoder) Encode(img image.Image) ([]byte, error) {
	q := e.Quality
	if q <= 0 {
		q = 85
	}
	rgba := toRGBA(img)
	bounds := rgba.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("composite: webp encode of empty image")
	}

	var output *C.uint8_t
	size := C.WebPEncodeRGBA(
		(*C.uint8_t)(unsafe.Pointer(&rgba.Pix[0])),
		C.int(w), C.int(h), C.int(rgba.Stride),
		C.float(q),
		&output,
	)
	if size == 0 || output == nil {
		return nil, fmt.Errorf("composite: webp encode failed")
	}
	defer C.WebPFree(unsafe.Pointer(output))
	return C.GoBytes(unsafe.Pointer(output), C.int(size)), nil
}

func (e *webpEncoder) Format() string        { return "webp" }
func (e *webpEncoder) FileExtension() string { return "webp" }
