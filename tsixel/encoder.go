package tsixel

import (
	"bytes"
	"image"
	"sync"

	"github.com/mattn/go-sixel"
)

// SIXELBufferSize is the initial size of each encoder buffer.
const SIXELBufferSize = 50 * 1024 // 50KB

// encoders is shared by every surface; encoding only happens during draws, so
// few encoders are alive at once.
var encoders = newEncoderPool()

type encoderPool sync.Pool

type pooledEncoder struct {
	*sixel.Encoder
	buf *bytes.Buffer
}

func newEncoderPool() *encoderPool {
	return (*encoderPool)(&sync.Pool{
		New: func() interface{} {
			buf := &bytes.Buffer{}
			buf.Grow(SIXELBufferSize)

			return pooledEncoder{
				Encoder: sixel.NewEncoder(buf),
				buf:     buf,
			}
		},
	})
}

// encode encodes img with a pooled encoder and returns a copy of the SIXEL
// data.
func (pool *encoderPool) encode(img image.Image) ([]byte, error) {
	enc := (*sync.Pool)(pool).Get().(pooledEncoder)
	defer (*sync.Pool)(pool).Put(enc)

	enc.buf.Reset()
	// Dithering is done before encoding, if at all.
	enc.Dither = false

	if err := enc.Encode(img); err != nil {
		return nil, err
	}

	return append([]byte(nil), enc.buf.Bytes()...), nil
}
