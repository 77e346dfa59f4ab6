package agent

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder turns a sequence of byte chunks into text. A multi-byte character
// split across two chunks is held back until the rest of it arrives. Invalid
// bytes decode to U+FFFD.
type Decoder struct {
	t       transform.Transformer
	pending []byte
}

func NewDecoder() *Decoder {
	return &Decoder{t: unicode.UTF8.NewDecoder()}
}

// Decode returns the text completed by chunk. It may be empty.
func (d *Decoder) Decode(chunk []byte) string {
	return d.decode(chunk, false)
}

// Flush returns whatever is still held back, as replacement characters.
// Call it once the stream has ended.
func (d *Decoder) Flush() string {
	s := d.decode(nil, true)
	d.t.Reset()
	return s
}

func (d *Decoder) decode(chunk []byte, atEOF bool) string {
	src := chunk
	if len(d.pending) > 0 {
		src = append(d.pending, chunk...)
		d.pending = nil
	}
	if len(src) == 0 {
		return ""
	}

	// Each invalid byte may expand to a 3-byte U+FFFD
	dst := make([]byte, len(src)*3+utf8.UTFMax)
	var out []byte
	for {
		nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]

		switch {
		case err == nil:
			return string(out)
		case errors.Is(err, transform.ErrShortDst):
			dst = make([]byte, len(dst)*2)
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append([]byte(nil), src...)
			return string(out)
		default:
			// The UTF-8 decoder replaces bad input instead of failing
			return string(out)
		}
	}
}
