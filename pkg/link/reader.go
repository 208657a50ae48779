package link

import (
	"bytes"
	"io"
)

// maxDiscard - garbage budget between two valid headers,
// above it the transport is considered lost
var maxDiscard = 64 * 1024

var magicBytes = []byte{0xAA, 0x55, 0xAA, 0x55} // Magic in wire order

// Reader - frame reader with resync on framing errors.
// Short reads are backpressure, not errors: ReadMessage blocks until the
// transport delivers the bytes the header promised.
type Reader struct {
	r   io.Reader
	buf []byte

	// Resyncs - count of framing errors survived so far
	Resyncs int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadMessage - next decoded message from the transport.
// ErrShortPayload means this single frame was dropped and the stream is
// still in sync. Any other error means the transport should be closed.
func (r *Reader) ReadMessage() (any, error) {
	h, err := r.readHeader()
	if err != nil {
		return nil, err
	}

	payload, err := r.next(int(h.Length))
	if err != nil {
		return nil, err
	}

	return Decode(h.Type, payload)
}

func (r *Reader) readHeader() (*Header, error) {
	discarded := 0

	for {
		if err := r.fill(HeaderSize); err != nil {
			return nil, err
		}

		h := DecodeHeader(r.buf)
		if err := h.Check(); err == nil {
			r.buf = r.buf[HeaderSize:]
			return h, nil
		}

		// desync: drop bytes up to the next magic candidate
		i := bytes.Index(r.buf[1:], magicBytes)
		if i < 0 {
			// partial magic may straddle the buffer end
			i = len(r.buf) - len(magicBytes)
		} else {
			r.Resyncs++
		}
		discarded += i + 1
		r.buf = r.buf[i+1:]

		if discarded > maxDiscard {
			return nil, ErrDesync
		}
	}
}

// next - take n payload bytes, blocking until available
func (r *Reader) next(n int) ([]byte, error) {
	if err := r.fill(n); err != nil {
		return nil, err
	}
	b := r.buf[:n:n]
	r.buf = r.buf[n:]
	return b, nil
}

func (r *Reader) fill(n int) error {
	for len(r.buf) < n {
		chunk := make([]byte, 4096)
		nn, err := r.r.Read(chunk)
		if nn > 0 {
			r.buf = append(r.buf, chunk[:nn]...)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}
