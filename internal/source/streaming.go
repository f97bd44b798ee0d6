package source

// streaming.go cleans up upload bytes before they reach the CSV parser.
//
//   - bomReader drops a leading UTF-8 byte order mark written by Excel.
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?' without buffering
//     the whole file.
//   - CountingReader tracks bytes read so uploads can be size-limited.

import (
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type bomReader struct {
	r       io.Reader
	checked bool
	head    []byte
}

func newBOMReader(r io.Reader) *bomReader {
	return &bomReader{r: r}
}

func (b *bomReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true

		buf := make([]byte, len(utf8BOM))
		n, err := io.ReadFull(b.r, buf)
		switch err {
		case nil, io.EOF, io.ErrUnexpectedEOF:
		default:
			return 0, err
		}
		if !bytes.Equal(buf[:n], utf8BOM) {
			b.head = buf[:n]
		}
	}

	if len(b.head) > 0 {
		n := copy(p, b.head)
		b.head = b.head[n:]
		return n, nil
	}
	return b.r.Read(p)
}

// utf8Sanitizer holds back an incomplete trailing sequence until the next
// read so multi-byte runes split across reads survive.
type utf8Sanitizer struct {
	r       io.Reader
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(p) < utf8.UTFMax {
		// Too small to guarantee progress with a held-back sequence.
		return s.r.Read(p)
	}

	off := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(p[off:])
	n += off
	if n == 0 {
		return 0, err
	}

	atEOF := err == io.EOF
	data := p[:n]
	if !atEOF {
		if tail := partialRuneSuffix(data); tail > 0 {
			s.pending = append(s.pending, data[n-tail:]...)
			data = data[:n-tail]
		}
	}
	if utf8.Valid(data) {
		if len(data) == 0 && err == nil {
			// Only a partial rune was read; ask for more.
			return s.Read(p)
		}
		return len(data), err
	}

	w := 0
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			i++
			continue
		}
		w += copy(data[w:], data[i:i+size])
		i += size
	}
	return w, err
}

// partialRuneSuffix returns how many trailing bytes of data begin a
// multi-byte sequence that has not been completed yet.
func partialRuneSuffix(data []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b&0xC0 == 0x80 {
			continue
		}
		if b >= 0xC0 && sequenceLen(b) > i {
			return i
		}
		return 0
	}
	return 0
}

func sequenceLen(lead byte) int {
	switch {
	case lead < 0x80:
		return 1
	case lead < 0xC0:
		return 0
	case lead < 0xE0:
		return 2
	case lead < 0xF0:
		return 3
	default:
		return 4
	}
}

// CountingReader counts the bytes that pass through it.
type CountingReader struct {
	r     io.Reader
	Bytes int64
}

// NewCountingReader wraps r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{r: r}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.Bytes += int64(n)
	return n, err
}

// Clean strips a BOM and sanitises UTF-8 in that order.
func Clean(r io.Reader) io.Reader {
	return newUTF8Sanitizer(newBOMReader(r))
}
