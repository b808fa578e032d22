package core

// reader.go cleans upload bytes before they reach encoding/csv.
//
// Spreadsheet exports often carry a UTF-8 byte order mark, and files saved
// in a legacy code page contain byte sequences that are not valid UTF-8.
// NewCleanReader strips the former and replaces the latter with '?' without
// buffering the whole file.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NewBOMSkippingReader returns a reader that drops a leading UTF-8 BOM.
func NewBOMSkippingReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// UTF8Sanitizer replaces invalid UTF-8 bytes with '?' as they are read.
// A multi-byte sequence split across two reads is held back until the next
// read completes it. Callers should read with buffers of at least
// utf8.UTFMax bytes.
type UTF8Sanitizer struct {
	r       io.Reader
	pending []byte
	eof     bool
}

// NewUTF8Sanitizer wraps r.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{r: r}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]

	var err error
	if len(s.pending) == 0 && !s.eof && n < len(p) {
		var m int
		m, err = s.r.Read(p[n:])
		n += m
		if err == io.EOF {
			s.eof = true
			err = nil
		}
	}

	w, tail := sanitizeInPlace(p[:n], s.eof)
	if len(tail) > 0 {
		s.pending = append(append([]byte(nil), tail...), s.pending...)
	}

	if w == 0 && err == nil && s.eof && len(s.pending) == 0 {
		return 0, io.EOF
	}
	return w, err
}

// sanitizeInPlace rewrites data so it is valid UTF-8 and returns the number of
// bytes written. Unless atEOF, a trailing incomplete sequence is returned as
// tail instead of being replaced.
func sanitizeInPlace(data []byte, atEOF bool) (int, []byte) {
	if utf8.Valid(data) {
		return len(data), nil
	}

	w := 0
	for r := 0; r < len(data); {
		c, size := utf8.DecodeRune(data[r:])
		if c == utf8.RuneError && size == 1 {
			if !atEOF && !utf8.FullRune(data[r:]) {
				return w, data[r:]
			}
			data[w] = '?'
			w++
			r++
			continue
		}
		copy(data[w:], data[r:r+size])
		w += size
		r += size
	}
	return w, nil
}

// NewCleanReader strips a BOM and sanitizes UTF-8, in that order.
func NewCleanReader(r io.Reader) io.Reader {
	return NewUTF8Sanitizer(NewBOMSkippingReader(r))
}
