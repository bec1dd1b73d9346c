package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/opd-ai/kpxc/limits"
)

// ErrMalformedFrame is returned when the stream holds bytes that cannot
// start a JSON object. The offending bytes are consumed so the next read
// starts at the following object; the stream itself stays usable.
var ErrMalformedFrame = errors.New("malformed frame")

// ObjectReader splits a byte stream into complete top-level JSON objects.
// The peer writes objects back to back without delimiters, so frame
// boundaries are found by tracking brace depth outside of string literals.
type ObjectReader struct {
	r   *bufio.Reader
	max int
}

// NewObjectReader wraps r. Objects longer than limits.MaxFrameSize are
// rejected.
func NewObjectReader(r io.Reader) *ObjectReader {
	return &ObjectReader{r: bufio.NewReaderSize(r, 64*1024), max: limits.MaxFrameSize}
}

// Next returns the next object. It returns io.EOF at a clean end of stream,
// io.ErrUnexpectedEOF when the stream ends inside an object, ErrMalformedFrame
// for skipped garbage and limits.ErrFrameTooLarge for oversize objects. After
// ErrFrameTooLarge the stream position is undefined.
func (o *ObjectReader) Next() ([]byte, error) {
	if err := o.skipSpace(); err != nil {
		return nil, err
	}

	first, err := o.r.ReadByte()
	if err != nil {
		return nil, err
	}
	if first != '{' {
		skipped := 1 + o.skipToObject()
		return nil, fmt.Errorf("%w: %d bytes before object start", ErrMalformedFrame, skipped)
	}

	buf := []byte{first}
	depth := 1
	inString, escaped := false, false

	for depth > 0 {
		b, err := o.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		buf = append(buf, b)
		if len(buf) > o.max {
			return nil, fmt.Errorf("%w: object exceeds %d bytes", limits.ErrFrameTooLarge, o.max)
		}

		switch {
		case escaped:
			escaped = false
		case inString && b == '\\':
			escaped = true
		case b == '"':
			inString = !inString
		case inString:
		case b == '{':
			depth++
		case b == '}':
			depth--
		}
	}

	return buf, nil
}

func (o *ObjectReader) skipSpace() error {
	for {
		b, err := o.r.ReadByte()
		if err != nil {
			return err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return o.r.UnreadByte()
	}
}

// skipToObject discards bytes up to, not including, the next '{' and
// returns how many were dropped. Errors are left for the next read.
func (o *ObjectReader) skipToObject() int {
	n := 0
	for {
		peek, err := o.r.Peek(1)
		if err != nil || peek[0] == '{' {
			return n
		}
		_, _ = o.r.ReadByte()
		n++
	}
}
