package stream

import (
	"bytes"
	"strings"
)

// utf8BOM is dropped from the very start of a stream, as text decoders do.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Splitter turns arbitrarily sized byte chunks into complete, trimmed,
// non-empty lines. Bytes after the last newline are buffered until the next
// Feed or Flush, so neither a line nor a multi-byte UTF-8 sequence is ever
// split by a chunk boundary.
type Splitter struct {
	buf     []byte
	started bool
}

// Feed appends chunk to the buffer and returns every line it completed.
func (s *Splitter) Feed(chunk []byte) []string {
	s.buf = append(s.buf, chunk...)
	if !s.started {
		if len(s.buf) < len(utf8BOM) && bytes.HasPrefix(utf8BOM, s.buf) {
			return nil
		}
		s.buf = bytes.TrimPrefix(s.buf, utf8BOM)
		s.started = true
	}

	var lines []string
	start := 0
	for {
		idx := bytes.IndexByte(s.buf[start:], '\n')
		if idx < 0 {
			break
		}
		lines = appendLine(lines, s.buf[start:start+idx])
		start += idx + 1
	}
	s.buf = append(s.buf[:0], s.buf[start:]...)
	return lines
}

// Flush returns the buffered trailing line, if any, and resets the splitter.
// Call it once the stream has ended.
func (s *Splitter) Flush() []string {
	lines := appendLine(nil, s.buf)
	s.buf = s.buf[:0]
	s.started = false
	return lines
}

// Pending reports how many bytes are buffered waiting for a newline.
func (s *Splitter) Pending() int {
	return len(s.buf)
}

func appendLine(lines []string, raw []byte) []string {
	text := strings.TrimSpace(strings.ToValidUTF8(string(raw), "\uFFFD"))
	if text == "" {
		return lines
	}
	return append(lines, text)
}
