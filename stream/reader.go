package stream

import (
	"errors"
	"fmt"
	"io"
)

// DefaultChunkSize is the read size used by NewReader.
const DefaultChunkSize = 4096

// ErrAborted marks a stream that broke off before the transport ended it.
var ErrAborted = errors.New("stream aborted")

// Reader decodes events from a streamed body in arrival order.
type Reader struct {
	src     io.Reader
	chunk   []byte
	split   Splitter
	pending []string
	done    bool
}

// NewReader returns a Reader consuming src in DefaultChunkSize reads.
func NewReader(src io.Reader) *Reader {
	return NewReaderSize(src, DefaultChunkSize)
}

// NewReaderSize returns a Reader consuming src in reads of at most size bytes.
func NewReaderSize(src io.Reader, size int) *Reader {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Reader{src: src, chunk: make([]byte, size)}
}

// Next returns the next event. It returns io.EOF once the stream has ended
// and the trailing line, if any, has been delivered. Any other error is a
// transport failure; the partially buffered line is discarded with it.
func (r *Reader) Next() (Event, error) {
	line, err := r.NextLine()
	if err != nil {
		return Event{}, err
	}
	return Decode(line), nil
}

// NextLine is Next without decoding.
func (r *Reader) NextLine() (string, error) {
	for len(r.pending) == 0 {
		if r.done {
			return "", io.EOF
		}
		n, err := r.src.Read(r.chunk)
		if n > 0 {
			r.pending = append(r.pending, r.split.Feed(r.chunk[:n])...)
		}
		if errors.Is(err, io.EOF) {
			r.pending = append(r.pending, r.split.Flush()...)
			r.done = true
			continue
		}
		if err != nil {
			r.done = true
			r.pending = nil
			return "", fmt.Errorf("%w: %w", ErrAborted, err)
		}
	}

	line := r.pending[0]
	r.pending = r.pending[1:]
	return line, nil
}
