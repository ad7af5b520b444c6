package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type wireEvent struct {
	Log      *string  `json:"log,omitempty"`
	Progress *float64 `json:"progress,omitempty"`
	Scanned  *int     `json:"scanned,omitempty"`
	Download *string  `json:"download,omitempty"`
}

// Encoder writes events as newline-delimited JSON. When the destination is
// an http.ResponseWriter that supports flushing, each record is flushed so
// clients observe it immediately.
type Encoder struct {
	w       io.Writer
	enc     *json.Encoder
	flusher http.Flusher
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	flusher, _ := w.(http.Flusher)
	return &Encoder{w: w, enc: enc, flusher: flusher}
}

// Encode writes one record holding only the fields present on evt. A raw
// event is written back verbatim so a recorded stream replays identically.
func (e *Encoder) Encode(evt Event) error {
	if evt.Raw {
		if _, err := fmt.Fprintln(e.w, evt.Log); err != nil {
			return fmt.Errorf("write raw line: %w", err)
		}
		e.flush()
		return nil
	}

	var wire wireEvent
	if evt.HasLog {
		wire.Log = &evt.Log
	}
	if evt.HasProgress {
		wire.Progress = &evt.Progress
	}
	if evt.HasScanned {
		wire.Scanned = &evt.Scanned
	}
	if evt.HasDownload {
		wire.Download = &evt.Download
	}
	if err := e.enc.Encode(wire); err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	e.flush()
	return nil
}

func (e *Encoder) flush() {
	if e.flusher != nil {
		e.flusher.Flush()
	}
}
