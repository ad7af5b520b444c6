// Package stream implements the Crawl Service wire contract: a response body
// of newline-delimited JSON event records delivered in arbitrary chunks.
package stream

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/buger/jsonparser"
)

// Event is one decoded record of the crawl stream. Every field is optional;
// the Has* flags record whether the key was present in the payload, so a
// consumer can tell "progress: 0" apart from "no progress key".
type Event struct {
	Log      string  // Human-readable status line
	Progress float64 // Overall completion percentage (0-100)
	Scanned  int     // Cumulative count of pages visited
	Download string  // URL of the finished report

	HasLog      bool
	HasProgress bool
	HasScanned  bool
	HasDownload bool

	// Raw is set when the line was not a JSON document; Log then holds the
	// line verbatim.
	Raw bool
}

// RawEvent wraps an undecodable line as a log entry.
func RawEvent(line string) Event {
	return Event{Log: line, HasLog: true, Raw: true}
}

// IsEmpty reports whether the event carries no recognised field.
func (e Event) IsEmpty() bool {
	return !e.HasLog && !e.HasProgress && !e.HasScanned && !e.HasDownload
}

// Decode parses a single trimmed line. A line that is not valid JSON, or is
// the literal null, becomes a raw log event. Any other JSON that is not an
// object yields an empty event. Keys carrying the wrong JSON type are ignored.
func Decode(line string) Event {
	data := []byte(line)
	if !json.Valid(data) {
		return RawEvent(line)
	}
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		return RawEvent(line)
	}
	if len(data) == 0 || data[0] != '{' {
		return Event{}
	}

	// Duplicate keys resolve to the last occurrence.
	type field struct {
		value    []byte
		dataType jsonparser.ValueType
	}
	fields := make(map[string]field, 4)
	err := jsonparser.ObjectEach(data, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		switch k := string(key); k {
		case "log", "progress", "scanned", "download":
			fields[k] = field{value: value, dataType: dataType}
		}
		return nil
	})
	if err != nil {
		return Event{}
	}

	var evt Event
	if f, ok := fields["log"]; ok && f.dataType == jsonparser.String {
		if s, parseErr := jsonparser.ParseString(f.value); parseErr == nil {
			evt.Log = s
			evt.HasLog = true
		}
	}
	if f, ok := fields["progress"]; ok && f.dataType == jsonparser.Number {
		if v, parseErr := jsonparser.ParseFloat(f.value); parseErr == nil {
			evt.Progress = v
			evt.HasProgress = true
		}
	}
	if f, ok := fields["scanned"]; ok && f.dataType == jsonparser.Number {
		if n, ok := parseCount(f.value); ok {
			evt.Scanned = n
			evt.HasScanned = true
		}
	}
	if f, ok := fields["download"]; ok && f.dataType == jsonparser.String {
		if s, parseErr := jsonparser.ParseString(f.value); parseErr == nil {
			evt.Download = s
			evt.HasDownload = true
		}
	}
	return evt
}

// parseCount accepts integral numbers written either as 12 or 12.0.
// Fractional counts are truncated toward zero.
func parseCount(value []byte) (int, bool) {
	if n, err := jsonparser.ParseInt(value); err == nil {
		return int(n), true
	}
	f, err := strconv.ParseFloat(string(value), 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}
