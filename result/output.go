package result

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
)

// WriteJSON writes the whole transcript as indented JSON.
func WriteJSON(w io.Writer, t *Transcript) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("write json output: %w", err)
	}
	return nil
}

// WriteCSV writes the log lines as CSV to the writer.
// Always includes a header row, even if there are no lines.
// Column order: index, text, category, flagged
func WriteCSV(w io.Writer, t *Transcript) error {
	lines := t.Lines
	if lines == nil {
		lines = []Line{}
	}
	if err := gocsv.Marshal(&lines, w); err != nil {
		return fmt.Errorf("write csv output: %w", err)
	}
	return nil
}
