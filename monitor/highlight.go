package monitor

import "strings"

// DefaultMarkers flag broken links and off-domain mailto addresses.
var DefaultMarkers = []string{"❌", "Mailto:"}

// IsFlagged reports whether line contains any of markers. A nil markers
// slice means DefaultMarkers.
func IsFlagged(line string, markers []string) bool {
	if markers == nil {
		markers = DefaultMarkers
	}
	for _, marker := range markers {
		if marker != "" && strings.Contains(line, marker) {
			return true
		}
	}
	return false
}
