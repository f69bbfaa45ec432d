package stream

import "strings"

var markerStripper = strings.NewReplacer(OpenMarker, "", CloseMarker, "")

// FormatReasoning removes every OpenMarker and CloseMarker from s and leaves everything else
// untouched. Removal repeats until nothing changes, so "<th<think>ink>" does not leave a marker
// behind; the result never contains a marker and FormatReasoning is idempotent.
func FormatReasoning(s string) string {
	for {
		out := markerStripper.Replace(s)
		if out == s {
			return out
		}
		s = out
	}
}

// HasMarker reports whether s contains either marker.
func HasMarker(s string) bool {
	return strings.Contains(s, OpenMarker) || strings.Contains(s, CloseMarker)
}

// displayable holds back a trailing partial marker such as "</thi" so it does not flash on
// screen before the rest of the marker arrives.
func displayable(s string) string {
	return s[:len(s)-partialMarkerSuffix(s)]
}

// partialMarkerSuffix returns the length of the longest suffix of s that is a proper prefix of
// a marker.
func partialMarkerSuffix(s string) int {
	longest := 0
	for _, m := range [...]string{OpenMarker, CloseMarker} {
		for n := len(m) - 1; n > longest; n-- {
			if strings.HasSuffix(s, m[:n]) {
				longest = n
				break
			}
		}
	}
	return longest
}
