package stage

import (
	"fmt"
	"strings"
)

// Extracted document text carries "[Page N]" markers, one per source
// page, produced by the upstream text-extraction service.

// PageRange is a 1-indexed inclusive-start, exclusive-end page window.
type PageRange struct {
	Start int
	End   int
}

// PageWindow returns the text of pages [start, end) from marked text.
// Out-of-range bounds are clamped; an inverted range yields "".
func PageWindow(text string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end <= start {
		return ""
	}
	var b strings.Builder
	for p := start; p < end; p++ {
		marker := fmt.Sprintf("[Page %d]", p)
		i := strings.Index(text, marker)
		if i == -1 {
			continue
		}
		next := strings.Index(text[i+len(marker):], "[Page ")
		var chunk string
		if next == -1 {
			chunk = text[i:]
		} else {
			chunk = text[i : i+len(marker)+next]
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimRight(chunk, "\n"))
	}
	return b.String()
}

// PageWindows concatenates several page ranges from marked text.
func PageWindows(text string, ranges []PageRange) string {
	var parts []string
	for _, r := range ranges {
		w := PageWindow(text, r.Start, r.End)
		if w != "" {
			parts = append(parts, w)
		}
	}
	return strings.Join(parts, "\n\n")
}

// CountPages returns the number of "[Page N]" markers in marked text.
func CountPages(text string) int {
	n := 0
	for i := 0; ; {
		j := strings.Index(text[i:], "[Page ")
		if j == -1 {
			return n
		}
		n++
		i += j + 6
	}
}

// ClampChars truncates s to at most max characters, appending the
// truncation marker when anything was cut.
func ClampChars(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "\n[...truncated...]"
}
