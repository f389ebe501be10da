package output

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// AttrTruncated marks an item whose content was cut for transcript use.
const AttrTruncated = "truncated"

// truncationMarker is appended to text outputs cut at the transcript limit.
const truncationMarker = "\n... [output truncated]"

// Coalesce merges adjacent same-stream fragments: consecutive stdout items
// become one, and consecutive stderr/error items become one (keeping the
// first item's type). Non-stream items are left as-is.
func Coalesce(items []Item) []Item {
	if len(items) < 2 {
		return items
	}

	merged := make([]Item, 0, len(items))
	for _, item := range items {
		if len(merged) > 0 {
			prev := &merged[len(merged)-1]
			if sameStream(prev.Type, item.Type) {
				prev.Content += item.Content
				continue
			}
		}
		merged = append(merged, item)
	}
	return merged
}

// sameStream reports whether two fragment types belong to the same stream
// for coalescing purposes. stderr and error coalesce together.
func sameStream(a, b Type) bool {
	if a == TypeStdout && b == TypeStdout {
		return true
	}
	errish := func(t Type) bool { return t == TypeStderr || t == TypeError }
	return errish(a) && errish(b)
}

// TruncateForTranscript bounds items for transcript/history use (not live
// rendering). Text items above limit keep a prefix plus a truncation marker;
// non-text items above limit are replaced by a short placeholder label.
func TruncateForTranscript(items []Item, limit int) []Item {
	if limit <= 0 {
		return items
	}

	out := make([]Item, 0, len(items))
	for _, item := range items {
		if len(item.Content) <= limit {
			out = append(out, item)
			continue
		}
		if IsTextual(item.Type) {
			item.Content = cutAtRune(item.Content, limit) + truncationMarker
			item = item.WithAttr(AttrTruncated, true)
		} else {
			item = Item{
				Type:    TypeText,
				Content: fmt.Sprintf("[%s output: %d bytes]", item.Type, len(item.Content)),
				Attrs:   map[string]any{AttrTruncated: true},
			}
		}
		out = append(out, item)
	}
	return out
}

// Summary renders items as a single truncated text block, used to hand
// captured output back to the agent's own context.
func Summary(items []Item, limit int) string {
	items = TruncateForTranscript(Coalesce(items), limit)

	var b strings.Builder
	for _, item := range items {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		if IsTextual(item.Type) {
			b.WriteString(item.Content)
		} else {
			fmt.Fprintf(&b, "[%s output]", item.Type)
		}
	}

	if b.Len() > limit && limit > 0 {
		return cutAtRune(b.String(), limit) + truncationMarker
	}
	return b.String()
}

// cutAtRune trims s to at most limit bytes, backing off to a rune boundary
// so the cut never emits invalid UTF-8.
func cutAtRune(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
