// Package output normalizes raw execution-output fragments into structured,
// consistently classed items: ANSI decoding, truncation, and coalescing.
package output

// Type classifies one output fragment.
type Type string

const (
	TypeStdout  Type = "stdout"
	TypeStderr  Type = "stderr"
	TypeError   Type = "error"
	TypeHTML    Type = "html"
	TypeImage   Type = "img"
	TypeSVG     Type = "svg"
	TypeAudio   Type = "audio"
	TypeService Type = "service"
	TypeText    Type = "text"
)

// Item is one normalized execution-output fragment. Content semantics depend
// on Type: raw text for streams, a data URI for binary types, an HTML/JSON
// fragment for rich types. Attrs is an open map carrying rendering hints.
type Item struct {
	Type    Type           `json:"type"`
	Content string         `json:"content"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// WithAttr returns a copy of the item with the attribute set.
func (i Item) WithAttr(key string, value any) Item {
	attrs := make(map[string]any, len(i.Attrs)+1)
	for k, v := range i.Attrs {
		attrs[k] = v
	}
	attrs[key] = value
	i.Attrs = attrs
	return i
}

// BoolAttr returns the named attribute if it is a bool, else false.
func (i Item) BoolAttr(key string) bool {
	v, ok := i.Attrs[key].(bool)
	return ok && v
}

// IsTextual reports whether the item's content is plain text rather than a
// data URI or markup fragment.
func IsTextual(t Type) bool {
	switch t {
	case TypeStdout, TypeStderr, TypeError, TypeText, TypeService:
		return true
	}
	return false
}

// IsStream reports whether the item came from a standard stream.
func IsStream(t Type) bool {
	return t == TypeStdout || t == TypeStderr || t == TypeError
}
