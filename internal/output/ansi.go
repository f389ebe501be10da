package output

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// AttrProcessedANSI marks an item whose ANSI escapes were already converted
// to inline markup. Tagged items are never re-processed downstream.
const AttrProcessedANSI = "isProcessedAnsi"

var sgrPattern = regexp.MustCompile(`\x1b\[([0-9;]*)m`)

// ProcessANSI converts control/escape sequences in stderr and error fragments
// into inline span markup. Other item types, and items already tagged
// AttrProcessedANSI, pass through unchanged.
func ProcessANSI(item Item) Item {
	if item.Type != TypeStderr && item.Type != TypeError {
		return item
	}
	if item.BoolAttr(AttrProcessedANSI) {
		return item
	}
	if !strings.ContainsRune(item.Content, 0x1b) {
		return item.WithAttr(AttrProcessedANSI, true)
	}

	item.Content = sgrToMarkup(item.Content)
	return item.WithAttr(AttrProcessedANSI, true)
}

// sgrToMarkup rewrites SGR color/style sequences as span tags and strips any
// remaining escape sequences. Text segments are HTML-escaped so the result is
// safe to embed as markup.
func sgrToMarkup(s string) string {
	var b strings.Builder
	openSpans := 0
	last := 0

	for _, loc := range sgrPattern.FindAllStringSubmatchIndex(s, -1) {
		writeEscapedText(&b, s[last:loc[0]])
		last = loc[1]

		params := s[loc[2]:loc[3]]
		for _, class := range sgrClasses(params) {
			if class == "" { // reset
				for openSpans > 0 {
					b.WriteString("</span>")
					openSpans--
				}
				continue
			}
			fmt.Fprintf(&b, `<span class=%q>`, class)
			openSpans++
		}
	}
	writeEscapedText(&b, s[last:])

	for openSpans > 0 {
		b.WriteString("</span>")
		openSpans--
	}
	return b.String()
}

// writeEscapedText strips non-SGR escape sequences and HTML-escapes the rest.
func writeEscapedText(b *strings.Builder, s string) {
	b.WriteString(html.EscapeString(ansi.Strip(s)))
}

var ansiColorNames = [...]string{
	"black", "red", "green", "yellow", "blue", "magenta", "cyan", "white",
}

// sgrClasses maps an SGR parameter list to span class names. An empty class
// means reset. Unknown parameters are dropped.
func sgrClasses(params string) []string {
	if params == "" {
		return []string{""}
	}
	var classes []string
	for _, p := range strings.Split(params, ";") {
		switch {
		case p == "" || p == "0":
			classes = append(classes, "")
		case p == "1":
			classes = append(classes, "ansi-bold")
		case p == "3":
			classes = append(classes, "ansi-italic")
		case p == "4":
			classes = append(classes, "ansi-underline")
		case len(p) == 2 && p[0] == '3' && p[1] >= '0' && p[1] <= '7':
			classes = append(classes, "ansi-"+ansiColorNames[p[1]-'0'])
		case len(p) == 2 && p[0] == '9' && p[1] >= '0' && p[1] <= '7':
			classes = append(classes, "ansi-bright-"+ansiColorNames[p[1]-'0'])
		case len(p) == 2 && p[0] == '4' && p[1] >= '0' && p[1] <= '7':
			classes = append(classes, "ansi-bg-"+ansiColorNames[p[1]-'0'])
		}
	}
	return classes
}
