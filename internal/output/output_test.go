package output

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func TestProcessANSIColors(t *testing.T) {
	item := Item{
		Type:    TypeStderr,
		Content: "\x1b[31merror:\x1b[0m something broke",
	}

	got := ProcessANSI(item)

	if !got.BoolAttr(AttrProcessedANSI) {
		t.Error("processed item should carry isProcessedAnsi")
	}
	if !strings.Contains(got.Content, `<span class="ansi-red">error:</span>`) {
		t.Errorf("expected red span, got %q", got.Content)
	}
	if strings.ContainsRune(got.Content, 0x1b) {
		t.Errorf("escape bytes survived: %q", got.Content)
	}
}

func TestProcessANSIIdempotent(t *testing.T) {
	item := Item{Type: TypeError, Content: "\x1b[1mboom\x1b[0m"}

	once := ProcessANSI(item)
	twice := ProcessANSI(once)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second pass changed the item (-once +twice):\n%s", diff)
	}
}

func TestProcessANSISkipsStdout(t *testing.T) {
	item := Item{Type: TypeStdout, Content: "\x1b[32mgreen\x1b[0m"}
	got := ProcessANSI(item)
	if got.Content != item.Content {
		t.Errorf("stdout content should be untouched, got %q", got.Content)
	}
}

func TestProcessANSIEscapesHTML(t *testing.T) {
	item := Item{Type: TypeStderr, Content: "\x1b[31m<nil> & co\x1b[0m"}
	got := ProcessANSI(item)
	if !strings.Contains(got.Content, "&lt;nil&gt; &amp; co") {
		t.Errorf("text not escaped: %q", got.Content)
	}
}

func TestCoalesce(t *testing.T) {
	items := []Item{
		{Type: TypeStdout, Content: "a"},
		{Type: TypeStdout, Content: "b"},
		{Type: TypeStderr, Content: "x"},
		{Type: TypeError, Content: "y"},
		{Type: TypeStdout, Content: "c"},
		{Type: TypeHTML, Content: "<b>z</b>"},
		{Type: TypeHTML, Content: "<i>w</i>"},
	}

	got := Coalesce(items)

	want := []Item{
		{Type: TypeStdout, Content: "ab"},
		{Type: TypeStderr, Content: "xy"},
		{Type: TypeStdout, Content: "c"},
		{Type: TypeHTML, Content: "<b>z</b>"},
		{Type: TypeHTML, Content: "<i>w</i>"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Coalesce mismatch (-want +got):\n%s", diff)
	}
}

func TestTruncateText(t *testing.T) {
	long := strings.Repeat("x", 100)
	items := []Item{{Type: TypeStdout, Content: long}}

	got := TruncateForTranscript(items, 10)

	if len(got) != 1 {
		t.Fatalf("item count = %d", len(got))
	}
	if !strings.HasPrefix(got[0].Content, "xxxxxxxxxx") {
		t.Errorf("prefix not kept: %q", got[0].Content)
	}
	if !strings.Contains(got[0].Content, "[output truncated]") {
		t.Errorf("marker missing: %q", got[0].Content)
	}
	if !got[0].BoolAttr(AttrTruncated) {
		t.Error("truncated attr missing")
	}
}

func TestTruncateNonText(t *testing.T) {
	items := []Item{{Type: TypeImage, Content: "data:image/png;base64," + strings.Repeat("A", 500)}}

	got := TruncateForTranscript(items, 10)

	if got[0].Type != TypeText {
		t.Errorf("non-text should be replaced with placeholder, got type %s", got[0].Type)
	}
	if !strings.Contains(got[0].Content, "img output") {
		t.Errorf("placeholder label missing: %q", got[0].Content)
	}
}

func TestSummary(t *testing.T) {
	items := []Item{
		{Type: TypeStdout, Content: "hello "},
		{Type: TypeStdout, Content: "world"},
		{Type: TypeImage, Content: "data:image/png;base64,AAA"},
	}

	got := Summary(items, 1000)

	if !strings.Contains(got, "hello world") {
		t.Errorf("stdout not coalesced into summary: %q", got)
	}
	if !strings.Contains(got, "[img output]") {
		t.Errorf("image placeholder missing: %q", got)
	}
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	items := []Item{{Type: TypeStdout, Content: strings.Repeat("é", 8)}}

	got := TruncateForTranscript(items, 5)

	if !utf8.ValidString(got[0].Content) {
		t.Errorf("truncated content is not valid UTF-8: %q", got[0].Content)
	}
	prefix := strings.TrimSuffix(got[0].Content, truncationMarker)
	if prefix != "éé" {
		t.Errorf("prefix = %q, want the cut backed off to a rune boundary", prefix)
	}

	summary := Summary([]Item{{Type: TypeStdout, Content: strings.Repeat("世", 6)}}, 7)
	if !utf8.ValidString(summary) {
		t.Errorf("summary is not valid UTF-8: %q", summary)
	}
}
