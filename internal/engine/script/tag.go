package script

import (
	"strings"
)

// FormatTag identifies the kind of screenplay element a line holds.
type FormatTag string

// Format tags.
const (
	TagHeader       FormatTag = "header"
	TagAction       FormatTag = "action"
	TagSpeaker      FormatTag = "speaker"
	TagDialog       FormatTag = "dialog"
	TagDirections   FormatTag = "directions"
	TagChapterBreak FormatTag = "chapter-break"
)

// Tags lists every format tag in canonical order.
var Tags = []FormatTag{
	TagHeader,
	TagAction,
	TagSpeaker,
	TagDialog,
	TagDirections,
	TagChapterBreak,
}

// Valid reports whether t is a member of the fixed tag vocabulary.
func (t FormatTag) Valid() bool {
	switch t {
	case TagHeader, TagAction, TagSpeaker, TagDialog, TagDirections, TagChapterBreak:
		return true
	}
	return false
}

// String returns the tag name.
func (t FormatTag) String() string {
	return string(t)
}

// Marker returns the upper-case name used inside bracket markers.
func (t FormatTag) Marker() string {
	return strings.ToUpper(string(t))
}

// OpenMarker returns the opening marker, e.g. "[DIALOG]".
func (t FormatTag) OpenMarker() string {
	return "[" + t.Marker() + "]"
}

// CloseMarker returns the closing marker, e.g. "[/DIALOG]".
func (t FormatTag) CloseMarker() string {
	return "[/" + t.Marker() + "]"
}

// ParseTag converts a tag name or marker name (any case) into a FormatTag.
func ParseTag(s string) (FormatTag, bool) {
	t := FormatTag(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", false
	}
	return t, true
}

// Wrap renders text enclosed in the tag's markers.
func Wrap(tag FormatTag, text string) string {
	return tag.OpenMarker() + text + tag.CloseMarker()
}

// OpenTag reports the tag whose opening marker prefixes s, and the rest of s
// after the marker.
func OpenTag(s string) (FormatTag, string, bool) {
	if !strings.HasPrefix(s, "[") || strings.HasPrefix(s, "[/") {
		return "", s, false
	}
	end := strings.IndexByte(s, ']')
	if end < 0 {
		return "", s, false
	}
	tag, ok := ParseTag(s[1:end])
	if !ok {
		return "", s, false
	}
	return tag, s[end+1:], true
}

// Unwrap splits a fully tagged string such as "[SPEAKER]ANNA[/SPEAKER]" into
// its tag and text. ok is false when s is not enclosed in a matching pair.
func Unwrap(s string) (tag FormatTag, text string, ok bool) {
	tag, rest, ok := OpenTag(s)
	if !ok {
		return "", s, false
	}
	closing := tag.CloseMarker()
	if !strings.HasSuffix(rest, closing) {
		return "", s, false
	}
	return tag, strings.TrimSuffix(rest, closing), true
}
