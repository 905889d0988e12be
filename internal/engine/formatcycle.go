package engine

import (
	"sync"

	"github.com/dshills/scriptstorm/internal/engine/script"
)

// DefaultFormatCycle is the tag order used when none is configured.
var DefaultFormatCycle = []script.FormatTag{
	script.TagHeader,
	script.TagAction,
	script.TagSpeaker,
	script.TagDialog,
	script.TagDirections,
}

// FormatCycle is a finite cycle over format tags with a current index.
// Repeated triggers on the same line advance modulo the cycle length;
// a trigger on a different line restarts from that line's current tag.
type FormatCycle struct {
	mu    sync.Mutex
	tags  []script.FormatTag
	index int
	line  script.LineID
}

// NewFormatCycle creates a cycle. Invalid and duplicate tags are dropped;
// an empty result falls back to DefaultFormatCycle.
func NewFormatCycle(tags ...script.FormatTag) *FormatCycle {
	seen := make(map[script.FormatTag]bool, len(tags))
	clean := make([]script.FormatTag, 0, len(tags))
	for _, t := range tags {
		if t.Valid() && !seen[t] {
			seen[t] = true
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 {
		clean = append(clean, DefaultFormatCycle...)
	}
	return &FormatCycle{tags: clean, index: -1}
}

// Tags returns the cycle order.
func (f *FormatCycle) Tags() []script.FormatTag {
	return append([]script.FormatTag(nil), f.tags...)
}

// Index returns the current index, or -1 before the first trigger.
func (f *FormatCycle) Index() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.index
}

// Next advances the cycle for line and returns the tag to assign.
// current is the line's tag before the trigger.
func (f *FormatCycle) Next(line script.LineID, current script.FormatTag) script.FormatTag {
	f.mu.Lock()
	defer f.mu.Unlock()

	if line != f.line || f.index < 0 || f.tags[f.index] != current {
		f.line = line
		f.index = f.indexOf(current)
	}
	f.index = (f.index + 1) % len(f.tags)
	return f.tags[f.index]
}

// Reset forgets the current line and index.
func (f *FormatCycle) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = -1
	f.line = script.LineID{}
}

func (f *FormatCycle) indexOf(tag script.FormatTag) int {
	for i, t := range f.tags {
		if t == tag {
			return i
		}
	}
	return -1
}
