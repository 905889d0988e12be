package command

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/scriptstorm/internal/engine/script"
)

// Batch is a decoded command batch as delivered by the AI-edit collaborator.
type Batch struct {
	Commands []Command

	// BaseRevision is the document revision the batch was computed against,
	// or nil when the sender did not say.
	BaseRevision *uint64
}

// Based returns a copy of b computed against revision rev.
func (b Batch) Based(rev uint64) Batch {
	b.BaseRevision = &rev
	return b
}

type wireBatch struct {
	Commands     []wireCommand `json:"commands"`
	BaseRevision *uint64       `json:"baseRevision,omitempty"`
}

type wireCommand struct {
	Command    string  `json:"command"`
	LineNumber int     `json:"lineNumber"`
	Value      *string `json:"value,omitempty"`
	Format     string  `json:"format,omitempty"`
}

// DecodeBatch decodes {"commands":[{"command":"ADD","lineNumber":3,"value":"..."}]}.
// Command names are case-insensitive. Semantic checks are left to Validate,
// so an unknown command name decodes and then fails validation with its index.
func DecodeBatch(data []byte) (Batch, error) {
	var wb wireBatch
	if err := json.Unmarshal(data, &wb); err != nil {
		return Batch{}, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	if wb.Commands == nil {
		return Batch{}, fmt.Errorf("%w: no commands field", ErrMalformedBatch)
	}

	b := Batch{
		Commands:     make([]Command, 0, len(wb.Commands)),
		BaseRevision: wb.BaseRevision,
	}
	for _, wc := range wb.Commands {
		c := Command{
			Type:     Type(strings.ToUpper(strings.TrimSpace(wc.Command))),
			Position: wc.LineNumber,
			Value:    wc.Value,
		}
		if wc.Format != "" {
			if tag, ok := script.ParseTag(wc.Format); ok {
				c.Tag = tag
			} else {
				c.Tag = script.FormatTag(wc.Format)
			}
		}
		b.Commands = append(b.Commands, c)
	}
	return b, nil
}

// EncodeBatch is the inverse of DecodeBatch.
func EncodeBatch(b Batch) ([]byte, error) {
	wb := wireBatch{
		Commands:     make([]wireCommand, 0, len(b.Commands)),
		BaseRevision: b.BaseRevision,
	}
	for _, c := range b.Commands {
		wb.Commands = append(wb.Commands, wireCommand{
			Command:    string(c.Type),
			LineNumber: c.Position,
			Value:      c.Value,
			Format:     string(c.Tag),
		})
	}
	return json.Marshal(wb)
}
