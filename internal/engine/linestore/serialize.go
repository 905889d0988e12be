package linestore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/scriptstorm/internal/engine/script"
)

// timeLayout is ISO 8601 with millisecond precision.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

type envelope struct {
	Content   string           `json:"content"`
	Format    string           `json:"format"`
	Chapters  []script.Chapter `json:"chapters"`
	PageCount int              `json:"pageCount,omitempty"`
	Metadata  metadata         `json:"metadata"`
}

type metadata struct {
	LastModified  string `json:"lastModified"`
	Version       string `json:"version"`
	FormatVersion string `json:"formatVersion"`
}

// Serialize writes d as the canonical envelope with a fresh lastModified.
func (s *Store) Serialize(d *script.Document) (string, error) {
	if d == nil {
		d = script.Seed()
	}

	format := d.Format
	if format == "" {
		format = script.DefaultFormat
	}
	chapters := d.Chapters
	if chapters == nil {
		chapters = []script.Chapter{}
	}

	env := envelope{
		Content:   Content(d),
		Format:    format,
		Chapters:  chapters,
		PageCount: d.PageCount,
		Metadata: metadata{
			LastModified:  s.now().UTC().Format(timeLayout),
			Version:       strconv.FormatUint(d.Revision, 10),
			FormatVersion: script.FormatVersion,
		},
	}

	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encoding envelope: %w", err)
	}
	return string(data), nil
}

// Content renders the tagged content string: one "[TAG]text[/TAG]" entry per
// line, newline separated.
func Content(d *script.Document) string {
	var b strings.Builder
	for i, l := range d.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Tagged())
	}
	return b.String()
}

// ownedPaths are the envelope fields Serialize controls.
var ownedPaths = []string{
	"content",
	"format",
	"chapters",
	"metadata.lastModified",
	"metadata.version",
	"metadata.formatVersion",
}

// Merge serializes d over base, a previously loaded envelope, keeping any
// fields of base that d does not own. A base that is not a JSON object is
// ignored and Merge behaves like Serialize.
func (s *Store) Merge(base string, d *script.Document) (string, error) {
	fresh, err := s.Serialize(d)
	if err != nil {
		return "", err
	}
	root := gjson.Parse(base)
	if !gjson.Valid(base) || !root.IsObject() {
		return fresh, nil
	}

	out := base
	if m := root.Get("metadata"); m.Exists() && !m.IsObject() {
		if out, err = sjson.Delete(out, "metadata"); err != nil {
			return "", fmt.Errorf("merging envelope: %w", err)
		}
	}
	for _, path := range ownedPaths {
		if out, err = sjson.SetRaw(out, path, gjson.Get(fresh, path).Raw); err != nil {
			return "", fmt.Errorf("merging envelope %s: %w", path, err)
		}
	}
	if d != nil && d.PageCount > 0 {
		out, err = sjson.Set(out, "pageCount", d.PageCount)
	} else {
		out, err = sjson.Delete(out, "pageCount")
	}
	if err != nil {
		return "", fmt.Errorf("merging envelope pageCount: %w", err)
	}
	return out, nil
}
