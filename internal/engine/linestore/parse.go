package linestore

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dshills/scriptstorm/internal/engine/script"
)

// Parse converts raw persisted content into a Document. It never fails.
func (s *Store) Parse(raw string) *script.Document {
	d, _ := s.ParseShape(raw)
	return d
}

// ParseShape is Parse that also reports which input shape was recognised.
func (s *Store) ParseShape(raw string) (*script.Document, Shape) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return script.Seed(), ShapeEmpty
	}

	if gjson.Valid(trimmed) {
		root := gjson.Parse(trimmed)
		if root.IsObject() {
			if root.Get("metadata.formatVersion").String() == script.FormatVersion {
				if d, ok := parseCanonical(root); ok {
					return seedIfEmpty(d), ShapeCanonical
				}
				s.logger.Warn("canonical envelope has no usable content, reading as plain text")
			} else if d, ok := parseLegacy(root); ok {
				s.logger.Debug("upgrading legacy structured content")
				return seedIfEmpty(d), ShapeLegacyJSON
			}
		}
	}

	s.logger.Debug("content is not structured, reading as plain text")
	return seedIfEmpty(parsePlain(raw)), ShapePlain
}

func parseCanonical(root gjson.Result) (*script.Document, bool) {
	content := root.Get("content")
	if content.Type != gjson.String {
		return nil, false
	}

	d := &script.Document{
		Lines:         parseTagged(content.String()),
		Format:        formatOf(root),
		FormatVersion: script.FormatVersion,
		PageCount:     int(root.Get("pageCount").Int()),
		Chapters:      parseChapters(root.Get("chapters")),
	}
	if rev, err := strconv.ParseUint(root.Get("metadata.version").String(), 10, 64); err == nil {
		d.Revision = rev
	}
	return d, true
}

func parseLegacy(root gjson.Result) (*script.Document, bool) {
	content := root.Get("content")

	var texts []string
	switch {
	case content.Type == gjson.String:
		texts = splitLines(content.String())
	case content.IsArray():
		for _, item := range content.Array() {
			if item.Type != gjson.String {
				return nil, false
			}
			texts = append(texts, splitLines(item.String())...)
		}
	default:
		return nil, false
	}

	return &script.Document{
		Lines:         actionLines(texts),
		Format:        formatOf(root),
		FormatVersion: script.FormatVersion,
		Chapters:      parseChapters(root.Get("chapters")),
	}, true
}

func parsePlain(raw string) *script.Document {
	return &script.Document{
		Lines:         actionLines(splitLines(raw)),
		Format:        script.DefaultFormat,
		FormatVersion: script.FormatVersion,
	}
}

// parseTagged reads one line per "[TAG]...[/TAG]" entry. An entry whose
// closing marker is on a later physical line spans those lines. Physical
// lines with no recognised opening marker become action lines; blank
// physical lines between entries are skipped.
func parseTagged(content string) []script.Line {
	physical := strings.Split(normalizeNewlines(content), "\n")

	var lines []script.Line
	for i := 0; i < len(physical); i++ {
		p := physical[i]
		if strings.TrimSpace(p) == "" {
			continue
		}

		tag, rest, ok := script.OpenTag(p)
		if !ok {
			lines = append(lines, script.NewLine(script.TagAction, p))
			continue
		}

		closing := tag.CloseMarker()
		if strings.HasSuffix(rest, closing) {
			lines = append(lines, script.NewLine(tag, strings.TrimSuffix(rest, closing)))
			continue
		}

		parts := []string{rest}
		end := -1
		for j := i + 1; j < len(physical); j++ {
			if strings.HasSuffix(physical[j], closing) {
				parts = append(parts, strings.TrimSuffix(physical[j], closing))
				end = j
				break
			}
			parts = append(parts, physical[j])
		}
		if end < 0 {
			// Never closed: keep the opening line on its own.
			lines = append(lines, script.NewLine(tag, rest))
			continue
		}
		lines = append(lines, script.NewLine(tag, strings.Join(parts, "\n")))
		i = end
	}
	return lines
}

func parseChapters(v gjson.Result) []script.Chapter {
	if !v.IsArray() {
		return nil
	}
	var chapters []script.Chapter
	for _, item := range v.Array() {
		if !item.IsObject() {
			continue
		}
		chapters = append(chapters, script.Chapter{
			Title:         item.Get("title").String(),
			StartPosition: int(item.Get("startPosition").Int()),
		})
	}
	return chapters
}

func formatOf(root gjson.Result) string {
	if f := root.Get("format"); f.Type == gjson.String && f.String() != "" {
		return f.String()
	}
	return script.DefaultFormat
}

func actionLines(texts []string) []script.Line {
	lines := make([]script.Line, 0, len(texts))
	for _, t := range texts {
		lines = append(lines, script.NewLine(script.TagAction, t))
	}
	return lines
}

func splitLines(s string) []string {
	s = strings.TrimRight(normalizeNewlines(s), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func seedIfEmpty(d *script.Document) *script.Document {
	if d.Len() > 0 {
		return d
	}
	seed := script.Seed()
	seed.Format = d.Format
	seed.Chapters = d.Chapters
	seed.Revision = d.Revision
	return seed
}
