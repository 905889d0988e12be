// Package script defines the screenplay document model: format-tagged
// lines, chapters, and the bracket markers used to tag a line on the wire.
//
// A Document is treated as an immutable snapshot. Mutating helpers return
// a new Document and leave the receiver untouched, so a snapshot handed to
// a reader stays valid while the next mutation is prepared.
//
// Lines carry a stable LineID assigned when the line is created. Positions
// are 1-based and always derived from order; they are never stored.
package script
