// Package engine provides the screenplay document controller.
//
// The Controller is the façade over the document engine sub-packages:
//
//   - script: lines, format tags, and immutable document snapshots
//   - linestore: parsing raw content and serializing the canonical envelope
//   - command: validating and applying ADD/EDIT/DELETE batches
//   - queue: the FIFO mutation queue every change goes through
//
// and over the renderer packages it drives after each mutation:
// pagination for page layout and caret for caret placement.
//
// # Mutations
//
// Human edits and AI command batches are both ordinary queued tasks,
// tagged with a queue.Source. Queue position, not completion time,
// decides application order:
//
//	c := engine.New(engine.WithConfig(cfg))
//	_ = c.Open(ctx, raw)
//
//	res, err := c.Apply(ctx, queue.SourceAI, []command.Command{
//		command.Add(3, "[DIALOG]We need more time.[/DIALOG]"),
//	})
//
// A batch that fails validation leaves the document untouched and returns
// an *OperationError wrapping the *command.ValidationError.
//
// # Dirty flag and persistence
//
// Every modifying batch sets the dirty flag. Save clears it when the
// persistence service acknowledges the save of the current revision.
// SubmitEdits sends a batch through the service's applyEdits instead; a
// nil edit result from the service means nothing changed.
//
// # Caret
//
// The caret is re-derived after every committed mutation: it stays on its
// line when the line survives, falls to the line at the same position when
// its line is deleted, and follows a human-added line to its end.
package engine
