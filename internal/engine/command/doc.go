// Package command validates and applies ordered ADD/EDIT/DELETE batches
// against a script.Document snapshot.
//
// A batch is validated in full before any line is touched. Validation
// tracks the running length of the document, so a later command may
// address a line added earlier in the same batch. Apply works on a copy
// and hands back the new snapshot only when every command succeeded; the
// input document is never modified.
//
// Positions are translated to line identities at the moment each command
// runs, and every Result records the identity it touched.
package command
