// Package actor runs single-writer actors inside one process.
//
// Every actor id owns a Mailbox: a buffered queue drained by exactly one
// goroutine. Operations submitted for the same id run one at a time in
// arrival order, so an operation that reads, mutates and persists the
// actor's state never interleaves with another operation on that state.
// Operations for different ids run in parallel.
//
// A System creates mailboxes lazily the first time an id is called and
// applies a per-call deadline. An operation whose deadline passes while it
// is still queued is skipped; one that is already running receives the same
// context and must abandon its storage work when the context is done.
//
// Mailboxes live until the System is closed. Actor ids are bounded by the
// number of shard buckets in this service, so there is no idle reaping.
package actor
