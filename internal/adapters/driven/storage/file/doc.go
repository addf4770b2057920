// Package file provides the durable, file-backed implementation of
// driven.DocumentStore.
//
// # On-Disk Layout
//
// Inside the store root:
//
//	storage/pages.db      fixed-size checksummed pages holding document records
//	storage/current.wal   append-only write-ahead log
//	storage/catalog.snap  catalog snapshot written at each checkpoint
//	storage/LOCK          advisory lock owned by the single live instance
//
// # Durability Protocol
//
// Every mutation follows the same sequence: append a WAL record carrying the
// full redo payload, fsync, apply the change to fresh pages (shadow paging:
// prior pages are never overwritten in place), append a commit marker, fsync.
// An operation returns only after its commit marker is durable.
//
// On open, the catalog snapshot is loaded and committed WAL records are
// replayed on top of it. Records without a commit marker are discarded
// whole, so a crash mid-operation leaves either the prior state or the new
// state, never a mixture. Pages left orphaned by discarded operations are
// reclaimed because the free map is derived from the recovered catalog.
//
// # Concurrency
//
// Operations on the same document ID serialise through striped locks;
// operations on different IDs proceed independently. The WAL tail is
// appended under a single mutex so sequence numbers are strictly ordered.
package file
