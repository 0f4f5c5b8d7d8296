// Package store provides the durable key/value media that session state is
// persisted to: an in-process [Memory] map, a [File] document per namespace,
// and a [Redis] keyspace shared between processes.
//
// # Namespaces
//
// Every backend is scoped to a namespace. Two controllers sharing a namespace
// observe each other's writes through the optional [Watcher] interface, which
// is how several "tabs" of the same application stay consistent.
//
// # Atomicity
//
// Put replaces whole values for all given keys at once, and DeleteIf is a
// compare-and-delete on a guard key. Backends never apply partial field
// patches.
//
// # What this package must NOT do
//
//   - Interpret the bytes it stores (credentials and snapshots are opaque).
//   - Import sessionkit or any of its other packages.
package store
