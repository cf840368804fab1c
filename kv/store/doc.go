// Package store provides the storage engine behind the kvmap module: a volatile
// in-memory map with lazy per-key expiration, a persistent map that mirrors every
// mutation to a durable JSON document, and a Facade that routes requests to one
// of the two by a backend selector.
//
// The two backends never share entries. A key set in the volatile map is invisible
// to the persistent map and vice versa. Event handlers registered through the
// Facade are registered on both backends, so a handler fires once per operation
// on whichever backend performed it.
//
// All exported types are safe for concurrent use, but the persistent map gives no
// ordering guarantee between a mutation and the flush of a concurrent caller, and
// no coordination exists between processes writing the same document.
package store
