// Package kv provides a key-value store shared across all VUs (virtual users)
// with two independent backends selected per request.
//
// High-level behavior:
//   - The first call to openKv() lazily creates a single, shared store for all VUs.
//     The first successful initialization decides the durable document (JSON file
//     or bbolt) and its path; later calls with the same options reuse it.
//   - dispatch(key, op, value, backend, ttl?) routes "new", "set" and "get" to the
//     volatile ("ram") or persistent ("json") backend. The two never share keys.
//   - The persistent backend rewrites its document after every mutation; loadAll()
//     and saveAll() load and flush it explicitly.
//   - on("set" | "clear", handler) subscribes to both backends.
package kv
