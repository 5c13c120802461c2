// Package storage provides the durable key-value boundary the engine
// persists through.
//
// The engine is agnostic to the storage medium: everything above this
// package sees only Load/Save/Delete over opaque blobs. Two backends
// are provided:
//
//   - SQLite: durable production backend (WAL mode, single writer,
//     schema versioned via PRAGMA user_version)
//   - Memory: ephemeral backend for tests and throwaway runs
//
// Keys are flat strings owned by their writers (the progress store and
// the session manager); this package enforces no structure on them.
package storage
