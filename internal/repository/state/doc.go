// Package state implements the local store of persisted scalar values.
//
// Each key maps to one plain file whose whole content is the value. A missing
// file means the key is unset. FileStore writes through go-update so a value
// is replaced atomically; MemoryStore backs tests and dry runs.
package state
