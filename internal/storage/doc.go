// Package storage provides the file primitives the mirror is written through.
//
// Store wraps an afero.Fs so the crawler runs against the real filesystem in
// production and an in-memory filesystem in tests. Parent directories are
// created on every write.
package storage
