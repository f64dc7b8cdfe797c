// Package mmap maps checkpoint files read-only.
//
// Restores decode a snapshot once, front to back, so the local blob store
// maps the file and hands out slices of it instead of buffering a copy. On
// Unix this is mmap(2) plus madvise(2); other platforms read the file into
// memory and ignore hints.
package mmap
