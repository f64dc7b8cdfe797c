// Package conv narrows integers read from or written to snapshot headers.
//
// Header fields are fixed-width while the cache works in int; Narrow rejects
// values that would not survive the conversion.
package conv
