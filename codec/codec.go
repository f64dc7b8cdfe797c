// Package codec encodes exported trajectories.
//
// Trajectories leave the process as JSON lines, one Record per particle. The
// codec is chosen by name so command line tools can switch between the
// standard library and go-json without code changes.
package codec

import (
	"fmt"
	"maps"
	"slices"
)

// Codec encodes and decodes records. Implementations are safe for
// concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is used when no codec is configured.
var Default Codec = GoJSON{}

var registry = map[string]Codec{
	JSON{}.Name():   JSON{},
	GoJSON{}.Name(): GoJSON{},
}

// ByName looks up a built-in codec.
func ByName(name string) (Codec, bool) {
	c, ok := registry[name]
	return c, ok
}

// Names lists the codecs ByName knows, sorted.
func Names() []string {
	return slices.Sorted(maps.Keys(registry))
}

// MustMarshal marshals v with c, or Default if c is nil, and panics on error.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec: %s: %w", c.Name(), err))
	}
	return b
}
