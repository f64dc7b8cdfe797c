package conv

import "fmt"

// Integer is the set of integer types the snapshot format narrows between.
type Integer interface {
	~int | ~int32 | ~int64 | ~uint32 | ~uint64
}

// RangeError reports a value that does not fit the target type.
type RangeError struct {
	Value  string
	Target string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("conv: %s overflows %s", e.Value, e.Target)
}

// Narrow converts v to T. It fails if the conversion would change the value,
// either by truncation or by a sign flip.
func Narrow[T, F Integer](v F) (T, error) {
	t := T(v)
	if F(t) != v || (t < 0) != (v < 0) {
		return 0, &RangeError{Value: fmt.Sprint(v), Target: fmt.Sprintf("%T", t)}
	}
	return t, nil
}
