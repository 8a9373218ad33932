package enums

import (
	"fmt"
	"slices"
)

// parse returns the canonical value equal to raw. Matching is exact since
// the Postgres enums are case sensitive.
func parse[T ~string](set []T, kind, raw string) (T, error) {
	if v := T(raw); slices.Contains(set, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
