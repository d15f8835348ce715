package cmp

// MapEq checks that a and b have the same key-value pairs.
func MapEq[K comparable, V comparable](a map[K]V, b map[K]V) bool {
	return MapEqWith(a, b, func(va, vb V) bool { return va == vb })
}

// MapEqWith is MapEq in some equivalency given with pred.
func MapEqWith[K comparable, V any, W any](a map[K]V, b map[K]W, pred func(a V, b W) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok {
			return false
		}
		if !pred(va, vb) {
			return false
		}
	}
	return true
}
