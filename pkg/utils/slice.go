package utils

import "sort"

// map each element in sli.
//
// args:
//   - sli : slice of `T`s
//   - mapper : mapping function from T to R
//
// return:
//
//	slice of `R`s.
//	each element indexed `N` is given with `mapper(sli[N])` .
func Map[T any, R any](sli []T, mapper func(v T) R) []R {
	ret := make([]R, len(sli))
	for nth, v := range sli {
		ret[nth] = mapper(v)
	}
	return ret
}

// Concat slices into one.
//
// Elements keep the order of the arguments.
func Concat[T any](slis ...[]T) []T {
	total := 0
	for _, s := range slis {
		total += len(s)
	}
	ret := make([]T, 0, total)
	for _, s := range slis {
		ret = append(ret, s...)
	}
	return ret
}

// get keys of a map.
//
// ordering of keys is not stable.
func KeysOf[T any, K comparable](m map[K]T) []K {
	ret := make([]K, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	return ret
}

// get keys of a map, sorted ascending.
func SortedKeysOf[T any](m map[string]T) []string {
	keys := KeysOf(m)
	sort.Strings(keys)
	return keys
}

// Chunks splits sli into consecutive pieces of at most size elements.
//
// The last chunk may be shorter. size must be positive; Chunks of an
// empty slice is empty.
func Chunks[T any](sli []T, size int) [][]T {
	if size <= 0 || len(sli) == 0 {
		return [][]T{}
	}
	ret := make([][]T, 0, (len(sli)+size-1)/size)
	for start := 0; start < len(sli); start += size {
		end := start + size
		if len(sli) < end {
			end = len(sli)
		}
		ret = append(ret, sli[start:end])
	}
	return ret
}

// Filter elements accepted by pred, keeping their order.
func Filter[T any](sli []T, pred func(v T) bool) []T {
	ret := []T{}
	for _, v := range sli {
		if pred(v) {
			ret = append(ret, v)
		}
	}
	return ret
}
