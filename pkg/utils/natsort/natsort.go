// Natural-order string sorting.
//
// Runs of digits compare by numeric value, everything else byte-wise,
// so "job_2" sorts before "job_10".
package natsort

import "sort"

// Less reports whether a sorts before b in natural order.
func Less(a, b string) bool {
	ia, ib := 0, 0
	for ia < len(a) && ib < len(b) {
		ca, cb := a[ia], b[ib]
		if isDigit(ca) && isDigit(cb) {
			// compare whole digit runs numerically; longer run of
			// significant digits wins, equal lengths compare byte-wise
			sa, ea := digitRun(a, ia)
			sb, eb := digitRun(b, ib)
			da := trimZeros(a[sa:ea])
			db := trimZeros(b[sb:eb])
			if len(da) != len(db) {
				return len(da) < len(db)
			}
			if da != db {
				return da < db
			}
			ia, ib = ea, eb
			continue
		}
		if ca != cb {
			return ca < cb
		}
		ia++
		ib++
	}
	return len(a)-ia < len(b)-ib
}

// Sorted sorts items in place in natural order and returns it.
func Sorted(items []string) []string {
	sort.Slice(items, func(i, j int) bool { return Less(items[i], items[j]) })
	return items
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func digitRun(s string, start int) (int, int) {
	end := start
	for end < len(s) && isDigit(s[end]) {
		end++
	}
	return start, end
}

func trimZeros(s string) string {
	for len(s) > 1 && s[0] == '0' {
		s = s[1:]
	}
	return s
}
