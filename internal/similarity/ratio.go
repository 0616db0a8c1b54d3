// Package similarity scores how close two plate strings are.
package similarity

import "strings"

// Ratio returns 2*M/T in [0,1], where M is the number of characters covered
// by the matching blocks found by recursive longest-common-substring search
// and T is the combined length. Comparison is case-insensitive. The block
// search is order dependent, so both directions are scored and the larger
// value is returned.
func Ratio(a, b string) float64 {
	ra := []rune(strings.ToUpper(a))
	rb := []rune(strings.ToUpper(b))
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	m := matches(ra, rb)
	if n := matches(rb, ra); n > m {
		m = n
	}
	return 2.0 * float64(m) / float64(total)
}

func matches(a, b []rune) int {
	type span struct{ alo, ahi, blo, bhi int }

	total := 0
	queue := []span{{0, len(a), 0, len(b)}}
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		i, j, k := longestMatch(a, b, s.alo, s.ahi, s.blo, s.bhi)
		if k == 0 {
			continue
		}
		total += k
		if s.alo < i && s.blo < j {
			queue = append(queue, span{s.alo, i, s.blo, j})
		}
		if i+k < s.ahi && j+k < s.bhi {
			queue = append(queue, span{i + k, s.ahi, j + k, s.bhi})
		}
	}
	return total
}

// longestMatch finds the longest common block of a[alo:ahi] and b[blo:bhi],
// preferring the earliest start in a, then in b.
func longestMatch(a, b []rune, alo, ahi, blo, bhi int) (int, int, int) {
	besti, bestj, best := alo, blo, 0
	width := bhi - blo
	prev := make([]int, width+1)
	cur := make([]int, width+1)

	for i := alo; i < ahi; i++ {
		for j := blo; j < bhi; j++ {
			col := j - blo + 1
			if a[i] != b[j] {
				cur[col] = 0
				continue
			}
			k := prev[col-1] + 1
			cur[col] = k
			if k > best {
				besti, bestj, best = i-k+1, j-k+1, k
			}
		}
		prev, cur = cur, prev
	}
	return besti, bestj, best
}
