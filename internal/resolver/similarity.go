package resolver

// Similarity computes a Ratcliff/Obershelp ratio between two strings:
// twice the number of matching characters over the total length, where
// matching characters are found by recursively locating the longest common
// substring and matching the pieces on either side of it. Bounded [0, 1],
// 1.0 for identical strings. Company names are short, so the cubic worst
// case is irrelevant in practice.
func Similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	matches := matchingChars([]rune(a), []rune(b))
	return 2.0 * float64(matches) / float64(len([]rune(a))+len([]rune(b)))
}

// matchingChars counts characters in common per Ratcliff/Obershelp:
// the longest common substring, plus recursively the matches in the
// unmatched regions to its left and right.
func matchingChars(a, b []rune) int {
	aStart, bStart, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}

	matches := size
	matches += matchingChars(a[:aStart], b[:bStart])
	matches += matchingChars(a[aStart+size:], b[bStart+size:])
	return matches
}

// longestCommonSubstring returns the start offsets and length of the longest
// run of characters common to a and b. Standard dynamic programming over a
// single reused row.
func longestCommonSubstring(a, b []rune) (aStart, bStart, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > size {
					size = curr[j]
					aStart = i - size
					bStart = j - size
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}

	return aStart, bStart, size
}
