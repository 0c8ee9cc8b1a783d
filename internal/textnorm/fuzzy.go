package textnorm

import (
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// PartialRatio scores in [0,100] how well the shorter of a and b aligns with
// some substring of the longer one. A verbatim occurrence scores 100;
// otherwise the best indel similarity against every window of the shorter
// string's length (edge windows included) is returned.
func PartialRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if strings.Contains(string(long), string(short)) {
		return 100
	}
	if len(short) == len(long) {
		return 100 * levenshtein.RatioForStrings(short, long, levenshtein.DefaultOptions)
	}

	// Indel similarity is 2*LCS/(|s|+|w|) and LCS never exceeds the shared
	// character count, so windows are ranked by that bound and scanned until
	// the bound cannot beat the best exact ratio.
	cands := windowBounds(short, long)
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].bound > cands[j].bound })

	best := 0.0
	for _, c := range cands {
		if c.bound <= best {
			break
		}
		r := levenshtein.RatioForStrings(short, long[c.lo:c.hi], levenshtein.DefaultOptions)
		if r > best {
			best = r
		}
	}
	return 100 * best
}

type window struct {
	lo, hi int
	bound  float64
}

// windowBounds lists every alignment window of short against long together
// with its shared-character upper bound on the ratio.
func windowBounds(short, long []rune) []window {
	m, n := len(short), len(long)

	alphabet := make(map[rune]int, m)
	var need []int
	for _, r := range short {
		k, ok := alphabet[r]
		if !ok {
			k = len(need)
			alphabet[r] = k
			need = append(need, 0)
		}
		need[k]++
	}

	have := make([]int, len(need))
	shared := 0
	add := func(r rune) {
		if k, ok := alphabet[r]; ok {
			if have[k] < need[k] {
				shared++
			}
			have[k]++
		}
	}
	remove := func(r rune) {
		if k, ok := alphabet[r]; ok {
			have[k]--
			if have[k] < need[k] {
				shared--
			}
		}
	}
	bound := func(width int) float64 {
		return 2 * float64(shared) / float64(m+width)
	}

	out := make([]window, 0, n+2*m)

	// leading edge windows long[0:k], k < m
	for k := 1; k < m; k++ {
		add(long[k-1])
		if shared > 0 {
			out = append(out, window{lo: 0, hi: k, bound: bound(k)})
		}
	}
	// full windows long[i:i+m]
	add(long[m-1])
	for i := 0; i+m <= n; i++ {
		if i > 0 {
			remove(long[i-1])
			add(long[i+m-1])
		}
		if shared > 0 {
			out = append(out, window{lo: i, hi: i + m, bound: bound(m)})
		}
	}
	// trailing edge windows long[n-k:n], k < m
	for k := m - 1; k >= 1; k-- {
		remove(long[n-k-1])
		if shared > 0 {
			out = append(out, window{lo: n - k, hi: n, bound: bound(k)})
		}
	}
	return out
}
