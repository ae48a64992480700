package verify

import (
	"math/bits"
	"strings"
)

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// tokenSetRatio compares two strings as unordered token sets:
// 2*|intersection| / (|a|+|b|). Punctuation-insensitive enough for OCR
// output of names and course titles.
func tokenSetRatio(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	common := 0
	for tok := range ta {
		if tb[tok] {
			common++
		}
	}
	return 2 * float64(common) / float64(len(ta)+len(tb))
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(normalize(s)) {
		tok = strings.Trim(tok, ".,;:()[]")
		if tok != "" {
			set[tok] = true
		}
	}
	return set
}

// fingerprintSimilarity compares two hex-encoded perceptual hashes by
// bitwise hamming distance. Unequal lengths or non-hex input read as
// fully dissimilar.
func fingerprintSimilarity(a, b string) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	total := len(a) * 4
	differ := 0
	for i := 0; i < len(a); i++ {
		na, okA := hexNibble(a[i])
		nb, okB := hexNibble(b[i])
		if !okA || !okB {
			return 0
		}
		differ += bits.OnesCount8(na ^ nb)
	}
	return 1 - float64(differ)/float64(total)
}

func hexNibble(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
