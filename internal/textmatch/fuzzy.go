// Package textmatch provides the string-similarity primitives shared by the
// intent detector and the router.
package textmatch

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Match thresholds, strictest first.
const (
	ThresholdTitle      = 0.85
	ThresholdBrandTitle = 0.75
	ThresholdRelaxed    = 0.52
)

// Normalize lowercases s, replaces punctuation with spaces and collapses runs
// of whitespace. Hyphens and dots inside tokens are kept, as in "6.1" or "wh-1000xm5".
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.' || r == '+':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	fields := strings.Fields(b.String())
	out := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, ".-"); f != "" {
			out = append(out, f)
		}
	}
	return strings.Join(out, " ")
}

// Words splits normalized s on whitespace.
func Words(s string) []string {
	return strings.Fields(Normalize(s))
}

// SignificantWords returns the words longer than two characters.
func SignificantWords(s string) []string {
	words := Words(s)
	out := words[:0]
	for _, w := range words {
		if len(w) > 2 {
			out = append(out, w)
		}
	}
	return out
}

// Contains reports whether either normalized string contains the other.
// Empty strings never match.
func Contains(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

// WordOverlap returns the fraction of the shorter string's significant words
// found in the other string's words, comparing by substring in either
// direction. It is 0 when the shorter string has no significant words.
func WordOverlap(a, b string) float64 {
	wa, wb := SignificantWords(a), SignificantWords(b)
	shorter, longer := wa, Words(b)
	if len(Normalize(b)) < len(Normalize(a)) {
		shorter, longer = wb, Words(a)
	}
	if len(shorter) == 0 {
		return 0
	}

	hits := 0
	for _, w := range shorter {
		for _, o := range longer {
			if strings.Contains(o, w) || (len(o) > 2 && strings.Contains(w, o)) {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(shorter))
}

// FuzzyMatch reports whether a and b match by containment or by a word
// overlap ratio of at least threshold.
func FuzzyMatch(a, b string, threshold float64) bool {
	if Contains(a, b) {
		return true
	}
	return WordOverlap(a, b) >= threshold
}

var trailingNumber = regexp.MustCompile(`(?:^|\s)(\d{1,3})$`)

// TrailingNumber extracts a small number at the end of s, as in "pixel 8" or
// "option 2". The second return is false when s does not end in one.
func TrailingNumber(s string) (int, bool) {
	m := trailingNumber.FindStringSubmatch(Normalize(s))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// StripTrailingNumber removes a trailing number token from s.
func StripTrailingNumber(s string) string {
	n := Normalize(s)
	if loc := trailingNumber.FindStringIndex(n); loc != nil {
		return strings.TrimSpace(n[:loc[0]])
	}
	return n
}

var skuPattern = regexp.MustCompile(`\b[a-z]{1,4}-?\d{2,6}[a-z0-9]{0,4}\b`)

// SKUs returns tokens that look like model codes, such as "s24", "rtx4060"
// or "wh-1000xm5".
func SKUs(s string) []string {
	return skuPattern.FindAllString(Normalize(s), -1)
}

// ContainsWord reports whether word appears in text as a whole word.
func ContainsWord(text, word string) bool {
	word = Normalize(word)
	if word == "" {
		return false
	}
	padded := " " + Normalize(text) + " "
	return strings.Contains(padded, " "+word+" ")
}

// ContainsAny reports whether text contains any of the phrases as whole words.
func ContainsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if ContainsWord(text, p) {
			return true
		}
	}
	return false
}
