package textmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  Hello,   World! ", "hello world"},
		{"Galaxy S24+ (256GB)", "galaxy s24+ 256gb"},
		{"6.1\" display", "6.1 display"},
		{"Sony WH-1000XM5.", "sony wh-1000xm5"},
		{"pixel 8?", "pixel 8"},
		{"", ""},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, Normalize(tc.input))
		})
	}
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("Compare iPhone 15 vs Samsung S24", "iPhone 15"))
	assert.True(t, Contains("iphone", "Apple iPhone 15"))
	assert.False(t, Contains("pixel", "galaxy"))
	assert.False(t, Contains("", "galaxy"))
}

func TestWordOverlap(t *testing.T) {
	// shorter side is "dell xps laptop": dell and xps match, laptop does not
	assert.InDelta(t, 2.0/3.0, WordOverlap("dell xps laptop", "Dell XPS 13 Plus Ultrabook"), 1e-9)

	// substring in either direction
	assert.InDelta(t, 1.0, WordOverlap("galaxy watch", "samsung galaxy watch6 classic"), 1e-9)

	// short words are ignored entirely
	assert.Equal(t, 0.0, WordOverlap("an tv", "lg oled tv"))
}

func TestFuzzyMatch_Thresholds(t *testing.T) {
	tests := []struct {
		name      string
		a, b      string
		threshold float64
		expected  bool
	}{
		{"containment always matches", "macbook air", "Apple MacBook Air M3", ThresholdTitle, true},
		{"strict overlap fails", "dell xps laptop", "Dell XPS 13 Plus", ThresholdTitle, false},
		{"relaxed overlap passes", "dell xps laptop", "Dell XPS 13 Plus", ThresholdRelaxed, true},
		{"unrelated", "noise cancelling headphones", "Samsung Galaxy S24", ThresholdRelaxed, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, FuzzyMatch(tc.a, tc.b, tc.threshold))
		})
	}
}

func TestTrailingNumber(t *testing.T) {
	n, ok := TrailingNumber("Pixel 8")
	assert.True(t, ok)
	assert.Equal(t, 8, n)

	n, ok = TrailingNumber("show me option 2")
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	_, ok = TrailingNumber("galaxy s24")
	assert.False(t, ok, "number glued to letters is a model code, not a trailing number")

	_, ok = TrailingNumber("price 12345")
	assert.False(t, ok)

	assert.Equal(t, "pixel", StripTrailingNumber("Pixel 8"))
	assert.Equal(t, "galaxy s24", StripTrailingNumber("Galaxy S24"))
}

func TestSKUs(t *testing.T) {
	assert.Equal(t, []string{"s24"}, SKUs("Samsung Galaxy S24"))
	assert.Equal(t, []string{"rtx4060", "wh-1000xm5"}, SKUs("rtx4060 laptop with wh-1000xm5"))
	assert.Empty(t, SKUs("best phone"))
}

func TestContainsWord(t *testing.T) {
	assert.True(t, ContainsWord("is the tv good", "tv"))
	assert.False(t, ContainsWord("tvs and monitors", "tv"))
	assert.True(t, ContainsAny("compare these two", []string{"versus", "compare"}))
	assert.False(t, ContainsAny("hello", nil))
	assert.True(t, ContainsWord("Samsung vs. Apple", "vs"))
}
