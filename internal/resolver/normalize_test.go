package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Apple Inc.", "apple"},
		{"Microsoft Corporation", "microsoft"},
		{"Alphabet Inc", "alphabet"},
		{"Exxon Mobil Corporation", "exxon mobil"},
		{"Costco Wholesale Corp", "costco wholesale"},
		{"Johnson & Johnson", "johnson johnson"},
		{"AT&T Inc.", "at t"},
		{"ABC Holdings Inc", "abc holdings"},
		{"  Tesla,   Inc.  ", "tesla"},
		{"Vornado Realty LP", "vornado realty"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), "input %q", tt.in)
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("apple", "apple"))
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 0.0, Similarity("apple", ""))
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))

	// "micros" + "ft" match out of 8+9 characters
	assert.InDelta(t, 16.0/17.0, Similarity("microsft", "microsoft"), 0.0001)

	// Symmetric
	assert.Equal(t, Similarity("general motors", "general dynamics"),
		Similarity("general dynamics", "general motors"))
}

func TestSimilarityBounds(t *testing.T) {
	pairs := [][2]string{
		{"apple", "applied materials"},
		{"alpha", "omega"},
		{"international business machines", "ibm"},
	}
	for _, p := range pairs {
		s := Similarity(p[0], p[1])
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}
