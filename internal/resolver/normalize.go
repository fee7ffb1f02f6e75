package resolver

import (
	"regexp"
	"strings"
)

// Corporate suffixes stripped during normalization so "Apple Inc." and
// "Apple" compare equal. Order matters: longer forms first so "incorporated"
// is not left as "orporated" by a shorter pattern.
var suffixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s+incorporated\.?$`),
	regexp.MustCompile(`(?i)\s+corporation\.?$`),
	regexp.MustCompile(`(?i)\s+partnership\.?$`),
	regexp.MustCompile(`(?i)\s+holdings\.?$`),
	regexp.MustCompile(`(?i)\s+company\.?$`),
	regexp.MustCompile(`(?i)\s+limited\.?$`),
	regexp.MustCompile(`(?i)\s+group\.?$`),
	regexp.MustCompile(`(?i)\s+inc\.?$`),
	regexp.MustCompile(`(?i)\s+corp\.?$`),
	regexp.MustCompile(`(?i)\s+llc\.?$`),
	regexp.MustCompile(`(?i)\s+llp\.?$`),
	regexp.MustCompile(`(?i)\s+ltd\.?$`),
	regexp.MustCompile(`(?i)\s+plc\.?$`),
	regexp.MustCompile(`(?i)\s+co\.?$`),
	regexp.MustCompile(`(?i)\s+lp\.?$`),
}

var nonWordChars = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
var whitespace = regexp.MustCompile(`\s+`)

// NormalizeName lowercases a company name, strips common corporate suffixes
// and punctuation, and collapses whitespace. Used both when indexing and
// when searching so the two sides compare like-for-like.
func NormalizeName(name string) string {
	if name == "" {
		return ""
	}

	normalized := strings.ToLower(strings.TrimSpace(name))

	for _, pattern := range suffixPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = nonWordChars.ReplaceAllString(normalized, " ")
	normalized = whitespace.ReplaceAllString(normalized, " ")

	return strings.TrimSpace(normalized)
}
