// Package normalizer validates and normalizes raw transaction rows before
// they enter the import pipeline.
package normalizer

import (
	"github.com/cloudflare/ahocorasick"
)

// forbiddenRanges enumerates invisible, zero-width and direction-control
// code points that must never appear in a description. They can hide text,
// fake duplicate-looking descriptions or corrupt downstream display.
// Reference: https://stackoverflow.com/questions/17978720/invisible-characters-ascii
var forbiddenRanges = []struct{ lo, hi rune }{
	{0x00AD, 0x00AD}, // soft hyphen
	{0x061C, 0x061C}, // Arabic letter mark
	{0x180E, 0x180E}, // Mongolian vowel separator
	{0x200B, 0x200F}, // zero-width space/joiners, LRM, RLM
	{0x202A, 0x202E}, // bidi embeddings, pop, overrides
	{0x2060, 0x2064}, // word joiner, invisible math operators
	{0x2066, 0x2069}, // bidi isolates
	{0x206A, 0x206F}, // deprecated format controls
	{0xFEFF, 0xFEFF}, // zero-width no-break space (BOM)

	{0x1D173, 0x1D17A}, // invisible musical notation controls
	{0xE0001, 0xE0001}, // language tag
	{0xE0020, 0xE007F}, // tag block (tag space through cancel tag)
}

// forbiddenRunes is the flattened set, in table order.
var forbiddenRunes = buildForbiddenRunes()

// forbiddenMatcher scans UTF-8 bytes for any forbidden sequence in one pass.
// UTF-8 is self-synchronizing, so a byte-level match always corresponds to a
// real occurrence of the code point.
var forbiddenMatcher = buildForbiddenMatcher()

func buildForbiddenRunes() []rune {
	var runes []rune
	for _, r := range forbiddenRanges {
		for c := r.lo; c <= r.hi; c++ {
			runes = append(runes, c)
		}
	}
	return runes
}

func buildForbiddenMatcher() *ahocorasick.Matcher {
	patterns := make([]string, len(forbiddenRunes))
	for i, c := range forbiddenRunes {
		patterns[i] = string(c)
	}
	return ahocorasick.NewStringMatcher(patterns)
}

// FindForbidden returns the first forbidden code point occurring in s.
func FindForbidden(s string) (rune, bool) {
	hits := forbiddenMatcher.Match([]byte(s))
	if len(hits) == 0 {
		return 0, false
	}
	return forbiddenRunes[hits[0]], true
}
