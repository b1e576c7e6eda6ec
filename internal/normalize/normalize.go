// Package normalize provides utilities for normalizing and sanitizing text
// before it is compared or searched.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer decomposes characters and drops combining marks, so
// "Björk" and "Bjork" fold to the same string.
//
//nolint:gochecknoglobals // Static transformer chain, safe for concurrent use
var foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// discSuffixRe matches trailing disc designators like "(Disc 1)", "[CD2]",
// "- Disk 3" at the end of an album title.
//
//nolint:gochecknoglobals // Static pattern
var discSuffixRe = regexp.MustCompile(`(?i)[\s\-_]*[(\[]?\s*(?:disc|disk|cd)\s*\.?\s*\d+\s*[)\]]?\s*$`)

// editionSuffixRe matches trailing bracketed edition qualifiers like
// "(Deluxe Edition)" or "[2009 Remaster]".
//
//nolint:gochecknoglobals // Static pattern
var editionSuffixRe = regexp.MustCompile(`(?i)\s*[(\[][^)\]]*(?:deluxe|remaster|edition|anniversary|expanded|bonus|special|reissue|mono|stereo)[^)\]]*[)\]]\s*$`)

// bracketRe matches any parenthesized or bracketed segment.
//
//nolint:gochecknoglobals // Static pattern
var bracketRe = regexp.MustCompile(`\s*[(\[][^)\]]*[)\]]`)

// Fold lowercases text, strips diacritics, replaces punctuation with
// spaces, and collapses runs of whitespace. Two titles that fold to the
// same string are treated as identical by the matcher.
func Fold(raw string) string {
	folded, _, err := transform.String(foldTransformer, Sanitize(raw))
	if err != nil {
		// Fall back to the raw text; a failed fold only weakens matching.
		folded = raw
	}

	var b strings.Builder
	b.Grow(len(folded))
	lastSpace := true
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Words returns the folded text split into words.
func Words(raw string) []string {
	folded := Fold(raw)
	if folded == "" {
		return nil
	}
	return strings.Fields(folded)
}

// WordSet returns the set of folded words in the text.
func WordSet(raw string) map[string]struct{} {
	words := Words(raw)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// CleanDiscSuffix removes a trailing disc designator from an album title.
// "Hits (Disc 2)" becomes "Hits".
func CleanDiscSuffix(title string) string {
	return strings.TrimSpace(discSuffixRe.ReplaceAllString(title, ""))
}

// CleanEditionSuffix removes a trailing edition qualifier from an album title.
// "OK Computer (Deluxe Edition)" becomes "OK Computer".
func CleanEditionSuffix(title string) string {
	return strings.TrimSpace(editionSuffixRe.ReplaceAllString(title, ""))
}

// StripBrackets removes every parenthesized or bracketed segment.
// Used as the loosest search variant when cleaner forms find nothing.
func StripBrackets(title string) string {
	stripped := strings.TrimSpace(bracketRe.ReplaceAllString(title, ""))
	if stripped == "" {
		return strings.TrimSpace(title)
	}
	return stripped
}

// Sanitize removes null bytes from strings, which can cause issues in
// databases and JSON parsing. Some audio metadata parsers include null
// terminators in strings.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 { // null byte
			return -1 // drop it
		}
		return r
	}, s)
}
