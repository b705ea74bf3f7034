// Package cache provides the canonical cache-key normalizer shared by
// the scoring and research caches.
package cache

import (
	"regexp"
	"sort"
	"strings"
)

// Variant descriptors stripped from the end of a product name. Scent
// and flavor words plus generic variant labels; matched longest-first
// so "lemon fresh" goes before "lemon" or "fresh".
var variantSuffixes = []string{
	"lemon fresh",
	"fresh scent",
	"spring meadow",
	"crisp lavender",
	"lavender scent",
	"original scent",
	"lemon",
	"lavender",
	"citrus",
	"vanilla",
	"mint",
	"original",
	"unscented",
	"scented",
	"fresh",
	"scent",
}

var (
	// Trailing free text after a spaced hyphen. The space requirement
	// keeps hyphenated words like "non-gmo" intact.
	trailingHyphenRe = regexp.MustCompile(`\s+-\s*\S.*$`)

	sizeTokenRe = regexp.MustCompile(`\b\d+(?:\.\d+)?\s*(?:fl\s*oz|oz|ml|l|ct|count|pack|pk|lb|lbs|kg|g)\b`)

	punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
)

func init() {
	sort.Slice(variantSuffixes, func(i, j int) bool {
		return len(variantSuffixes[i]) > len(variantSuffixes[j])
	})
}

// Normalize maps (brand, productName) to the canonical cache key
// "brand:name". Every scent/size variant of one base product collapses
// to the same key, and the function is idempotent. An empty brand
// yields an empty brand segment, still a stable key.
func Normalize(brand, productName string) string {
	b := strings.ToLower(strings.TrimSpace(brand))
	n := strings.ToLower(strings.TrimSpace(productName))

	n = trailingHyphenRe.ReplaceAllString(n, "")
	n = sizeTokenRe.ReplaceAllString(n, " ")
	n = stripVariantSuffixes(n)

	b = collapse(punctRe.ReplaceAllString(b, ""))
	n = collapse(punctRe.ReplaceAllString(n, ""))

	return b + ":" + n
}

func stripVariantSuffixes(name string) string {
	name = strings.TrimSpace(name)
	for {
		stripped := false
		for _, suffix := range variantSuffixes {
			if name == suffix {
				return ""
			}
			if strings.HasSuffix(name, " "+suffix) {
				name = strings.TrimSpace(strings.TrimSuffix(name, suffix))
				stripped = true
				break
			}
		}
		if !stripped {
			return name
		}
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
