package sync

import (
	"html"
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	slugRe       = regexp.MustCompile(`[^A-Z0-9]+`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
)

var diacriticFolds = strings.NewReplacer(
	"ı", "i", "İ", "i",
	"ş", "s", "Ş", "s",
	"ğ", "g", "Ğ", "g",
	"ç", "c", "Ç", "c",
	"ö", "o", "Ö", "o",
	"ü", "u", "Ü", "u",
)

// normalizeText lower-cases, trims and collapses inner whitespace. It is the
// comparison key for product names, brands and models.
func normalizeText(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	return whitespaceRe.ReplaceAllString(value, " ")
}

// foldText additionally folds Turkish diacritics for keyword matching.
func foldText(value string) string {
	return diacriticFolds.Replace(normalizeText(value))
}

// normalizeSlug turns arbitrary text into an upper-case SKU-safe slug.
func normalizeSlug(value string) string {
	value = strings.ToUpper(value)
	value = slugRe.ReplaceAllString(value, "-")
	value = strings.Trim(value, "-")
	if value == "" {
		return "X"
	}
	return value
}

// stripHTML reduces markup to plain text for length checks.
func stripHTML(value string) string {
	text := tagRe.ReplaceAllString(value, " ")
	text = html.UnescapeString(text)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// mergeNames unions two name lists, deduplicated on the folded form, first
// occurrence wins. Existing entries are never removed.
func mergeNames(existing, desired []string) []string {
	merged := make([]string, 0, len(existing)+len(desired))
	seen := make(map[string]bool)
	for _, item := range append(append([]string{}, existing...), desired...) {
		text := strings.TrimSpace(item)
		if text == "" {
			continue
		}
		key := foldText(text)
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, text)
	}
	return merged
}
