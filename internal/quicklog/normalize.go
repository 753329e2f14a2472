package quicklog

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/tkivisto/fieldlog/internal/errors"
)

// parenthetical matches a scientific name smuggled into the common name
// field, e.g. "Carpenter Ant (Camponotus parius)".
var parenthetical = regexp.MustCompile(`\([^)]*\)`)

// capitalizeWord upper-cases the first rune and lower-cases the rest.
// Hyphenated compounds keep a single capital ("seven-spot" stays
// "Seven-spot"), which is why this is not cases.Title.
func capitalizeWord(word string) string {
	runes := []rune(strings.ToLower(word))
	if len(runes) == 0 {
		return word
	}
	runes[0] = unicode.ToTitle(runes[0])
	return string(runes)
}

// ToTitleCase trims, collapses internal whitespace and capitalizes each
// whitespace-separated word. Idempotent: applying it twice changes nothing.
func ToTitleCase(text string) string {
	words := strings.Fields(text)
	for i, word := range words {
		words[i] = capitalizeWord(word)
	}
	return strings.Join(words, " ")
}

// NormalizeName title-cases a species name and, when a known name matches
// it case-insensitively, returns the known spelling instead so one species
// never forks into case variants.
func NormalizeName(name string, knownNames []string) string {
	titled := ToTitleCase(name)

	for _, known := range knownNames {
		if strings.EqualFold(strings.TrimSpace(known), titled) {
			return known
		}
	}

	return titled
}

// ValidateCommonName checks and normalizes a common name. The returned
// name is title-cased; spelling reuse against known names is the caller's
// step via NormalizeName.
func ValidateCommonName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", errors.Newf("common name is required").
			Component("quicklog-store").
			Category(errors.CategoryValidation).
			Build()
	}

	if found := parenthetical.FindString(trimmed); found != "" {
		return "", errors.Newf("common name %q contains a scientific name in parentheses: %q belongs in the scientific name field", trimmed, found).
			Component("quicklog-store").
			Category(errors.CategoryValidation).
			Context("offending", found).
			Build()
	}

	if len([]rune(trimmed)) < 2 {
		return "", errors.Newf("common name %q is too short", trimmed).
			Component("quicklog-store").
			Category(errors.CategoryValidation).
			Build()
	}

	return ToTitleCase(trimmed), nil
}

// ValidateScientificName checks a scientific name against binomial form:
// "Genus species" with the genus capitalized and the epithet lowercase, or
// "Genus sp." for an undetermined species. Empty input is allowed and
// returns empty. Trinomials pass as long as every word after the genus is
// lowercase.
func ValidateScientificName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", nil
	}

	words := strings.Fields(trimmed)
	normalized := strings.Join(words, " ")

	if len(words) < 2 {
		return "", errors.Newf("scientific name %q needs at least two parts, e.g. \"Genus species\" or \"Genus sp.\"", normalized).
			Component("quicklog-store").
			Category(errors.CategoryValidation).
			Build()
	}

	if words[len(words)-1] == "sp" {
		suggestion := capitalizeWord(words[0])
		for _, word := range words[1:] {
			suggestion += " " + strings.ToLower(word)
		}
		suggestion += "."
		return "", errors.Newf("scientific name %q: did you mean %q? (\"sp.\" takes a period)", normalized, suggestion).
			Component("quicklog-store").
			Category(errors.CategoryValidation).
			Context("suggestion", suggestion).
			Build()
	}

	genus := words[0]
	if genus != capitalizeWord(genus) {
		return "", errors.Newf("scientific name %q: genus must be capitalized, e.g. %q", normalized, capitalizeWord(genus)).
			Component("quicklog-store").
			Category(errors.CategoryValidation).
			Build()
	}

	for _, word := range words[1:] {
		if word != strings.ToLower(word) {
			return "", errors.Newf("scientific name %q: everything after the genus must be lowercase", normalized).
				Component("quicklog-store").
				Category(errors.CategoryValidation).
				Build()
		}
	}

	return normalized, nil
}
