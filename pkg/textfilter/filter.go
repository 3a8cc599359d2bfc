// Package textfilter softens narrator prose for worlds rated below mature.
// Matches are replaced with tamer alternatives, preserving the case of the
// original word.
package textfilter

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// replacements maps filtered words to tamer alternatives.
var replacements = map[string]string{
	"fuck":         "fudge",
	"fucking":      "flipping",
	"motherfucker": "mother-trucker",
	"shit":         "shoot",
	"bullshit":     "baloney",
	"damn":         "dang",
	"goddamn":      "gosh-dang",
	"hell":         "heck",
	"ass":          "butt",
	"asshole":      "jerk",
	"bastard":      "scoundrel",
	"bitch":        "wretch",
	"crap":         "crud",
	"piss":         "tick",
	"prick":        "jerk",
	"whore":        "harlot",
	"slut":         "flirt",
}

var (
	regexOnce sync.Once
	regexes   map[string]*regexp.Regexp
)

func compiled() map[string]*regexp.Regexp {
	regexOnce.Do(func() {
		regexes = make(map[string]*regexp.Regexp, len(replacements))
		for word := range replacements {
			regexes[word] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
		}
	})
	return regexes
}

// Clean replaces filtered words in text with their tamer alternatives.
func Clean(text string) string {
	result := text
	for word, re := range compiled() {
		replacement := replacements[word]
		result = re.ReplaceAllStringFunc(result, func(match string) string {
			return preserveCase(match, replacement)
		})
	}
	return result
}

// preserveCase applies the case pattern of the original word to the
// replacement.
func preserveCase(original, replacement string) string {
	if len(original) == 0 {
		return replacement
	}

	if strings.ToUpper(original) == original {
		return strings.ToUpper(replacement)
	}
	if strings.ToLower(original) == original {
		return strings.ToLower(replacement)
	}

	titleCaser := cases.Title(language.English)
	if titleCaser.String(strings.ToLower(original)) == original {
		return titleCaser.String(replacement)
	}

	// Mixed case: mirror the original's pattern character by character.
	originalRunes := []rune(original)
	out := make([]rune, 0, len(replacement))
	for i, r := range replacement {
		if i < len(originalRunes) && unicode.IsUpper(originalRunes[i]) {
			out = append(out, unicode.ToUpper(r))
		} else {
			out = append(out, unicode.ToLower(r))
		}
	}
	return string(out)
}
