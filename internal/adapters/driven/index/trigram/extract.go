package trigram

import (
	"strings"
	"unicode"
)

// extractTrigrams returns every overlapping 3-rune window of the
// lowercased text, keeping duplicates so callers can build frequency
// maps. Windows containing no letter or digit are skipped.
func extractTrigrams(text string) []string {
	runes := []rune(strings.ToLower(text))
	if len(runes) < 3 {
		return nil
	}

	trigrams := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		window := runes[i : i+3]
		if hasAlnum(window) {
			trigrams = append(trigrams, string(window))
		}
	}
	return trigrams
}

func hasAlnum(window []rune) bool {
	for _, r := range window {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// searchableText joins title and content into the text a document is
// indexed under.
func searchableText(title string, content []byte) string {
	return title + " " + string(content)
}
