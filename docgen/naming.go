package docgen

import (
	"strings"
	"unicode"
)

// OperationID derives an operationId from an operation name: whitespace is
// removed and the remaining words are joined in kebab case, so
// "Get User By Id" becomes "get-user-by-id".
func OperationID(name string) string {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name)
	return KebabCase(compact)
}

// KebabCase lower-cases the words of s and joins them with hyphens.
func KebabCase(s string) string {
	words := splitWords(s)
	for i, word := range words {
		words[i] = strings.ToLower(word)
	}
	return strings.Join(words, "-")
}

// splitWords breaks s at separators and at lower-to-upper case changes. A run
// of capitals stays one word up to the capital that starts the next one, so
// "HTTPServer" splits into "HTTP" and "Server".
func splitWords(s string) []string {
	var words []string
	var current strings.Builder
	runes := []rune(s)

	for i, r := range runes {
		if r == '_' || r == '-' || r == ' ' || r == '.' || r == '/' {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
			continue
		}

		if unicode.IsUpper(r) && i > 0 && current.Len() > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				words = append(words, current.String())
				current.Reset()
			}
		}

		current.WriteRune(r)
	}

	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}
