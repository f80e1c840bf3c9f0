package content

import (
	"regexp"
	"strings"
)

// DefaultExcerptLength — максимальная длина excerpt в символах.
const DefaultExcerptLength = 160

const ellipsis = "..."

var (
	markupRe     = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// StripMarkup удаляет HTML-теги и схлопывает пробелы.
func StripMarkup(s string) string {
	s = markupRe.ReplaceAllString(s, "")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// GenerateExcerpt строит excerpt длиной не более maxLength символов.
//
// Если очищенный текст короче лимита — возвращается как есть.
// Иначе режем по последнему концу предложения, если он в последних 30% окна,
// либо по последнему пробелу с "..." (место под "..." входит в лимит).
func GenerateExcerpt(body string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultExcerptLength
	}

	clean := StripMarkup(body)
	runes := []rune(clean)
	if len(runes) <= maxLength {
		return clean
	}

	window := runes[:maxLength]

	if i := lastIndexOf(window, isSentenceEnd); i >= 0 && float64(i) > float64(maxLength)*0.7 {
		return string(window[:i+1])
	}

	if limit := maxLength - len(ellipsis); limit > 0 {
		if j := lastIndexOf(runes[:limit+1], isSpace); j > 0 {
			return string(runes[:j]) + ellipsis
		}
	}

	return string(window)
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	return r == ' '
}

func lastIndexOf(runes []rune, match func(rune) bool) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if match(runes[i]) {
			return i
		}
	}
	return -1
}
