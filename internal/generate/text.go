package generate

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	arabicScript      = regexp.MustCompile(`[\x{0600}-\x{06FF}]`)
	sentenceBreaks    = regexp.MustCompile(`[.!؟\n]+`)
	slideSentenceEnds = regexp.MustCompile(`[.!؟]+`)
	paragraphBreaks   = regexp.MustCompile(`\n\s*\n`)
	bulletPrefix      = regexp.MustCompile(`^[-•▪·]\s*`)
)

// IsArabic reports whether s contains Arabic script.
func IsArabic(s string) bool {
	return arabicScript.MatchString(s)
}

// Language names the output language used in prompts.
func Language(s string) string {
	if IsArabic(s) {
		return "Arabic"
	}
	return "English"
}

// CharCount is the length of the trimmed text in characters.
func CharCount(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// sentences splits text on sentence punctuation and newlines and keeps trimmed
// sentences whose length is strictly between min and max characters. max <= 0 means no upper bound.
func sentences(text string, min, max int) []string {
	var out []string
	for _, s := range sentenceBreaks.Split(text, -1) {
		s = strings.TrimSpace(s)
		n := utf8.RuneCountInString(s)
		if n <= min || (max > 0 && n >= max) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// stripCodeFences removes markdown code fences around model JSON output.
func stripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// keyPointLines turns a bulleted block into plain lines.
func keyPointLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(bulletPrefix.ReplaceAllString(strings.TrimSpace(line), ""))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
