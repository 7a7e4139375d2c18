// Package export renders lectures as PDF, PPTX and DOCX documents.
package export

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lecturemate/backend/internal/models"
)

// MIME types of the exported documents.
const (
	MIMEPDF  = "application/pdf"
	MIMEPPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Deck is the input of a slide export.
type Deck struct {
	Title  string
	Arabic bool
	Slides []models.Slide
}

// Theme holds the colors (RRGGBB, no #) and font of a slide theme.
type Theme struct {
	Name       string
	Background string
	Title      string
	Text       string
	Accent     string
	Border     string
	Font       string
}

// Themes are the built-in slide themes.
var Themes = map[string]Theme{
	"clean":    {Name: "clean", Background: "FFFFFF", Title: "8B5CF6", Text: "0A0A0B", Accent: "7C3AED", Border: "E4E4E7", Font: "Arial"},
	"dark":     {Name: "dark", Background: "1F2937", Title: "10B981", Text: "F9FAFB", Accent: "059669", Border: "374151", Font: "Roboto"},
	"academic": {Name: "academic", Background: "F5F5F7", Title: "2563EB", Text: "0A0A0B", Accent: "1D4ED8", Border: "E4E4E7", Font: "Times New Roman"},
	"modern":   {Name: "modern", Background: "8B5CF6", Title: "FFFFFF", Text: "FFFFFF", Accent: "EC4899", Border: "7C3AED", Font: "Montserrat"},
	"tech":     {Name: "tech", Background: "1E1B4B", Title: "06B6D4", Text: "E2E8F0", Accent: "0891B2", Border: "4C1D95", Font: "Consolas"},
}

var hexColor = regexp.MustCompile(`^#?([0-9A-Fa-f]{6})$`)

// ResolveTheme returns the named theme (unknown names fall back to clean). A valid
// #RRGGBB customColor replaces the title color, and the accent becomes the same color
// with 30 subtracted from each channel.
func ResolveTheme(name, customColor string) Theme {
	t, ok := Themes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		t = Themes["clean"]
	}
	m := hexColor.FindStringSubmatch(strings.TrimSpace(customColor))
	if m == nil {
		return t
	}
	hex := strings.ToUpper(m[1])
	t.Title = hex
	t.Accent = darken(hex, 30)
	return t
}

func darken(hex string, by int64) string {
	var out strings.Builder
	for i := 0; i < 6; i += 2 {
		v, _ := strconv.ParseInt(hex[i:i+2], 16, 64)
		v -= by
		if v < 0 {
			v = 0
		}
		fmt.Fprintf(&out, "%02X", v)
	}
	return out.String()
}

// fontFor swaps fonts without Arabic glyphs for Arial.
func (t Theme) fontFor(arabic bool) string {
	if arabic && (t.Font == "Consolas" || t.Font == "Montserrat") {
		return "Arial"
	}
	return t.Font
}

var (
	nonPrintable = regexp.MustCompile(`[^\x20-\x7E]`)
	unsafeChars  = regexp.MustCompile(`[^A-Za-z0-9\s-]`)
	whitespace   = regexp.MustCompile(`\s+`)
	underscores  = regexp.MustCompile(`_+`)
)

// ASCIIName reduces title to a safe ASCII file name stem of at most 100 characters.
func ASCIIName(title, fallback string) string {
	s := nonPrintable.ReplaceAllString(title, "")
	s = unsafeChars.ReplaceAllString(s, "_")
	s = whitespace.ReplaceAllString(s, "_")
	s = underscores.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		return fallback
	}
	return s
}

// ContentDisposition builds an attachment header for title+suffix. Non-ASCII titles get
// an RFC 5987 filename* parameter next to the ASCII fallback.
func ContentDisposition(title, suffix string) string {
	name := ASCIIName(title, "lecture") + suffix
	v := fmt.Sprintf(`attachment; filename="%s"`, name)
	if nonPrintable.MatchString(title) {
		v += "; filename*=UTF-8''" + encodeExtValue(strings.TrimSpace(title)+suffix)
	}
	return v
}

// encodeExtValue percent-encodes everything outside the RFC 5987 attr-char set.
func encodeExtValue(s string) string {
	const attrChars = "!#$&+-.^_`|~"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x80 && (c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || strings.IndexByte(attrChars, c) >= 0) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}
