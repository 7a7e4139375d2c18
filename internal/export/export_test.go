package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecturemate/backend/internal/models"
)

func TestResolveTheme(t *testing.T) {
	assert.Equal(t, Themes["clean"], ResolveTheme("", ""))
	assert.Equal(t, Themes["clean"], ResolveTheme("neon", ""))
	assert.Equal(t, Themes["tech"], ResolveTheme(" Tech ", ""))

	custom := ResolveTheme("dark", "#8b5cf6")
	assert.Equal(t, "8B5CF6", custom.Title)
	assert.Equal(t, "6D3ED8", custom.Accent)
	assert.Equal(t, Themes["dark"].Background, custom.Background)

	assert.Equal(t, "000000", ResolveTheme("clean", "#101010").Accent)
	assert.Equal(t, Themes["clean"].Title, ResolveTheme("clean", "purple").Title)
}

func TestFontForArabic(t *testing.T) {
	assert.Equal(t, "Arial", Themes["tech"].fontFor(true))
	assert.Equal(t, "Consolas", Themes["tech"].fontFor(false))
	assert.Equal(t, "Roboto", Themes["dark"].fontFor(true))
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, `attachment; filename="Intro_to_Go_slides.pptx"`, ContentDisposition("Intro to Go!", "_slides.pptx"))
	assert.Equal(t, "lecture", ASCIIName("***", "lecture"))

	v := ContentDisposition("محاضرة", "_slides.pptx")
	assert.True(t, strings.HasPrefix(v, `attachment; filename="lecture_slides.pptx"; filename*=UTF-8''`))
	assert.Contains(t, v, "%D9%85")
	assert.True(t, strings.HasSuffix(v, "_slides.pptx"))
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	files := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		files[f.Name] = string(body)
	}
	return files
}

func assertWellFormed(t *testing.T, name, body string) {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(body))
	for {
		_, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return
		}
		require.NoError(t, err, name)
	}
}

func TestWritePPTX(t *testing.T) {
	deck := Deck{
		Title: "Go & Concurrency",
		Slides: []models.Slide{
			{ID: 1, Title: "Goroutines <intro>", Bullets: []string{"Cheap threads", "Scheduled by the runtime"}},
			{ID: 2, Title: "Channels", Bullets: []string{"Typed pipes"}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WritePPTX(&buf, deck, ResolveTheme("dark", "")))

	files := readZip(t, buf.Bytes())
	for _, name := range []string{
		"[Content_Types].xml", "_rels/.rels", "docProps/core.xml",
		"ppt/presentation.xml", "ppt/_rels/presentation.xml.rels",
		"ppt/slideMasters/slideMaster1.xml", "ppt/slideLayouts/slideLayout1.xml",
		"ppt/theme/theme1.xml", "ppt/slides/slide1.xml", "ppt/slides/slide2.xml",
		"ppt/slides/_rels/slide2.xml.rels",
	} {
		require.Contains(t, files, name)
	}
	for name, body := range files {
		assertWellFormed(t, name, body)
	}

	s1 := files["ppt/slides/slide1.xml"]
	assert.Contains(t, s1, "Goroutines &lt;intro&gt;")
	assert.Contains(t, s1, "Scheduled by the runtime")
	assert.Contains(t, s1, `val="1F2937"`)
	assert.Contains(t, s1, `typeface="Roboto"`)
	assert.NotContains(t, s1, "All rights reserved")
	assert.Contains(t, files["ppt/slides/slide2.xml"], "All rights reserved")
	assert.Contains(t, files["docProps/core.xml"], "Go &amp; Concurrency")
	assert.Contains(t, files["ppt/presentation.xml"], `r:id="rId4"`)
	assert.Contains(t, files["[Content_Types].xml"], "/ppt/slides/slide2.xml")
}

func TestWritePPTXArabic(t *testing.T) {
	deck := Deck{
		Title:  "مقدمة",
		Arabic: true,
		Slides: []models.Slide{{ID: 1, Title: "مقدمة", Bullets: []string{"نقطة"}}},
	}
	var buf bytes.Buffer
	require.NoError(t, WritePPTX(&buf, deck, Themes["tech"]))

	s1 := readZip(t, buf.Bytes())["ppt/slides/slide1.xml"]
	assert.Contains(t, s1, `algn="r" rtl="1"`)
	assert.Contains(t, s1, `typeface="Arial"`)
	assert.Contains(t, s1, "جميع الحقوق محفوظة")
}

func TestWritePPTXEmpty(t *testing.T) {
	err := WritePPTX(io.Discard, Deck{Title: "x"}, Themes["clean"])
	assert.Error(t, err)
}

func TestPDFContainsQuiz(t *testing.T) {
	long := "Because the northern trade routes crossed the river at this point, the city grew into the administrative seat for the whole region over several centuries"
	l := &models.Lecture{
		Title:   "Geography",
		Summary: "Capitals of Europe",
		Questions: []models.Question{
			{ID: 1, Text: "Capital of France", Options: []string{"Paris", "Lyon", "Nice", "Lille"}, CorrectIndex: 0, Type: models.QuestionMultipleChoice},
			{ID: 2, Text: "Rome is in Italy", Options: []string{"True", "False"}, CorrectIndex: 0, Type: models.QuestionTrueFalse},
			{ID: 3, Text: "Why Vienna?", Options: []string{long, `Its name (Wien) means "white" \ nothing else`, "None", "All"}, CorrectIndex: 0, Type: models.QuestionMultipleChoice},
		},
		Flashcards: []models.Flashcard{{ID: 1, Term: "Capital", Definition: "Seat of government"}},
	}
	var buf bytes.Buffer
	require.NoError(t, PDF(&buf, l, PDFOptions{}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	text := pdfText(t, buf.Bytes())
	for _, q := range l.Questions {
		assert.Contains(t, text, q.Text)
		for j, opt := range q.Options {
			assert.Contains(t, text, fmt.Sprintf("%c. %s", 'A'+j, opt))
		}
	}
	assert.Contains(t, text, "Capitals of Europe")
	assert.Contains(t, text, "Seat of government")

	n, err := PageCount(buf.Bytes())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
}

// pdfText returns the text shown by every page of data, one space between
// consecutive strings, so wrapped lines read back as the original sentence.
func pdfText(t *testing.T, data []byte) string {
	t.Helper()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadAndValidate(bytes.NewReader(data), conf)
	require.NoError(t, err)

	var parts []string
	for i := 1; i <= ctx.PageCount; i++ {
		r, err := pdfcpu.ExtractPageContent(ctx, i)
		require.NoError(t, err)
		content, err := io.ReadAll(r)
		require.NoError(t, err)
		parts = append(parts, showStrings(content)...)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// showStrings decodes the literal string operands of a content stream.
func showStrings(content []byte) []string {
	var out []string
	for i := 0; i < len(content); i++ {
		if content[i] != '(' {
			continue
		}
		var sb strings.Builder
		depth := 1
		for i++; i < len(content) && depth > 0; i++ {
			c := content[i]
			switch c {
			case '\\':
				i++
				if i >= len(content) {
					break
				}
				switch e := content[i]; e {
				case 'n':
					sb.WriteByte('\n')
				case 'r':
					sb.WriteByte('\r')
				case 't':
					sb.WriteByte('\t')
				default:
					sb.WriteByte(e)
				}
			case '(':
				depth++
				sb.WriteByte(c)
			case ')':
				depth--
				if depth > 0 {
					sb.WriteByte(c)
				}
			default:
				sb.WriteByte(c)
			}
		}
		i--
		out = append(out, sb.String())
	}
	return out
}

func TestPageCountRejectsGarbage(t *testing.T) {
	_, err := PageCount([]byte("not a pdf"))
	assert.Error(t, err)
}

func TestDOCX(t *testing.T) {
	l := &models.Lecture{
		Title:      "Databases",
		Summary:    "Indexes speed up reads",
		Transcript: "Today we talk about B-trees",
	}
	var buf bytes.Buffer
	require.NoError(t, DOCX(&buf, l))

	doc := readZip(t, buf.Bytes())["word/document.xml"]
	assert.Contains(t, doc, "Indexes speed up reads")
	assert.Contains(t, doc, "Today we talk about B-trees")
}
