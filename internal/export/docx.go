package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"

	"github.com/lecturemate/backend/internal/models"
)

const (
	docxFont     = "Times New Roman"
	docxFontSize = 12
)

// DOCX writes the lecture's summary and transcript as a Word document.
func DOCX(w io.Writer, l *models.Lecture) error {
	if l == nil {
		return fmt.Errorf("nil lecture")
	}
	doc, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("new document: %w", err)
	}

	docxRun(doc.AddParagraph(""), l.Title, true, 18)
	if l.Duration != "" {
		docxRun(doc.AddParagraph(""), "Duration: "+l.Duration, false, 10)
	}

	if l.Summary != "" {
		doc.AddParagraph("")
		docxRun(doc.AddParagraph(""), "Summary", true, 15)
		for _, para := range strings.Split(l.Summary, "\n") {
			if para = strings.TrimSpace(para); para != "" {
				docxRun(doc.AddParagraph(""), para, false, docxFontSize)
			}
		}
	}

	if l.Transcript != "" {
		doc.AddParagraph("")
		docxRun(doc.AddParagraph(""), "Transcript", true, 15)
		for _, para := range strings.Split(l.Transcript, "\n") {
			if para = strings.TrimSpace(para); para != "" {
				docxRun(doc.AddParagraph(""), para, false, docxFontSize)
			}
		}
	}

	dir, err := os.MkdirTemp("", "lecture-docx-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "lecture.docx")
	if err := doc.SaveTo(path); err != nil {
		return fmt.Errorf("save docx: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func docxRun(p *docx.Paragraph, text string, bold bool, size uint64) {
	run := p.AddText(text).Font(docxFont).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}
