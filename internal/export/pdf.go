package export

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/lecturemate/backend/internal/models"
)

// PDFOptions configures PDF rendering.
type PDFOptions struct {
	// FontPath is an optional TTF file used for all text. Without it the core
	// Helvetica font is used and characters outside cp1252 print as dots.
	FontPath string
}

const (
	pdfFamily     = "Helvetica"
	pdfUTF8Family = "LectureFont"
	lineHeight    = 6.0
)

type pdfWriter struct {
	pdf    *fpdf.Fpdf
	family string
	tr     func(string) string
	width  float64
}

// PDF renders the lecture's summary, quiz and flashcards.
func PDF(w io.Writer, l *models.Lecture, opts PDFOptions) error {
	if l == nil {
		return fmt.Errorf("nil lecture")
	}
	fontDir := ""
	if opts.FontPath != "" {
		fontDir = filepath.Dir(opts.FontPath)
	}
	pdf := fpdf.New("P", "mm", "A4", fontDir)
	pdf.SetCompression(false)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle(l.Title, true)
	pdf.SetAuthor("LectureMate", true)

	pw := &pdfWriter{pdf: pdf, family: pdfFamily}
	if opts.FontPath != "" {
		file := filepath.Base(opts.FontPath)
		pdf.AddUTF8Font(pdfUTF8Family, "", file)
		pdf.AddUTF8Font(pdfUTF8Family, "B", file)
		pw.family = pdfUTF8Family
		pw.tr = func(s string) string { return s }
	} else {
		pw.tr = pdf.UnicodeTranslatorFromDescriptor("")
	}
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	pw.width = pageW - left - right

	pdf.AddPage()
	pw.heading(l.Title, 18)
	if l.Duration != "" || l.Language != "" {
		var meta []string
		if l.Duration != "" {
			meta = append(meta, "Duration: "+l.Duration)
		}
		if l.Language != "" {
			meta = append(meta, "Language: "+l.Language)
		}
		pw.text(strings.Join(meta, "   "), 10)
	}
	pdf.Ln(4)

	if l.Summary != "" {
		pw.heading("Summary", 14)
		for _, para := range strings.Split(l.Summary, "\n") {
			if strings.TrimSpace(para) == "" {
				continue
			}
			pw.text(para, 11)
		}
		pdf.Ln(4)
	}

	if len(l.Questions) > 0 {
		pw.heading("Quiz", 14)
		for i, q := range l.Questions {
			pw.bold(fmt.Sprintf("%d. %s", i+1, q.Text), 11)
			for j, opt := range q.Options {
				pw.text(fmt.Sprintf("   %c. %s", 'A'+j, opt), 11)
			}
			pdf.Ln(2)
		}
		pw.heading("Answer key", 12)
		for i, q := range l.Questions {
			if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
				continue
			}
			pw.text(fmt.Sprintf("%d. %c", i+1, 'A'+q.CorrectIndex), 11)
		}
		pdf.Ln(4)
	}

	if len(l.Flashcards) > 0 {
		pw.heading("Flashcards", 14)
		for _, c := range l.Flashcards {
			pw.bold(c.Term, 11)
			pw.text(c.Definition, 11)
			pdf.Ln(2)
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

func (p *pdfWriter) heading(s string, size float64) {
	p.pdf.SetFont(p.family, "B", size)
	p.pdf.MultiCell(p.width, size*0.5, p.tr(s), "", "L", false)
	p.pdf.Ln(1)
}

func (p *pdfWriter) bold(s string, size float64) {
	p.pdf.SetFont(p.family, "B", size)
	p.pdf.MultiCell(p.width, lineHeight, p.tr(s), "", "L", false)
}

func (p *pdfWriter) text(s string, size float64) {
	p.pdf.SetFont(p.family, "", size)
	p.pdf.MultiCell(p.width, lineHeight, p.tr(s), "", "L", false)
}

// PageCount validates a rendered PDF and returns its number of pages.
func PageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	return n, nil
}
