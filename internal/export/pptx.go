package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Slide geometry in EMU on a 10 x 7.5 inch page.
const (
	emuPerInch  = 914400
	slideWidth  = 10 * emuPerInch
	slideHeight = 7.5 * emuPerInch
)

const (
	nsA = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"`
	nsR = `xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`
	nsP = `xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`

	xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"
	relsNS    = `http://schemas.openxmlformats.org/package/2006/relationships`
	relBase   = `http://schemas.openxmlformats.org/officeDocument/2006/relationships/`
	ctBase    = `application/vnd.openxmlformats-officedocument.`

	emptyTree = `<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>` +
		`<p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>`
)

// WritePPTX writes deck as a PowerPoint file styled with theme.
func WritePPTX(w io.Writer, deck Deck, theme Theme) error {
	zw := zip.NewWriter(w)
	add := func(name, body string) error {
		f, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		_, err = io.WriteString(f, xmlHeader+body)
		return err
	}

	slides := deck.Slides
	if len(slides) == 0 {
		return fmt.Errorf("deck has no slides")
	}
	parts := []struct{ name, body string }{
		{"[Content_Types].xml", contentTypes(len(slides))},
		{"_rels/.rels", rels(
			rel{"rId1", relBase + "officeDocument", "ppt/presentation.xml"},
			rel{"rId2", "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties", "docProps/core.xml"},
		)},
		{"docProps/core.xml", coreProps(deck.Title)},
		{"ppt/presentation.xml", presentation(len(slides))},
		{"ppt/_rels/presentation.xml.rels", presentationRels(len(slides))},
		{"ppt/slideMasters/slideMaster1.xml", slideMaster},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", rels(
			rel{"rId1", relBase + "slideLayout", "../slideLayouts/slideLayout1.xml"},
			rel{"rId2", relBase + "theme", "../theme/theme1.xml"},
		)},
		{"ppt/slideLayouts/slideLayout1.xml", slideLayout},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", rels(
			rel{"rId1", relBase + "slideMaster", "../slideMasters/slideMaster1.xml"},
		)},
		{"ppt/theme/theme1.xml", themeXML(theme)},
	}
	for i, s := range slides {
		parts = append(parts,
			struct{ name, body string }{fmt.Sprintf("ppt/slides/slide%d.xml", i+1), slideXML(s.Title, s.Bullets, theme, deck.Arabic, i == len(slides)-1)},
			struct{ name, body string }{fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", i+1), rels(
				rel{"rId1", relBase + "slideLayout", "../slideLayouts/slideLayout1.xml"},
			)},
		)
	}
	for _, p := range parts {
		if err := add(p.name, p.body); err != nil {
			return err
		}
	}
	return zw.Close()
}

func esc(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func inch(v float64) int { return int(v * emuPerInch) }

type rel struct{ id, typ, target string }

func rels(rs ...rel) string {
	var b strings.Builder
	b.WriteString(`<Relationships xmlns="` + relsNS + `">`)
	for _, r := range rs {
		fmt.Fprintf(&b, `<Relationship Id="%s" Type="%s" Target="%s"/>`, r.id, r.typ, r.target)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

func contentTypes(n int) string {
	var b strings.Builder
	b.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	b.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	b.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	b.WriteString(`<Override PartName="/ppt/presentation.xml" ContentType="` + ctBase + `presentationml.presentation.main+xml"/>`)
	b.WriteString(`<Override PartName="/ppt/slideMasters/slideMaster1.xml" ContentType="` + ctBase + `presentationml.slideMaster+xml"/>`)
	b.WriteString(`<Override PartName="/ppt/slideLayouts/slideLayout1.xml" ContentType="` + ctBase + `presentationml.slideLayout+xml"/>`)
	b.WriteString(`<Override PartName="/ppt/theme/theme1.xml" ContentType="` + ctBase + `theme+xml"/>`)
	b.WriteString(`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>`)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="%spresentationml.slide+xml"/>`, i, ctBase)
	}
	b.WriteString(`</Types>`)
	return b.String()
}

func coreProps(title string) string {
	return `<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" ` +
		`xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>` + esc(title) + `</dc:title><dc:creator>LectureMate</dc:creator></cp:coreProperties>`
}

func presentation(n int) string {
	var b strings.Builder
	b.WriteString(`<p:presentation ` + nsA + ` ` + nsR + ` ` + nsP + `>`)
	b.WriteString(`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst><p:sldIdLst>`)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, i+3)
	}
	fmt.Fprintf(&b, `</p:sldIdLst><p:sldSz cx="%d" cy="%d"/><p:notesSz cx="%d" cy="%d"/></p:presentation>`,
		slideWidth, int(slideHeight), int(slideHeight), slideWidth)
	return b.String()
}

func presentationRels(n int) string {
	rs := []rel{
		{"rId1", relBase + "slideMaster", "slideMasters/slideMaster1.xml"},
		{"rId2", relBase + "theme", "theme/theme1.xml"},
	}
	for i := 1; i <= n; i++ {
		rs = append(rs, rel{fmt.Sprintf("rId%d", i+2), relBase + "slide", fmt.Sprintf("slides/slide%d.xml", i)})
	}
	return rels(rs...)
}

var slideMaster = `<p:sldMaster ` + nsA + ` ` + nsR + ` ` + nsP + `><p:cSld><p:spTree>` + emptyTree + `</p:spTree></p:cSld>` +
	`<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" ` +
	`accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>` +
	`<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/></p:sldLayoutIdLst></p:sldMaster>`

var slideLayout = `<p:sldLayout ` + nsA + ` ` + nsR + ` ` + nsP + ` type="blank" preserve="1"><p:cSld name="Blank"><p:spTree>` +
	emptyTree + `</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sldLayout>`

func themeXML(t Theme) string {
	solid := func(c string) string { return `<a:solidFill><a:srgbClr val="` + c + `"/></a:solidFill>` }
	ln := `<a:ln w="9525">` + solid(t.Border) + `</a:ln>`
	return `<a:theme ` + nsA + ` name="` + esc(t.Name) + `"><a:themeElements>` +
		`<a:clrScheme name="` + esc(t.Name) + `">` +
		`<a:dk1><a:srgbClr val="` + t.Text + `"/></a:dk1><a:lt1><a:srgbClr val="` + t.Background + `"/></a:lt1>` +
		`<a:dk2><a:srgbClr val="` + t.Text + `"/></a:dk2><a:lt2><a:srgbClr val="` + t.Border + `"/></a:lt2>` +
		`<a:accent1><a:srgbClr val="` + t.Title + `"/></a:accent1><a:accent2><a:srgbClr val="` + t.Accent + `"/></a:accent2>` +
		`<a:accent3><a:srgbClr val="` + t.Border + `"/></a:accent3><a:accent4><a:srgbClr val="` + t.Title + `"/></a:accent4>` +
		`<a:accent5><a:srgbClr val="` + t.Accent + `"/></a:accent5><a:accent6><a:srgbClr val="` + t.Border + `"/></a:accent6>` +
		`<a:hlink><a:srgbClr val="` + t.Accent + `"/></a:hlink><a:folHlink><a:srgbClr val="` + t.Title + `"/></a:folHlink>` +
		`</a:clrScheme>` +
		`<a:fontScheme name="` + esc(t.Name) + `"><a:majorFont><a:latin typeface="` + esc(t.Font) + `"/><a:ea typeface=""/><a:cs typeface="Arial"/></a:majorFont>` +
		`<a:minorFont><a:latin typeface="` + esc(t.Font) + `"/><a:ea typeface=""/><a:cs typeface="Arial"/></a:minorFont></a:fontScheme>` +
		`<a:fmtScheme name="` + esc(t.Name) + `">` +
		`<a:fillStyleLst>` + solid(t.Background) + solid(t.Title) + solid(t.Accent) + `</a:fillStyleLst>` +
		`<a:lnStyleLst>` + ln + ln + ln + `</a:lnStyleLst>` +
		`<a:effectStyleLst><a:effectStyle><a:effectLst/></a:effectStyle><a:effectStyle><a:effectLst/></a:effectStyle>` +
		`<a:effectStyle><a:effectLst/></a:effectStyle></a:effectStyleLst>` +
		`<a:bgFillStyleLst>` + solid(t.Background) + solid(t.Background) + solid(t.Background) + `</a:bgFillStyleLst>` +
		`</a:fmtScheme></a:themeElements></a:theme>`
}

// spTree shape builders. Positions are in inches.
type shapes struct {
	b    strings.Builder
	next int
}

func (s *shapes) id() int {
	s.next++
	return s.next + 1
}

func (s *shapes) rect(name, prst string, x, y, w, h float64, color string) {
	fmt.Fprintf(&s.b, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="%s"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr>`+
		`<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="%s"><a:avLst/></a:prstGeom>`+
		`<a:solidFill><a:srgbClr val="%s"/></a:solidFill><a:ln><a:noFill/></a:ln></p:spPr></p:sp>`,
		s.id(), name, inch(x), inch(y), inch(w), inch(h), prst, color)
}

func (s *shapes) line(x, y, w float64, color string) {
	fmt.Fprintf(&s.b, `<p:cxnSp><p:nvCxnSpPr><p:cNvPr id="%d" name="Divider"/><p:cNvCxnSpPr/><p:nvPr/></p:nvCxnSpPr>`+
		`<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="0"/></a:xfrm><a:prstGeom prst="line"><a:avLst/></a:prstGeom>`+
		`<a:ln w="25400"><a:solidFill><a:srgbClr val="%s"/></a:solidFill></a:ln></p:spPr></p:cxnSp>`,
		s.id(), inch(x), inch(y), inch(w), color)
}

type textStyle struct {
	size   int // hundredths of a point
	bold   bool
	color  string
	font   string
	align  string
	rtl    bool
	arabic bool
}

func (s *shapes) text(name, text string, x, y, w, h float64, st textStyle) {
	rtl, lang, bold := "0", "en-US", "0"
	if st.rtl {
		rtl = "1"
	}
	if st.arabic {
		lang = "ar-SA"
	}
	if st.bold {
		bold = "1"
	}
	fmt.Fprintf(&s.b, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="%s"/><p:cNvSpPr txBox="1"/><p:nvPr/></p:nvSpPr>`+
		`<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom><a:noFill/></p:spPr>`+
		`<p:txBody><a:bodyPr wrap="square" anchor="t"><a:normAutofit/></a:bodyPr><a:lstStyle/><a:p><a:pPr algn="%s" rtl="%s"/>`+
		`<a:r><a:rPr lang="%s" sz="%d" b="%s" dirty="0"><a:solidFill><a:srgbClr val="%s"/></a:solidFill>`+
		`<a:latin typeface="%s"/><a:cs typeface="%s"/></a:rPr><a:t>%s</a:t></a:r></a:p></p:txBody></p:sp>`,
		s.id(), name, inch(x), inch(y), inch(w), inch(h), st.align, rtl,
		lang, st.size, bold, st.color, esc(st.font), esc(st.font), esc(text))
}

func slideXML(title string, bullets []string, t Theme, arabic, last bool) string {
	font := t.fontFor(arabic)
	align := "l"
	if arabic {
		align = "r"
	}
	var s shapes
	s.rect("Header", "rect", 0, 0, 10, 0.3, t.Title)
	s.text("Title", title, 0.5, 0.8, 9, 0.9, textStyle{size: 3600, bold: true, color: t.Title, font: font, align: align, rtl: arabic, arabic: arabic})
	s.line(0.5, 1.7, 9, t.Border)
	for i, bullet := range bullets {
		y := 2.0 + float64(i)*0.65
		markerX, textX, textW := 0.5, 0.8, 8.7
		if arabic {
			markerX, textX, textW = 9.2, 0.5, 8.5
		}
		s.rect(fmt.Sprintf("Marker %d", i+1), "roundRect", markerX, y+0.1, 0.2, 0.2, t.Accent)
		s.text(fmt.Sprintf("Bullet %d", i+1), bullet, textX, y, textW, 0.5,
			textStyle{size: 2000, color: t.Text, font: font, align: align, rtl: arabic, arabic: arabic})
	}
	if last {
		rights := "All rights reserved"
		if arabic {
			rights = "جميع الحقوق محفوظة"
		}
		s.text("Footer", "© LectureMate. "+rights, 0.5, 6.8, 9, 0.3,
			textStyle{size: 1000, color: t.Text, font: font, align: "ctr", arabic: arabic})
	}
	return `<p:sld ` + nsA + ` ` + nsR + ` ` + nsP + `><p:cSld><p:bg><p:bgPr><a:solidFill><a:srgbClr val="` + t.Background +
		`"/></a:solidFill><a:effectLst/></p:bgPr></p:bg><p:spTree>` + emptyTree + s.b.String() +
		`</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sld>`
}
