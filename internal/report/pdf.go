package report

import (
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"ayurgenix/pkg"
)

// RenderPDF writes the consultation as an A4 PDF to w.  The core PDF fonts
// only cover Windows-1252, so anything outside it (emoji included) is
// dropped.
func RenderPDF(w io.Writer, p pkg.Profile, conversation []pkg.Message, now time.Time) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("AyurGenix AI", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "I", 9)
	pdf.CellFormat(0, 6, "Generated: "+now.Format("2006-01-02 15:04"), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Helvetica", "", 11)
	for _, l := range profileLines(p) {
		pdf.CellFormat(0, 7, sanitize(l.label+": "+l.value), "", 1, "L", false, 0, "")
	}
	pdf.Ln(5)

	for _, m := range conversation {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 7, strings.ToUpper(speaker(m.Role))+":", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, sanitize(m.Content), "", "L", false)
		pdf.Ln(2)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, strings.Trim(disclaimer, "*"), "", "L", false)

	return pdf.Output(w)
}

// sanitize re-encodes s as Windows-1252, dropping runes it cannot hold.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if c, ok := charmap.Windows1252.EncodeRune(r); ok {
			b.WriteByte(c)
		}
	}
	return b.String()
}
