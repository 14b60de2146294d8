package export

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

var (
	headerFill = [3]int{41, 65, 122}
	headerText = [3]int{255, 255, 255}
	rollupFill = [3]int{232, 236, 244}
	bodyText   = [3]int{40, 40, 40}
)

const pageWidth = 277.0 // A4 landscape minus margins, in mm

// WritePDF renders every table on landscape A4 pages with repeated headers
func WritePDF(w io.Writer, tables []Table, opts Options) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 8, tr("Generated "+time.Now().Format("2006-01-02 15:04")), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()
	if opts.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.SetTextColor(bodyText[0], bodyText[1], bodyText[2])
		pdf.CellFormat(0, 10, tr(opts.Title), "", 1, "L", false, 0, "")
		pdf.Ln(2)
	}

	for n, t := range tables {
		if n > 0 {
			pdf.Ln(6)
		}
		if t.Title != "" {
			pdf.SetFont("Arial", "B", 11)
			pdf.SetTextColor(bodyText[0], bodyText[1], bodyText[2])
			pdf.CellFormat(0, 8, tr(t.Title), "", 1, "L", false, 0, "")
		}
		if len(t.Columns) == 0 {
			continue
		}

		width := pageWidth / float64(len(t.Columns))
		header := func() {
			pdf.SetFont("Arial", "B", 7)
			pdf.SetFillColor(headerFill[0], headerFill[1], headerFill[2])
			pdf.SetTextColor(headerText[0], headerText[1], headerText[2])
			for _, c := range t.Columns {
				pdf.CellFormat(width, 7, tr(c.Name), "1", 0, "C", true, 0, "")
			}
			pdf.Ln(-1)
		}
		header()

		_, pageHeight := pdf.GetPageSize()
		_, _, _, bottom := pdf.GetMargins()
		for r, row := range t.Rows {
			if pdf.GetY()+6 > pageHeight-bottom-12 {
				pdf.AddPage()
				header()
			}
			style := ""
			if t.emphasized(r) {
				style = "B"
				pdf.SetFillColor(rollupFill[0], rollupFill[1], rollupFill[2])
			}
			pdf.SetFont("Arial", style, 7)
			pdf.SetTextColor(bodyText[0], bodyText[1], bodyText[2])
			for i, c := range t.Columns {
				var v any
				if i < len(row) {
					v = row[i]
				}
				align := "L"
				if c.Kind == KindDecimal || c.Kind == KindInteger {
					align = "R"
				}
				pdf.CellFormat(width, 6, tr(opts.FormatCell(c, v)), "1", 0, align, t.emphasized(r), 0, "")
			}
			pdf.Ln(-1)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("error writing PDF: %w", err)
	}
	return nil
}
