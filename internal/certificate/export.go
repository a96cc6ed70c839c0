package certificate

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"
)

// PDF page size in points, 4:3 like the canvas.
const (
	PageWidth  = 400.0
	PageHeight = 300.0
)

// PDFFileName is the name of the bundled download.
const PDFFileName = "certificates.pdf"

// ExportPDF writes one page per view, in order.
func ExportPDF(w io.Writer, r *Renderer, views []View) error {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: PageWidth, Ht: PageHeight},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	for _, v := range views {
		var buf bytes.Buffer
		if err := r.RenderPNG(&buf, v); err != nil {
			return fmt.Errorf("render certificate %d: %w", v.Index, err)
		}
		name := fmt.Sprintf("certificate-%d", v.Index)
		pdf.RegisterImageOptionsReader(name, opts, &buf)
		pdf.AddPage()
		pdf.ImageOptions(name, 0, 0, PageWidth, PageHeight, false, opts, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

const rosterSheet = "Certificates"

// ExportRoster writes an XLSX sheet listing every certificate.
func ExportRoster(w io.Writer, views []View) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", rosterSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := []any{"No.", "Student", "School", "Class", "Course", "Date"}
	if err := f.SetSheetRow(rosterSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, v := range views {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{v.Index + 1, v.Student, v.School, v.ClassLevel, v.Course, v.Date()}
		if err := f.SetSheetRow(rosterSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write roster: %w", err)
	}
	return nil
}
