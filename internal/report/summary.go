// Package report renders attendance summaries as spreadsheets and PDFs.
package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"schoolhub/attendance/internal/attendance"
	"schoolhub/attendance/internal/calendar"
)

const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"

	sheetName = "Summary"
)

// Summary is the data both renderers share.
type Summary struct {
	Title      string
	From       calendar.Date
	To         calendar.Date
	SchoolDays int
	Students   []attendance.StudentReport
}

var ErrUnsupportedFormat = errors.New("unsupported report format")

var header = []interface{}{"Student", "Admission No", "Present", "Absent", "Unmarked", "Rate"}

func ContentType(format string) string {
	switch format {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return ""
	}
}

func Write(w io.Writer, format string, s Summary) error {
	switch format {
	case FormatXLSX:
		return WriteXLSX(w, s)
	case FormatPDF:
		return WritePDF(w, s)
	default:
		return fmt.Errorf("%w %q", ErrUnsupportedFormat, format)
	}
}

func WriteXLSX(w io.Writer, s Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", "F1", bold); err != nil {
		return err
	}
	for i, r := range s.Students {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{r.Student.FullName, r.Student.AdmissionNo, r.Present, r.Absent, r.Unmarked, r.Rate}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return err
		}
	}
	percent, err := f.NewStyle(&excelize.Style{NumFmt: 10})
	if err != nil {
		return err
	}
	if len(s.Students) > 0 {
		last := fmt.Sprintf("F%d", len(s.Students)+1)
		if err := f.SetCellStyle(sheetName, "F2", last, percent); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheetName, "A", "A", 28); err != nil {
		return err
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:       s.Title,
		Description: fmt.Sprintf("%s to %s, %d school days", s.From, s.To, s.SchoolDays),
	}); err != nil {
		return err
	}
	return f.Write(w)
}

func WritePDF(w io.Writer, s Summary) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(s.Title, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, s.Title)
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("%s to %s, %d school days", s.From, s.To, s.SchoolDays))
	pdf.Ln(10)

	widths := []float64{64, 30, 22, 22, 24, 20}
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range header {
		pdf.CellFormat(widths[i], 8, h.(string), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, r := range s.Students {
		cells := []string{
			r.Student.FullName,
			r.Student.AdmissionNo,
			fmt.Sprintf("%d", r.Present),
			fmt.Sprintf("%d", r.Absent),
			fmt.Sprintf("%d", r.Unmarked),
			fmt.Sprintf("%.0f%%", r.Rate*100),
		}
		for i, c := range cells {
			align := "R"
			if i < 2 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 7, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	return pdf.Output(w)
}
