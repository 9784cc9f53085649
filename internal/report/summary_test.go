package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"schoolhub/attendance/internal/attendance"
	"schoolhub/attendance/internal/calendar"
)

func sampleSummary() Summary {
	return Summary{
		Title:      "P4 Blue attendance",
		From:       calendar.NewDate(2025, time.September, 1),
		To:         calendar.NewDate(2025, time.September, 5),
		SchoolDays: 4,
		Students: []attendance.StudentReport{
			{Student: attendance.Student{ID: "s-1", FullName: "Amina Nakato", AdmissionNo: "A001"}, Present: 3, Absent: 1, Rate: 0.75},
			{Student: attendance.Student{ID: "s-2", FullName: "Brian Okello", AdmissionNo: "A002"}, Unmarked: 4},
		},
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, sampleSummary()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	head, err := f.GetCellValue(sheetName, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Student", head)

	name, err := f.GetCellValue(sheetName, "A2")
	require.NoError(t, err)
	assert.Equal(t, "Amina Nakato", name)

	present, err := f.GetCellValue(sheetName, "C2")
	require.NoError(t, err)
	assert.Equal(t, "3", present)

	unmarked, err := f.GetCellValue(sheetName, "E3")
	require.NoError(t, err)
	assert.Equal(t, "4", unmarked)
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatPDF, sampleSummary()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestUnsupportedFormat(t *testing.T) {
	assert.ErrorIs(t, Write(&bytes.Buffer{}, "csv", sampleSummary()), ErrUnsupportedFormat)
	assert.Empty(t, ContentType("csv"))
	assert.Equal(t, "application/pdf", ContentType(FormatPDF))
}
