package scheduling

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/pdb-slot-api/internal/models"
)

func TestParseCSVSkipsHeaderAndBlankLines(t *testing.T) {
	input := "\ufeffcourse_name,course_code,credits,section_code,day,start_time,end_time,room\n" +
		"Pengantar Data Besar,PDB01,3,A,Senin,08:00,09:40,GK-301\n" +
		"\n" +
		"Basis Data,,,B,,,,\n"

	rows, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, 4, rows[1].Line)
	assert.Equal(t, "Pengantar Data Besar", rows[0].Fields[0])
}

func TestParseCSVEmpty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("course_name,course_code\n"))
	assert.ErrorIs(t, err, ErrImportEmpty)
}

func TestBuildCandidateDefaults(t *testing.T) {
	cand, rej := BuildCandidate(ImportRow{Line: 5, Fields: []string{"Basis Data", "", "", "B"}}, "2025-1")
	require.Nil(t, rej)
	assert.NotEmpty(t, cand.Slot.ID)
	assert.Equal(t, 5, cand.Line)
	assert.Equal(t, DefaultCourseCode, cand.Slot.CourseCode)
	assert.Equal(t, DefaultCredits, cand.Slot.Credits)
	assert.Equal(t, models.Monday, cand.Slot.Day)
	assert.Equal(t, "08:00", cand.Slot.StartTime)
	assert.Equal(t, "09:40", cand.Slot.EndTime)
	assert.Equal(t, DefaultRoom, cand.Slot.Room)
	assert.Equal(t, "2025-1", cand.Slot.AcademicPeriod)
}

func TestBuildCandidateRejections(t *testing.T) {
	_, rej := BuildCandidate(ImportRow{Line: 2, Fields: []string{"Basis Data"}}, "p")
	require.NotNil(t, rej)
	assert.Equal(t, "missing course name or section", rej.Reason)

	_, rej = BuildCandidate(ImportRow{Line: 3, Fields: []string{"X", "", "", "A", "Senin", "10:00", "09:00"}}, "p")
	require.NotNil(t, rej)
	assert.Equal(t, 3, rej.Line)

	_, rej = BuildCandidate(ImportRow{Line: 4, Fields: []string{"X", "", "", "A", "Caturday"}}, "p")
	require.NotNil(t, rej)
}

func TestTemplateRoundTripsThroughXLSXParser(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTemplate(&buf))

	rows, err := ParseXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Line)

	cand, rej := BuildCandidate(rows[0], "2025-1")
	require.Nil(t, rej)
	assert.Equal(t, "PDB01", cand.Slot.CourseCode)
	assert.Equal(t, 3, cand.Slot.Credits)
	assert.Equal(t, "GK-301", cand.Slot.Room)
}

func TestParseXLSXUsesFirstSheet(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"course_name"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"Statistika", "ST01", 2, "C", "Rabu", "13:00", "14:40", "LAB-2"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	rows, err := ParseFile("jadwal.XLSX", &buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].Line)
	assert.Equal(t, "Statistika", rows[0].Fields[0])
}
