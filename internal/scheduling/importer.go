package scheduling

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/pdb-slot-api/internal/models"
)

// Import column order. The first row of every file is a header and is skipped.
var ImportColumns = []string{"course_name", "course_code", "credits", "section_code", "day", "start_time", "end_time", "room"}

// Defaults applied to blank optional import cells.
const (
	DefaultCourseCode = "MK"
	DefaultCredits    = 2
	DefaultDay        = models.Monday
	DefaultStartTime  = "08:00"
	DefaultEndTime    = "09:40"
	DefaultRoom       = "TBA"
)

// MaxImportRows bounds a single upload.
const MaxImportRows = 1000

var (
	ErrImportEmpty    = errors.New("import file has no data rows")
	ErrImportTooLarge = fmt.Errorf("import file exceeds %d data rows", MaxImportRows)
)

// ImportRow is one raw data row with its 1-based line number in the file.
type ImportRow struct {
	Line   int
	Fields []string
}

func (r ImportRow) field(i int) string {
	if i < len(r.Fields) {
		return strings.TrimSpace(r.Fields[i])
	}
	return ""
}

// ParseCSV reads comma separated rows. Blank lines are ignored and a leading
// UTF-8 byte order mark is removed.
func ParseCSV(r io.Reader) ([]ImportRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	var rows []ImportRow
	first := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if first {
			first = false
			continue
		}
		if len(record) > 0 {
			record[0] = strings.TrimPrefix(record[0], "\ufeff")
		}
		if blank(record) {
			continue
		}
		rows = append(rows, ImportRow{Line: line, Fields: record})
	}
	return checkRows(rows)
}

// ParseXLSX reads the first worksheet of an Excel workbook.
func ParseXLSX(r io.Reader) ([]ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	var rows []ImportRow
	for i := 1; i < len(records); i++ {
		if blank(records[i]) {
			continue
		}
		rows = append(rows, ImportRow{Line: i + 1, Fields: records[i]})
	}
	return checkRows(rows)
}

// ParseFile dispatches on the file name extension. Anything that is not an
// Excel workbook is read as CSV.
func ParseFile(name string, r io.Reader) ([]ImportRow, error) {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xlsm") {
		return ParseXLSX(r)
	}
	return ParseCSV(r)
}

func checkRows(rows []ImportRow) ([]ImportRow, error) {
	if len(rows) == 0 {
		return nil, ErrImportEmpty
	}
	if len(rows) > MaxImportRows {
		return nil, ErrImportTooLarge
	}
	return rows, nil
}

func blank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// BuildCandidate applies import defaults and normalizes one row into a slot of
// period. Rows that cannot form a valid slot become a Rejection.
func BuildCandidate(row ImportRow, period string) (Candidate, *Rejection) {
	reject := func(reason string) (Candidate, *Rejection) {
		return Candidate{}, &Rejection{Line: row.Line, Reason: reason}
	}

	name, section := row.field(0), row.field(3)
	if name == "" || section == "" {
		return reject("missing course name or section")
	}

	slot := models.ScheduleSlot{
		ID:             uuid.NewString(),
		CourseName:     name,
		CourseCode:     orDefault(row.field(1), DefaultCourseCode),
		Credits:        DefaultCredits,
		SectionCode:    section,
		Day:            DefaultDay,
		StartTime:      DefaultStartTime,
		EndTime:        DefaultEndTime,
		Room:           orDefault(row.field(7), DefaultRoom),
		AcademicPeriod: period,
		Claimants:      models.Claimants{},
	}

	if raw := row.field(2); raw != "" {
		if credits, err := strconv.Atoi(raw); err == nil && credits > 0 {
			slot.Credits = credits
		}
	}
	if raw := row.field(4); raw != "" {
		day, err := ParseWeekday(raw)
		if err != nil {
			return reject(err.Error())
		}
		slot.Day = day
	}
	if raw := row.field(5); raw != "" {
		start, err := NormalizeClock(raw)
		if err != nil {
			return reject(err.Error())
		}
		slot.StartTime = start
	}
	if raw := row.field(6); raw != "" {
		end, err := NormalizeClock(raw)
		if err != nil {
			return reject(err.Error())
		}
		slot.EndTime = end
	}
	if slot.StartTime >= slot.EndTime {
		return reject(fmt.Sprintf("start time %s must be before end time %s", slot.StartTime, slot.EndTime))
	}
	return Candidate{Line: row.Line, Slot: slot}, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// WriteTemplate writes an XLSX workbook with the import header and one example row.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Slots"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	_ = f.DeleteSheet("Sheet1")

	header := make([]interface{}, len(ImportColumns))
	for i, col := range ImportColumns {
		header[i] = col
	}
	example := []interface{}{"Pengantar Data Besar", "PDB01", 3, "A", "Senin", "08:00", "09:40", "GK-301"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A2", &example); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.ColumnNumberToName(len(ImportColumns))
		_ = f.SetCellStyle(sheet, "A1", last+"1", bold)
	}
	_ = f.SetColWidth(sheet, "A", "A", 28)

	return f.Write(w)
}
