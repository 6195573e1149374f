package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Weekday is the canonical upper-case English day name.
type Weekday string

const (
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
	Sunday    Weekday = "SUNDAY"
)

// Weekdays lists days in calendar order.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Claimant is a lecturer's claim embedded in a slot. Name and title are
// snapshots taken at claim time and are not kept in sync with the directory.
type Claimant struct {
	LecturerID  string `json:"lecturer_id"`
	DisplayName string `json:"display_name"`
	Title       string `json:"title,omitempty"`
}

// Claimants is the ordered claimant list, persisted as a JSON array.
type Claimants []Claimant

// Value implements driver.Valuer.
func (c Claimants) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]Claimant(c))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (c *Claimants) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*c = Claimants{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Claimants", src)
	}
	var out []Claimant
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode claimants: %w", err)
	}
	if out == nil {
		out = []Claimant{}
	}
	*c = out
	return nil
}

// Has reports whether the lecturer already holds a seat.
func (c Claimants) Has(lecturerID string) bool {
	for _, claimant := range c {
		if claimant.LecturerID == lecturerID {
			return true
		}
	}
	return false
}

// ScheduleSlot is a single offerable teaching slot within an academic period.
type ScheduleSlot struct {
	ID             string    `db:"id" json:"id"`
	CourseCode     string    `db:"course_code" json:"course_code"`
	CourseName     string    `db:"course_name" json:"course_name"`
	Credits        int       `db:"credits" json:"credits"`
	SectionCode    string    `db:"section_code" json:"section_code"`
	Day            Weekday   `db:"day" json:"day"`
	StartTime      string    `db:"start_time" json:"start_time"`
	EndTime        string    `db:"end_time" json:"end_time"`
	Room           string    `db:"room" json:"room"`
	AcademicPeriod string    `db:"academic_period" json:"academic_period"`
	Claimants      Claimants `db:"claimants" json:"claimants"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Clone returns a deep copy so callers never share the claimant backing array.
func (s ScheduleSlot) Clone() ScheduleSlot {
	out := s
	out.Claimants = make(Claimants, len(s.Claimants))
	copy(out.Claimants, s.Claimants)
	return out
}

// IsFull reports whether every seat is taken.
func (s ScheduleSlot) IsFull(maxClaimants int) bool {
	return len(s.Claimants) >= maxClaimants
}
