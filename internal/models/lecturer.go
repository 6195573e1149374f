package models

import "time"

// Lecturer is a registered teaching-staff member keyed by NIP.
type Lecturer struct {
	NIP          string    `db:"nip" json:"nip"`
	Name         string    `db:"name" json:"name"`
	Title        *string   `db:"title" json:"title,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Snapshot copies the fields embedded into a claim.
func (l Lecturer) Snapshot() Claimant {
	c := Claimant{LecturerID: l.NIP, DisplayName: l.Name}
	if l.Title != nil {
		c.Title = *l.Title
	}
	return c
}

// LecturerFilter narrows directory listings.
type LecturerFilter struct {
	Search   string
	Page     int
	PageSize int
}
