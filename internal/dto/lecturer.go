package dto

// CreateLecturerRequest registers a lecturer. An empty password defaults to the NIP.
type CreateLecturerRequest struct {
	NIP      string  `json:"nip" validate:"required,max=32"`
	Name     string  `json:"name" validate:"required,max=200"`
	Title    *string `json:"title" validate:"omitempty,max=64"`
	Password string  `json:"password" validate:"omitempty,min=6,max=72"`
}

// UpdateLecturerRequest replaces the mutable lecturer fields.
type UpdateLecturerRequest struct {
	Name     string  `json:"name" validate:"required,max=200"`
	Title    *string `json:"title" validate:"omitempty,max=64"`
	Password string  `json:"password" validate:"omitempty,min=6,max=72"`
}
