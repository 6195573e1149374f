package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/pdb-slot-api/internal/models"
	appErrors "github.com/noah-isme/pdb-slot-api/pkg/errors"
)

const lecturerColumns = `nip, name, title, password_hash, created_at, updated_at`

// LecturerRepository provides database access for the lecturer directory.
type LecturerRepository struct {
	db *sqlx.DB
}

// NewLecturerRepository creates a new instance of LecturerRepository.
func NewLecturerRepository(db *sqlx.DB) *LecturerRepository {
	return &LecturerRepository{db: db}
}

// List returns lecturers ordered by name together with the total match count.
func (r *LecturerRepository) List(ctx context.Context, filter models.LecturerFilter) ([]models.Lecturer, int, error) {
	base := `FROM lecturers`
	var args []interface{}
	if filter.Search != "" {
		base += ` WHERE LOWER(name) LIKE $1 OR nip LIKE $1`
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) `+base, args...); err != nil {
		return nil, 0, classify(err, "failed to count lecturers")
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT %s %s ORDER BY name ASC, nip ASC LIMIT %d OFFSET %d`, lecturerColumns, base, size, (page-1)*size)
	var lecturers []models.Lecturer
	if err := r.db.SelectContext(ctx, &lecturers, query, args...); err != nil {
		return nil, 0, classify(err, "failed to list lecturers")
	}
	if lecturers == nil {
		lecturers = []models.Lecturer{}
	}
	return lecturers, total, nil
}

// Get returns a lecturer by NIP.
func (r *LecturerRepository) Get(ctx context.Context, nip string) (*models.Lecturer, error) {
	query := `SELECT ` + lecturerColumns + ` FROM lecturers WHERE nip = $1 LIMIT 1`
	var lecturer models.Lecturer
	if err := r.db.GetContext(ctx, &lecturer, query, nip); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecturer not found")
		}
		return nil, classify(err, "failed to load lecturer")
	}
	return &lecturer, nil
}

// Create inserts a lecturer.
func (r *LecturerRepository) Create(ctx context.Context, lecturer *models.Lecturer) error {
	now := time.Now().UTC()
	lecturer.CreatedAt = now
	lecturer.UpdatedAt = now
	const query = `INSERT INTO lecturers (nip, name, title, password_hash, created_at, updated_at)
VALUES (:nip, :name, :title, :password_hash, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lecturer); err != nil {
		return classify(err, "failed to create lecturer")
	}
	return nil
}

// Update replaces the mutable fields of a lecturer.
func (r *LecturerRepository) Update(ctx context.Context, lecturer *models.Lecturer) error {
	lecturer.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lecturers SET name = :name, title = :title, password_hash = :password_hash, updated_at = :updated_at WHERE nip = :nip`
	res, err := r.db.NamedExecContext(ctx, query, lecturer)
	if err != nil {
		return classify(err, "failed to update lecturer")
	}
	return expectAffected(res, "lecturer not found")
}

// Delete removes a lecturer. Claims already held stay on their slots.
func (r *LecturerRepository) Delete(ctx context.Context, nip string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM lecturers WHERE nip = $1`, nip)
	if err != nil {
		return classify(err, "failed to delete lecturer")
	}
	return expectAffected(res, "lecturer not found")
}

func expectAffected(res sql.Result, message string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return classify(err, message)
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, message)
	}
	return nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
