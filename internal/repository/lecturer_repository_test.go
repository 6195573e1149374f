package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pdb-slot-api/internal/models"
	appErrors "github.com/noah-isme/pdb-slot-api/pkg/errors"
)

func newSQLMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestLecturerRepositoryList(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewLecturerRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM lecturers WHERE LOWER(name) LIKE $1")).
		WithArgs("%ani%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY name ASC, nip ASC LIMIT 20 OFFSET 0")).
		WithArgs("%ani%").
		WillReturnRows(sqlmock.NewRows([]string{"nip", "name", "title", "password_hash", "created_at", "updated_at"}).
			AddRow("1975", "Ani", "Dr.", "hash", time.Now(), time.Now()))

	lecturers, total, err := repo.List(context.Background(), models.LecturerFilter{Search: "Ani"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, lecturers, 1)
	require.NotNil(t, lecturers[0].Title)
	assert.Equal(t, "Dr.", *lecturers[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLecturerRepositoryGetNotFound(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewLecturerRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM lecturers WHERE nip = $1")).
		WithArgs("404").
		WillReturnRows(sqlmock.NewRows([]string{"nip"}))

	_, err := repo.Get(context.Background(), "404")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLecturerRepositoryUpdateMissing(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewLecturerRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE lecturers SET name")).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Lecturer{NIP: "404", Name: "Nobody"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepositoryRoundTrip(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM settings WHERE key = $1")).
		WithArgs(models.SettingActivePeriod).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO settings")).
		WithArgs(models.SettingActivePeriod, "2025-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, ok, err := repo.GetSetting(context.Background(), models.SettingActivePeriod)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, repo.SetSetting(context.Background(), models.SettingActivePeriod, "2025-2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
