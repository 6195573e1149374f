package repository

import (
	"context"
	"errors"
	"net"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pdb-slot-api/internal/models"
	appErrors "github.com/noah-isme/pdb-slot-api/pkg/errors"
)

func newSlotRepoMock(t *testing.T) (*SlotRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewSlotRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

var slotColumnNames = []string{"id", "course_code", "course_name", "credits", "section_code", "day", "start_time", "end_time", "room", "academic_period", "claimants", "created_at", "updated_at"}

func slotRow(rows *sqlmock.Rows, id, claimants string) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, "PDB01", "Pengantar Data Besar", 3, "A", "MONDAY", "08:00", "09:40", "GK-301", "2025-1", []byte(claimants), now, now)
}

func TestSlotRepositoryList(t *testing.T) {
	repo, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()

	rows := sqlmock.NewRows(slotColumnNames)
	slotRow(rows, "s1", `[{"lecturer_id":"L1","display_name":"Ani"}]`)
	slotRow(rows, "s2", `[]`)
	mock.ExpectQuery(regexp.QuoteMeta("FROM schedule_slots WHERE academic_period = $1")).
		WithArgs("2025-1").
		WillReturnRows(rows)

	slots, err := repo.List(context.Background(), "2025-1")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "L1", slots[0].Claimants[0].LecturerID)
	assert.Empty(t, slots[1].Claimants)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryClaimLocksRow(t *testing.T) {
	repo, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM schedule_slots WHERE id = $1 FOR UPDATE")).
		WithArgs("s1").
		WillReturnRows(slotRow(sqlmock.NewRows(slotColumnNames), "s1", `[{"lecturer_id":"L1","display_name":"Ani"}]`))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_slots SET claimants = $2")).
		WithArgs("s1", `[{"lecturer_id":"L1","display_name":"Ani"},{"lecturer_id":"L2","display_name":"Budi"}]`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	slot, err := repo.Claim(context.Background(), "s1", models.Claimant{LecturerID: "L2", DisplayName: "Budi"}, 2)
	require.NoError(t, err)
	assert.Len(t, slot.Claimants, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryClaimFullRollsBack(t *testing.T) {
	repo, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("s1").
		WillReturnRows(slotRow(sqlmock.NewRows(slotColumnNames), "s1", `[{"lecturer_id":"L1","display_name":"Ani"},{"lecturer_id":"L2","display_name":"Budi"}]`))
	mock.ExpectRollback()

	_, err := repo.Claim(context.Background(), "s1", models.Claimant{LecturerID: "L3"}, 2)
	assert.True(t, errors.Is(err, appErrors.ErrCapacityExceeded))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryClaimMissingSlot(t *testing.T) {
	repo, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs("ghost").WillReturnRows(sqlmock.NewRows(slotColumnNames))
	mock.ExpectRollback()

	_, err := repo.Claim(context.Background(), "ghost", models.Claimant{LecturerID: "L1"}, 2)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryUnclaimMissingSlotIsNoop(t *testing.T) {
	repo, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs("ghost").WillReturnRows(sqlmock.NewRows(slotColumnNames))
	mock.ExpectRollback()

	slot, err := repo.Unclaim(context.Background(), "ghost", "L1")
	require.NoError(t, err)
	assert.Nil(t, slot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryUnclaimAbsentLecturerSkipsWrite(t *testing.T) {
	repo, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("s1").
		WillReturnRows(slotRow(sqlmock.NewRows(slotColumnNames), "s1", `[{"lecturer_id":"L1","display_name":"Ani"}]`))
	mock.ExpectCommit()

	slot, err := repo.Unclaim(context.Background(), "s1", "L9")
	require.NoError(t, err)
	assert.Len(t, slot.Claimants, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryCreateBatchRollsBackOnFailure(t *testing.T) {
	repo, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_slots")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_slots")).WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.CreateBatch(context.Background(), []models.ScheduleSlot{newTestSlot("a", "2025-1"), newTestSlot("a", "2025-1")})
	assert.True(t, errors.Is(err, appErrors.ErrDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryRefreshClaimant(t *testing.T) {
	repo, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE claimants @> $1::jsonb")).
		WithArgs(`[{"lecturer_id":"L1"}]`).
		WillReturnRows(slotRow(sqlmock.NewRows(slotColumnNames), "s1", `[{"lecturer_id":"L1","display_name":"Ani"}]`))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_slots SET claimants")).
		WithArgs("s1", `[{"lecturer_id":"L1","display_name":"Ani S.","title":"Dr."}]`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := repo.RefreshClaimant(context.Background(), models.Claimant{LecturerID: "L1", DisplayName: "Ani S.", Title: "Dr."})
	require.NoError(t, err)
	assert.Len(t, updated, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryDeleteNotFound(t *testing.T) {
	repo, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM schedule_slots WHERE id = $1 RETURNING")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(slotColumnNames))

	_, err := repo.Delete(context.Background(), "ghost")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryConnectionLossIsUnavailable(t *testing.T) {
	repo, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM schedule_slots")).WillReturnError(&net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")})

	_, err := repo.List(context.Background(), "2025-1")
	assert.True(t, appErrors.Retriable(err))
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil, "x"))
	assert.True(t, appErrors.Retriable(classify(&pq.Error{Code: "08006"}, "x")))
	assert.True(t, appErrors.Retriable(classify(context.DeadlineExceeded, "x")))
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(classify(errors.New("syntax"), "x")).Code)

	domain := appErrors.Clone(appErrors.ErrAlreadyClaimed, "")
	assert.Same(t, domain, classify(domain, "x"))
}
