package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/pdb-slot-api/internal/dto"
	"github.com/noah-isme/pdb-slot-api/internal/models"
	"github.com/noah-isme/pdb-slot-api/internal/repository"
	appErrors "github.com/noah-isme/pdb-slot-api/pkg/errors"
	"github.com/noah-isme/pdb-slot-api/pkg/jobs"
)

type recordingEnqueuer struct {
	jobs []jobs.Job
	err  error
}

func (r *recordingEnqueuer) Enqueue(job jobs.Job) error {
	r.jobs = append(r.jobs, job)
	return r.err
}

func TestLecturerCreateDefaultsPasswordToNIP(t *testing.T) {
	store := repository.NewMemoryLecturerStore()
	svc := NewLecturerService(store, nil, nil, nil)
	ctx := context.Background()

	title := "  "
	lecturer, err := svc.Create(ctx, dto.CreateLecturerRequest{NIP: " 198001 ", Name: "Budi", Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "198001", lecturer.NIP)
	assert.Nil(t, lecturer.Title)

	stored, err := store.Get(ctx, "198001")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("198001")))

	_, err = svc.Create(ctx, dto.CreateLecturerRequest{NIP: "198001", Name: "Other"})
	assert.True(t, errors.Is(err, appErrors.ErrDuplicate))

	_, err = svc.Create(ctx, dto.CreateLecturerRequest{NIP: "198002"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestLecturerUpdateQueuesRefreshOnSnapshotChange(t *testing.T) {
	store := repository.NewMemoryLecturerStore()
	queue := &recordingEnqueuer{}
	svc := NewLecturerService(store, queue, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, dto.CreateLecturerRequest{NIP: "L1", Name: "Budi", Password: "rahasia1"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, "L1", dto.UpdateLecturerRequest{Name: "Budi", Password: "rahasia2"})
	require.NoError(t, err)
	assert.Empty(t, queue.jobs)

	title := "Dr."
	updated, err := svc.Update(ctx, "L1", dto.UpdateLecturerRequest{Name: "Budi", Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Dr.", *updated.Title)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobRefreshClaimant, queue.jobs[0].Type)
	assert.Equal(t, "lecturer:L1", queue.jobs[0].Key)
	assert.Equal(t, "L1", queue.jobs[0].Payload)

	stored, err := store.Get(ctx, "L1")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("rahasia2")))

	_, err = svc.Update(ctx, "ghost", dto.UpdateLecturerRequest{Name: "X"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestLecturerListAndDelete(t *testing.T) {
	store := repository.NewMemoryLecturerStore()
	svc := NewLecturerService(store, nil, nil, nil)
	ctx := context.Background()

	for _, req := range []dto.CreateLecturerRequest{{NIP: "L1", Name: "Budi"}, {NIP: "L2", Name: "Sari"}} {
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
	}

	list, pagination, err := svc.List(ctx, models.LecturerFilter{PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 100, TotalCount: 2}, pagination)

	require.NoError(t, svc.Delete(ctx, "L1"))
	assert.True(t, errors.Is(svc.Delete(ctx, "L1"), appErrors.ErrNotFound))
}
