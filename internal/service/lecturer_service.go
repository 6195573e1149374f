package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/pdb-slot-api/internal/dto"
	"github.com/noah-isme/pdb-slot-api/internal/models"
	appErrors "github.com/noah-isme/pdb-slot-api/pkg/errors"
	"github.com/noah-isme/pdb-slot-api/pkg/jobs"
)

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// LecturerService manages the lecturer directory.
type LecturerService struct {
	store     LecturerStore
	refresh   jobEnqueuer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLecturerService constructs a LecturerService. refresh may be nil, in which
// case existing claim snapshots are left as they were taken.
func NewLecturerService(store LecturerStore, refresh jobEnqueuer, validate *validator.Validate, logger *zap.Logger) *LecturerService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LecturerService{store: store, refresh: refresh, validator: validate, logger: logger}
}

// List returns lecturers plus pagination data.
func (s *LecturerService) List(ctx context.Context, filter models.LecturerFilter) ([]models.Lecturer, *models.Pagination, error) {
	lecturers, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, wrapStoreErr(err, "failed to list lecturers")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return lecturers, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a lecturer by NIP.
func (s *LecturerService) Get(ctx context.Context, nip string) (*models.Lecturer, error) {
	lecturer, err := s.store.Get(ctx, nip)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load lecturer")
	}
	return lecturer, nil
}

// Create registers a lecturer. Without a password the initial one is the NIP.
func (s *LecturerService) Create(ctx context.Context, req dto.CreateLecturerRequest) (*models.Lecturer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lecturer payload")
	}

	nip := strings.TrimSpace(req.NIP)
	password := req.Password
	if password == "" {
		password = nip
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	lecturer := &models.Lecturer{
		NIP:          nip,
		Name:         strings.TrimSpace(req.Name),
		Title:        normalizeOptional(req.Title),
		PasswordHash: string(hash),
	}
	if err := s.store.Create(ctx, lecturer); err != nil {
		if errors.Is(err, appErrors.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "lecturer with this NIP already exists")
		}
		return nil, wrapStoreErr(err, "failed to create lecturer")
	}
	s.logger.Info("lecturer created", zap.String("nip", lecturer.NIP))
	return lecturer, nil
}

// Update replaces name, title and optionally the password. When the claim
// snapshot changes a refresh job is queued for the lecturer's existing claims.
func (s *LecturerService) Update(ctx context.Context, nip string, req dto.UpdateLecturerRequest) (*models.Lecturer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lecturer payload")
	}

	lecturer, err := s.store.Get(ctx, nip)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load lecturer")
	}
	before := lecturer.Snapshot()

	lecturer.Name = strings.TrimSpace(req.Name)
	lecturer.Title = normalizeOptional(req.Title)
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		lecturer.PasswordHash = string(hash)
	}

	if err := s.store.Update(ctx, lecturer); err != nil {
		return nil, wrapStoreErr(err, "failed to update lecturer")
	}

	if lecturer.Snapshot() != before {
		s.queueRefresh(lecturer.NIP)
	}
	s.logger.Info("lecturer updated", zap.String("nip", lecturer.NIP))
	return lecturer, nil
}

// Delete removes a lecturer from the directory. Claims already held keep
// their snapshot; the lecturer can no longer log in or claim.
func (s *LecturerService) Delete(ctx context.Context, nip string) error {
	if err := s.store.Delete(ctx, nip); err != nil {
		return wrapStoreErr(err, "failed to delete lecturer")
	}
	s.logger.Info("lecturer deleted", zap.String("nip", nip))
	return nil
}

func (s *LecturerService) queueRefresh(nip string) {
	if s.refresh == nil {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: JobRefreshClaimant, Key: "lecturer:" + nip, Payload: nip}
	if err := s.refresh.Enqueue(job); err != nil {
		s.logger.Warn("failed to queue claimant refresh", zap.String("nip", nip), zap.Error(err))
	}
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
