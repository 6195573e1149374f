package service

import (
	"context"
	"io"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/pdb-slot-api/internal/dto"
	"github.com/noah-isme/pdb-slot-api/internal/models"
	"github.com/noah-isme/pdb-slot-api/internal/scheduling"
	appErrors "github.com/noah-isme/pdb-slot-api/pkg/errors"
)

// ImportService runs the two-phase bulk import: a dry-run preview of an
// uploaded file and a commit of the confirmed candidates.
type ImportService struct {
	slots     *SlotService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewImportService constructs the import service on top of the slot registry.
func NewImportService(slots *SlotService, validate *validator.Validate, logger *zap.Logger) *ImportService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{slots: slots, validator: validate, logger: logger}
}

// Preview parses the file and reconciles it against the period. Nothing is written.
func (s *ImportService) Preview(ctx context.Context, filename string, r io.Reader, period string) (*dto.ImportPreview, error) {
	period, err := s.slots.periods.Resolve(period)
	if err != nil {
		return nil, err
	}

	rows, err := scheduling.ParseFile(filename, r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	candidates := make([]scheduling.Candidate, 0, len(rows))
	rejected := make([]scheduling.Rejection, 0)
	for _, row := range rows {
		cand, rejection := scheduling.BuildCandidate(row, period)
		if rejection != nil {
			rejected = append(rejected, *rejection)
			continue
		}
		// Same rules as commit, so a previewed candidate is never refused later.
		slot, err := s.slots.BuildSlot(candidateRequest(cand.Slot, period))
		if err != nil {
			original := cand.Slot
			rejected = append(rejected, scheduling.Rejection{Line: row.Line, Reason: appErrors.FromError(err).Message, Slot: &original})
			continue
		}
		slot.ID = cand.Slot.ID
		candidates = append(candidates, scheduling.Candidate{Line: cand.Line, Slot: slot})
	}

	existing, err := s.slots.store.List(ctx, period)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load existing slots")
	}
	result := scheduling.Reconcile(candidates, existing)
	rejected = append(rejected, result.Rejected...)
	sortRejections(rejected)

	s.slots.metrics.RecordImport(len(result.Accepted), len(rejected))
	return &dto.ImportPreview{Period: period, Rows: len(rows), Accepted: result.Accepted, Rejected: rejected}, nil
}

// Commit re-validates the confirmed candidates, reconciles them against the
// current registry and inserts the accepted ones in one batch.
func (s *ImportService) Commit(ctx context.Context, req dto.ImportCommitRequest) (*dto.ImportCommitResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import payload")
	}
	period, err := s.slots.periods.Resolve(req.Period)
	if err != nil {
		return nil, err
	}

	candidates := make([]scheduling.Candidate, 0, len(req.Candidates))
	rejected := make([]scheduling.Rejection, 0)
	for _, cand := range req.Candidates {
		slot, err := s.slots.BuildSlot(candidateRequest(cand.Slot, period))
		if err != nil {
			original := cand.Slot
			rejected = append(rejected, scheduling.Rejection{Line: cand.Line, Reason: appErrors.FromError(err).Message, Slot: &original})
			continue
		}
		candidates = append(candidates, scheduling.Candidate{Line: cand.Line, Slot: slot})
	}

	s.slots.createMu.Lock()
	defer s.slots.createMu.Unlock()

	existing, err := s.slots.store.List(ctx, period)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load existing slots")
	}
	result := scheduling.Reconcile(candidates, existing)
	rejected = append(rejected, result.Rejected...)
	sortRejections(rejected)

	created := make([]models.ScheduleSlot, len(result.Accepted))
	for i, cand := range result.Accepted {
		created[i] = cand.Slot
	}
	if len(created) > 0 {
		if err := s.slots.store.CreateBatch(ctx, created); err != nil {
			return nil, wrapStoreErr(err, "failed to store imported slots")
		}
		for i := range created {
			s.slots.afterMutation(ctx, models.EventSlotCreated, &created[i], "")
		}
	}

	s.slots.metrics.RecordImport(len(created), len(rejected))
	s.logger.Info("slot import committed", zap.String("period", period), zap.Int("created", len(created)), zap.Int("rejected", len(rejected)))
	return &dto.ImportCommitResult{Period: period, Created: created, Rejected: rejected}, nil
}

// Template writes the XLSX import template.
func (s *ImportService) Template(w io.Writer) error {
	if err := scheduling.WriteTemplate(w); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build import template")
	}
	return nil
}

// candidateRequest turns a client-echoed candidate back into a create payload
// so it passes the same validation as manual entry. Ids are reassigned.
func candidateRequest(slot models.ScheduleSlot, period string) dto.CreateSlotRequest {
	return dto.CreateSlotRequest{
		CourseCode:     slot.CourseCode,
		CourseName:     slot.CourseName,
		Credits:        slot.Credits,
		SectionCode:    slot.SectionCode,
		Day:            string(slot.Day),
		StartTime:      slot.StartTime,
		EndTime:        slot.EndTime,
		Room:           slot.Room,
		AcademicPeriod: period,
	}
}

func sortRejections(rejected []scheduling.Rejection) {
	sort.SliceStable(rejected, func(i, j int) bool { return rejected[i].Line < rejected[j].Line })
}
