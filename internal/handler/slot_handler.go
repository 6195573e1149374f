package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pdb-slot-api/internal/dto"
	"github.com/noah-isme/pdb-slot-api/internal/models"
	appErrors "github.com/noah-isme/pdb-slot-api/pkg/errors"
	"github.com/noah-isme/pdb-slot-api/pkg/response"
)

type slotService interface {
	List(ctx context.Context, period string) ([]models.ScheduleSlot, string, error)
	Get(ctx context.Context, id string) (*models.ScheduleSlot, error)
	Create(ctx context.Context, req dto.CreateSlotRequest) (*models.ScheduleSlot, error)
	Delete(ctx context.Context, id string) error
	Claim(ctx context.Context, slotID, lecturerID string) (*models.ScheduleSlot, error)
	Unclaim(ctx context.Context, slotID, lecturerID string) (*models.ScheduleSlot, error)
	ClaimedBy(ctx context.Context, period, lecturerID string) ([]models.ScheduleSlot, string, error)
	AvailableFor(ctx context.Context, period, lecturerID string) ([]models.ScheduleSlot, string, error)
	Summary(ctx context.Context, period string) (*dto.SlotSummary, error)
	MaxClaimants() int
}

// SlotHandler exposes the slot registry and claim endpoints.
type SlotHandler struct {
	service slotService
}

// NewSlotHandler constructs handler.
func NewSlotHandler(svc slotService) *SlotHandler {
	return &SlotHandler{service: svc}
}

func periodMeta(period string) map[string]interface{} {
	return map[string]interface{}{"period": period}
}

// List godoc
// @Summary List slots of a period
// @Tags Slots
// @Produce json
// @Param period query string false "Academic period, defaults to the active one"
// @Success 200 {object} response.Envelope
// @Router /slots [get]
func (h *SlotHandler) List(c *gin.Context) {
	slots, period, err := h.service.List(c.Request.Context(), c.Query("period"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewSlotViews(slots, h.service.MaxClaimants()), nil, periodMeta(period))
}

// Get godoc
// @Summary Get slot
// @Tags Slots
// @Produce json
// @Param id path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /slots/{id} [get]
func (h *SlotHandler) Get(c *gin.Context) {
	slot, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewSlotView(*slot, h.service.MaxClaimants()), nil)
}

// Create godoc
// @Summary Create slot
// @Description Rejects a room already booked for an overlapping time in the same period and day.
// @Tags Slots
// @Accept json
// @Produce json
// @Param payload body dto.CreateSlotRequest true "Slot payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /slots [post]
func (h *SlotHandler) Create(c *gin.Context) {
	var req dto.CreateSlotRequest
	if !bindJSON(c, &req, "invalid slot payload") {
		return
	}
	slot, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewSlotView(*slot, h.service.MaxClaimants()))
}

// Delete godoc
// @Summary Delete slot
// @Tags Slots
// @Param id path string true "Slot ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /slots/{id} [delete]
func (h *SlotHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Claim godoc
// @Summary Claim a seat on a slot
// @Description Lecturers claim for themselves. Administrators pass lecturer_id.
// @Tags Claims
// @Accept json
// @Produce json
// @Param id path string true "Slot ID"
// @Param payload body dto.ClaimRequest false "Claim payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /slots/{id}/claims [post]
func (h *SlotHandler) Claim(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}

	lecturerID := claims.UserID
	if claims.Role == models.RoleAdmin {
		var req dto.ClaimRequest
		if !bindJSON(c, &req, "invalid claim payload") {
			return
		}
		if req.LecturerID == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "lecturer_id is required"))
			return
		}
		lecturerID = req.LecturerID
	}

	slot, err := h.service.Claim(c.Request.Context(), c.Param("id"), lecturerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewSlotView(*slot, h.service.MaxClaimants()), nil)
}

// UnclaimSelf godoc
// @Summary Release the caller's seat
// @Tags Claims
// @Produce json
// @Param id path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Success 204
// @Router /slots/{id}/claims/me [delete]
func (h *SlotHandler) UnclaimSelf(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	h.unclaim(c, claims.UserID)
}

// UnclaimFor godoc
// @Summary Release a lecturer's seat
// @Tags Claims
// @Produce json
// @Param id path string true "Slot ID"
// @Param lecturerId path string true "Lecturer NIP"
// @Success 200 {object} response.Envelope
// @Success 204
// @Router /slots/{id}/claims/{lecturerId} [delete]
func (h *SlotHandler) UnclaimFor(c *gin.Context) {
	h.unclaim(c, c.Param("lecturerId"))
}

// unclaim answers 204 when the slot is gone and the current slot otherwise.
func (h *SlotHandler) unclaim(c *gin.Context, lecturerID string) {
	slot, err := h.service.Unclaim(c.Request.Context(), c.Param("id"), lecturerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if slot == nil {
		response.NoContent(c)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewSlotView(*slot, h.service.MaxClaimants()), nil)
}

// Mine godoc
// @Summary Slots claimed by the caller
// @Tags Claims
// @Produce json
// @Param period query string false "Academic period"
// @Success 200 {object} response.Envelope
// @Router /me/slots [get]
func (h *SlotHandler) Mine(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	slots, period, err := h.service.ClaimedBy(c.Request.Context(), c.Query("period"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewSlotViews(slots, h.service.MaxClaimants()), nil, periodMeta(period))
}

// Available godoc
// @Summary Slots the caller has not claimed
// @Description Full slots are included and flagged with is_full.
// @Tags Claims
// @Produce json
// @Param period query string false "Academic period"
// @Success 200 {object} response.Envelope
// @Router /me/available [get]
func (h *SlotHandler) Available(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	slots, period, err := h.service.AvailableFor(c.Request.Context(), c.Query("period"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewSlotViews(slots, h.service.MaxClaimants()), nil, periodMeta(period))
}

// Summary godoc
// @Summary Occupancy summary of a period
// @Tags Slots
// @Produce json
// @Param period query string false "Academic period"
// @Success 200 {object} response.Envelope
// @Router /slots/summary [get]
func (h *SlotHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), c.Query("period"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
