package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pdb-slot-api/internal/dto"
	"github.com/noah-isme/pdb-slot-api/internal/models"
	"github.com/noah-isme/pdb-slot-api/pkg/response"
)

type lecturerService interface {
	List(ctx context.Context, filter models.LecturerFilter) ([]models.Lecturer, *models.Pagination, error)
	Get(ctx context.Context, nip string) (*models.Lecturer, error)
	Create(ctx context.Context, req dto.CreateLecturerRequest) (*models.Lecturer, error)
	Update(ctx context.Context, nip string, req dto.UpdateLecturerRequest) (*models.Lecturer, error)
	Delete(ctx context.Context, nip string) error
}

// LecturerHandler manages the lecturer directory.
type LecturerHandler struct {
	service lecturerService
}

// NewLecturerHandler constructs handler.
func NewLecturerHandler(svc lecturerService) *LecturerHandler {
	return &LecturerHandler{service: svc}
}

// List godoc
// @Summary List lecturers
// @Tags Lecturers
// @Produce json
// @Param search query string false "Name or NIP"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /lecturers [get]
func (h *LecturerHandler) List(c *gin.Context) {
	filter := models.LecturerFilter{Search: c.Query("search")}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	lecturers, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lecturers, pagination)
}

// Get godoc
// @Summary Get lecturer
// @Tags Lecturers
// @Produce json
// @Param nip path string true "Lecturer NIP"
// @Success 200 {object} response.Envelope
// @Router /lecturers/{nip} [get]
func (h *LecturerHandler) Get(c *gin.Context) {
	lecturer, err := h.service.Get(c.Request.Context(), c.Param("nip"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lecturer, nil)
}

// Create godoc
// @Summary Register lecturer
// @Description Without a password the initial password is the NIP.
// @Tags Lecturers
// @Accept json
// @Produce json
// @Param payload body dto.CreateLecturerRequest true "Lecturer payload"
// @Success 201 {object} response.Envelope
// @Router /lecturers [post]
func (h *LecturerHandler) Create(c *gin.Context) {
	var req dto.CreateLecturerRequest
	if !bindJSON(c, &req, "invalid lecturer payload") {
		return
	}
	lecturer, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lecturer)
}

// Update godoc
// @Summary Update lecturer
// @Tags Lecturers
// @Accept json
// @Produce json
// @Param nip path string true "Lecturer NIP"
// @Param payload body dto.UpdateLecturerRequest true "Lecturer payload"
// @Success 200 {object} response.Envelope
// @Router /lecturers/{nip} [put]
func (h *LecturerHandler) Update(c *gin.Context) {
	var req dto.UpdateLecturerRequest
	if !bindJSON(c, &req, "invalid lecturer payload") {
		return
	}
	lecturer, err := h.service.Update(c.Request.Context(), c.Param("nip"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lecturer, nil)
}

// Delete godoc
// @Summary Delete lecturer
// @Tags Lecturers
// @Param nip path string true "Lecturer NIP"
// @Success 204
// @Router /lecturers/{nip} [delete]
func (h *LecturerHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("nip")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
