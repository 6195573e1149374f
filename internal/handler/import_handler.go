package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pdb-slot-api/internal/dto"
	appErrors "github.com/noah-isme/pdb-slot-api/pkg/errors"
	"github.com/noah-isme/pdb-slot-api/pkg/response"
)

const (
	maxUploadBytes = 5 << 20
	xlsxMIME       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type importService interface {
	Preview(ctx context.Context, filename string, r io.Reader, period string) (*dto.ImportPreview, error)
	Commit(ctx context.Context, req dto.ImportCommitRequest) (*dto.ImportCommitResult, error)
	Template(w io.Writer) error
}

// ImportHandler exposes the two-phase bulk import.
type ImportHandler struct {
	service importService
}

// NewImportHandler constructs handler.
func NewImportHandler(svc importService) *ImportHandler {
	return &ImportHandler{service: svc}
}

// Preview godoc
// @Summary Preview a slot import
// @Description Parses a CSV or XLSX file and reconciles it against the period without writing.
// @Tags Import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX file"
// @Param period formData string false "Academic period"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /slots/import/preview [post]
func (h *ImportHandler) Preview(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read upload"))
		return
	}
	defer file.Close()

	preview, err := h.service.Preview(c.Request.Context(), header.Filename, file, c.PostForm("period"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, nil)
}

// Commit godoc
// @Summary Commit previewed candidates
// @Description Re-validates and reconciles the candidates against the current registry and stores the accepted ones.
// @Tags Import
// @Accept json
// @Produce json
// @Param payload body dto.ImportCommitRequest true "Confirmed candidates"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /slots/import/commit [post]
func (h *ImportHandler) Commit(c *gin.Context) {
	var req dto.ImportCommitRequest
	if !bindJSON(c, &req, "invalid import payload") {
		return
	}
	result, err := h.service.Commit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Template godoc
// @Summary Download the import template
// @Tags Import
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Router /slots/import/template [get]
func (h *ImportHandler) Template(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.service.Template(&buf); err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="slot-import-template.xlsx"`)
	c.Data(http.StatusOK, xlsxMIME, buf.Bytes())
}
