package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pdb-slot-api/internal/dto"
	"github.com/noah-isme/pdb-slot-api/internal/models"
	"github.com/noah-isme/pdb-slot-api/internal/service"
	appErrors "github.com/noah-isme/pdb-slot-api/pkg/errors"
	"github.com/noah-isme/pdb-slot-api/pkg/response"
)

type periodService interface {
	List() []models.AcademicPeriod
	Active() models.AcademicPeriod
	Resolve(id string) (string, error)
	SetActive(ctx context.Context, id string) (models.AcademicPeriod, error)
}

type eventSubscriber interface {
	Subscribe(ctx context.Context, period string) (<-chan models.SlotEvent, func(), error)
}

// PeriodHandler exposes academic periods and the per-period event stream.
type PeriodHandler struct {
	service   periodService
	events    eventSubscriber
	metrics   *service.MetricsService
	heartbeat time.Duration
}

// NewPeriodHandler constructs handler. A nil subscriber disables the event stream.
func NewPeriodHandler(svc periodService, events eventSubscriber, metrics *service.MetricsService, heartbeat time.Duration) *PeriodHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &PeriodHandler{service: svc, events: events, metrics: metrics, heartbeat: heartbeat}
}

// List godoc
// @Summary List academic periods
// @Tags Periods
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /periods [get]
func (h *PeriodHandler) List(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.List(), nil)
}

// Active godoc
// @Summary Active academic period
// @Tags Periods
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /periods/active [get]
func (h *PeriodHandler) Active(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Active(), nil)
}

// SetActive godoc
// @Summary Switch the active academic period
// @Tags Periods
// @Accept json
// @Produce json
// @Param payload body dto.SetActivePeriodRequest true "Period"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /periods/active [put]
func (h *PeriodHandler) SetActive(c *gin.Context) {
	var req dto.SetActivePeriodRequest
	if !bindJSON(c, &req, "invalid period payload") {
		return
	}
	period, err := h.service.SetActive(c.Request.Context(), req.PeriodID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Events godoc
// @Summary Stream slot events of a period
// @Description Server-Sent Events, one "slot" event per registry mutation and a periodic "ping".
// @Tags Periods
// @Produce text/event-stream
// @Param id path string true "Academic period"
// @Success 200
// @Failure 503 {object} response.Envelope
// @Router /periods/{id}/events [get]
func (h *PeriodHandler) Events(c *gin.Context) {
	if h.events == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBackendUnavailable, "realtime events are disabled"))
		return
	}
	period, err := h.service.Resolve(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	events, cancel, err := h.events.Subscribe(ctx, period)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrBackendUnavailable.Code, appErrors.ErrBackendUnavailable.Status, "event stream unavailable"))
		return
	}
	defer cancel()

	h.metrics.TrackSubscriber(1)
	defer h.metrics.TrackSubscriber(-1)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"period": period})
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("slot", event)
			return true
		case now := <-ticker.C:
			c.SSEvent("ping", now.UTC().Format(time.RFC3339))
			return true
		}
	})
}
