package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pdb-slot-api/internal/models"
	"github.com/noah-isme/pdb-slot-api/internal/scheduling"
	appErrors "github.com/noah-isme/pdb-slot-api/pkg/errors"
	"github.com/noah-isme/pdb-slot-api/pkg/response"
)

const calendarMIME = "text/calendar; charset=utf-8"

type claimedLister interface {
	ClaimedBy(ctx context.Context, period, lecturerID string) ([]models.ScheduleSlot, string, error)
}

// CalendarHandler exports a lecturer's claimed slots as iCalendar.
type CalendarHandler struct {
	service  claimedLister
	location *time.Location
	weeks    int
}

// NewCalendarHandler constructs handler. A nil location means UTC.
func NewCalendarHandler(svc claimedLister, location *time.Location, weeks int) *CalendarHandler {
	if location == nil {
		location = time.UTC
	}
	return &CalendarHandler{service: svc, location: location, weeks: weeks}
}

// Mine godoc
// @Summary iCalendar feed of the caller's claimed slots
// @Tags Claims
// @Produce text/calendar
// @Param period query string false "Academic period"
// @Param from query string false "First week, YYYY-MM-DD; defaults to today"
// @Param weeks query int false "Number of weekly occurrences"
// @Success 200 {string} string "iCalendar document"
// @Router /me/calendar [get]
func (h *CalendarHandler) Mine(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}

	opts := scheduling.CalendarOptions{Name: claims.Name, Weeks: h.weeks, Location: h.location}
	if raw := c.Query("from"); raw != "" {
		from, err := time.ParseInLocation("2006-01-02", raw, h.location)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD"))
			return
		}
		opts.From = from
	}
	if raw := c.Query("weeks"); raw != "" {
		weeks, err := strconv.Atoi(raw)
		if err != nil || weeks <= 0 || weeks > 52 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "weeks must be between 1 and 52"))
			return
		}
		opts.Weeks = weeks
	}

	slots, period, err := h.service.ClaimedBy(c.Request.Context(), c.Query("period"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	var buf bytes.Buffer
	if err := scheduling.WriteCalendar(&buf, slots, opts); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to render calendar"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=pdb-%s.ics", period))
	c.Data(http.StatusOK, calendarMIME, buf.Bytes())
}
