package handler

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pdb-slot-api/internal/dto"
	"github.com/noah-isme/pdb-slot-api/internal/models"
	"github.com/noah-isme/pdb-slot-api/internal/service"
	"github.com/noah-isme/pdb-slot-api/pkg/pubsub"
)

func TestPeriodHandlerSetActive(t *testing.T) {
	svc := service.NewPeriodService([]models.AcademicPeriod{{ID: "2025-1"}, {ID: "2025-2"}}, "", nil, nil, nil)
	h := NewPeriodHandler(svc, nil, nil, 0)

	c, w := newSlotContext(http.MethodPut, "/periods/active", `{"period_id":"2030-1"}`, adminClaims)
	h.SetActive(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newSlotContext(http.MethodPut, "/periods/active", `{"period_id":"2025-2"}`, adminClaims)
	h.SetActive(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2025-2", svc.ActiveID())
}

func TestPeriodHandlerEventsDisabled(t *testing.T) {
	svc := service.NewPeriodService([]models.AcademicPeriod{{ID: "2025-1"}}, "", nil, nil, nil)
	h := NewPeriodHandler(svc, nil, nil, 0)

	c, w := newSlotContext(http.MethodGet, "/periods/2025-1/events", "", lecturerClaims)
	c.Params = gin.Params{{Key: "id", Value: "2025-1"}}
	h.Events(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPeriodHandlerStreamsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	broker := pubsub.NewMemoryBroker(nil)
	t.Cleanup(func() { _ = broker.Close() })
	svc := service.NewPeriodService([]models.AcademicPeriod{{ID: "2025-1"}}, "", nil, broker, nil)
	h := NewPeriodHandler(svc, broker, service.NewMetricsService(), time.Hour)

	r := gin.New()
	r.GET("/periods/:id/events", h.Events)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/periods/2025-1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", strings.Split(resp.Header.Get("Content-Type"), ";")[0])

	lines := bufio.NewScanner(resp.Body)
	readEvent := func() string {
		for lines.Scan() {
			if name, ok := strings.CutPrefix(lines.Text(), "event:"); ok {
				return name
			}
		}
		return ""
	}
	require.Equal(t, "ready", readEvent())

	require.NoError(t, broker.Publish(ctx, models.SlotEvent{Type: models.EventSlotClaimed, Period: "2025-1", SlotID: "s1"}))
	assert.Equal(t, "slot", readEvent())
	lines.Scan()
	assert.Contains(t, lines.Text(), `"slot_id":"s1"`)
}

type importServiceMock struct {
	filename string
	period   string
	body     string
}

func (m *importServiceMock) Preview(_ context.Context, filename string, r io.Reader, period string) (*dto.ImportPreview, error) {
	raw, _ := io.ReadAll(r)
	m.filename, m.period, m.body = filename, period, string(raw)
	return &dto.ImportPreview{Period: period, Rows: 1}, nil
}

func (m *importServiceMock) Commit(context.Context, dto.ImportCommitRequest) (*dto.ImportCommitResult, error) {
	return &dto.ImportCommitResult{}, nil
}

func (m *importServiceMock) Template(w io.Writer) error {
	_, err := w.Write([]byte("xlsx"))
	return err
}

func TestImportHandlerPreviewReadsUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &importServiceMock{}
	h := NewImportHandler(mock)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "slots.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte("header\nrow\n"))
	require.NoError(t, form.WriteField("period", "2025-2"))
	require.NoError(t, form.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/slots/import/preview", &body)
	c.Request.Header.Set("Content-Type", form.FormDataContentType())
	h.Preview(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "slots.csv", mock.filename)
	assert.Equal(t, "2025-2", mock.period)
	assert.Equal(t, "header\nrow\n", mock.body)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/slots/import/preview", strings.NewReader(""))
	h.Preview(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportHandlerTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewImportHandler(&importServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/slots/import/template", nil)
	h.Template(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxMIME, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "slot-import-template.xlsx")
}
