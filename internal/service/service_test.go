package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"eventform/internal/dto"
	"eventform/internal/export"
	"eventform/internal/mailer"
	"eventform/internal/metrics"
	"eventform/internal/model"
	"eventform/internal/notify"
	"eventform/internal/repo"
)

type recordingQueue struct {
	mu   sync.Mutex
	msgs []mailer.Message
}

func (q *recordingQueue) Enqueue(_ context.Context, msg mailer.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *recordingQueue) sent() []mailer.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]mailer.Message(nil), q.msgs...)
}

type failingExporter struct{}

func (failingExporter) ToCSV(context.Context, []model.Application) (*export.Artifact, error) {
	return nil, errors.New("disk full")
}

func (failingExporter) ToSpreadsheet(context.Context, []model.Application) (*export.Artifact, error) {
	return nil, errors.New("disk full")
}

type ServiceSuite struct {
	suite.Suite
	repo   repo.Repository
	queue  *recordingQueue
	dir    string
	router *gin.Engine
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	log := zerolog.Nop()
	loc := time.FixedZone("JST", 9*60*60)

	s.repo = repo.NewMemoryRepository(&log)
	s.queue = &recordingQueue{}
	s.dir = s.T().TempDir()

	dispatcher := notify.NewDispatcher(s.queue, notify.Config{
		From:         "noreply@example.com",
		StaffAddress: "event@example.com",
		Office:       notify.Office{Name: "イベント事務局", Phone: "03-1234-5678", Email: "event@example.com"},
		Location:     loc,
	}, &log, nil)

	svc := NewService(s.repo, dispatcher, export.NewService(s.dir, loc, &log),
		PaymentConfig{BaseURL: "https://pay.example.com/checkout", Amount: 5000}, &log, metrics.New())
	s.router = newRouter(svc)
}

func newRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/submit", svc.Submit)
	r.POST("/api/payment/callback", svc.PaymentCallback)
	r.GET("/api/export/csv", svc.ExportCSV)
	r.GET("/api/export/excel", svc.ExportExcel)
	return r
}

func (s *ServiceSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		s.Require().NoError(json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func individualPayload() map[string]any {
	return map[string]any{
		"applicationType":   "individual",
		"fullName":          "Yamada",
		"furigana":          "ヤマダ",
		"email":             "y@example.com",
		"phoneNumber":       "03-1234-5678",
		"eventType":         "seminar",
		"participationDate": "2024-05-01",
		"numberOfPeople":    "2",
		"agree":             true,
	}
}

func (s *ServiceSuite) submit(payload map[string]any) dto.SubmitApplicationResponse {
	w := s.do(http.MethodPost, "/api/submit", payload)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp dto.SubmitApplicationResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (s *ServiceSuite) TestSubmitIndividual() {
	resp := s.submit(individualPayload())

	s.True(resp.Success)
	s.Equal(dto.SubmitAccepted, resp.Message)
	s.NotEmpty(resp.ApplicationID)

	redirect, err := url.Parse(resp.RedirectURL)
	s.Require().NoError(err)
	s.Equal("pay.example.com", redirect.Host)
	s.Equal(resp.ApplicationID, redirect.Query().Get("order_id"))
	s.Equal("5000", redirect.Query().Get("amount"))

	app, err := s.repo.GetByID(context.Background(), resp.ApplicationID)
	s.Require().NoError(err)
	s.Equal(model.StatusPending, app.Status)
	s.Equal("Yamada", app.FullName)

	msgs := s.queue.sent()
	s.Require().Len(msgs, 2)
	s.Equal("y@example.com", msgs[0].To)
	s.Equal("event@example.com", msgs[1].To)
}

func (s *ServiceSuite) TestSubmitInvalidReturnsFieldErrors() {
	payload := individualPayload()
	payload["email"] = "not-an-email"
	payload["agree"] = false

	w := s.do(http.MethodPost, "/api/submit", payload)
	s.Require().Equal(http.StatusBadRequest, w.Code)

	var resp dto.ValidationErrorResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	fields := make([]string, 0, len(resp.Errors))
	for _, e := range resp.Errors {
		fields = append(fields, e.Field)
	}
	s.Equal([]string{"email", "agree"}, fields)

	records, err := s.repo.ListAll(context.Background())
	s.Require().NoError(err)
	s.Empty(records)
	s.Empty(s.queue.sent())
}

func (s *ServiceSuite) TestSubmitMalformedBody() {
	w := s.do(http.MethodPost, "/api/submit", "{not json")
	s.Equal(http.StatusBadRequest, w.Code)

	records, err := s.repo.ListAll(context.Background())
	s.Require().NoError(err)
	s.Empty(records)
}

func (s *ServiceSuite) TestPaymentCallback() {
	id := s.submit(individualPayload()).ApplicationID

	w := s.do(http.MethodPost, "/api/payment/callback", map[string]string{"order_id": id, "status": "failed"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), dto.PaymentFailed)

	app, err := s.repo.GetByID(context.Background(), id)
	s.Require().NoError(err)
	s.Equal(model.StatusPending, app.Status)

	w = s.do(http.MethodPost, "/api/payment/callback", map[string]string{"order_id": id, "status": "success"})
	s.Equal(http.StatusOK, w.Code)

	app, err = s.repo.GetByID(context.Background(), id)
	s.Require().NoError(err)
	s.Equal(model.StatusCompleted, app.Status)
	s.False(app.UpdatedAt.IsZero())

	// a repeated notification is accepted and changes nothing
	w = s.do(http.MethodPost, "/api/payment/callback", map[string]string{"order_id": id, "status": "success"})
	s.Equal(http.StatusOK, w.Code)
	again, err := s.repo.GetByID(context.Background(), id)
	s.Require().NoError(err)
	s.Equal(app.UpdatedAt, again.UpdatedAt)
}

func (s *ServiceSuite) TestPaymentCallbackUnknownID() {
	w := s.do(http.MethodPost, "/api/payment/callback", map[string]string{"order_id": "missing", "status": "success"})
	s.Equal(http.StatusNotFound, w.Code)
	s.Contains(w.Body.String(), dto.NotFound)
}

func (s *ServiceSuite) TestPaymentCallbackMalformed() {
	w := s.do(http.MethodPost, "/api/payment/callback", "[1,2")
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *ServiceSuite) TestExportCSV() {
	s.submit(individualPayload())

	corporate := map[string]any{
		"applicationType":   "corporate",
		"companyName":       "ACME",
		"contactPerson":     "Suzuki",
		"email":             "s@acme.example",
		"phoneNumber":       "06-0000-0000",
		"eventType":         "conference",
		"participationDate": "2024-06-01",
		"numberOfPeople":    5,
		"exactNumber":       12,
		"agree":             "true",
	}
	s.submit(corporate)

	w := s.do(http.MethodGet, "/api/export/csv", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Header().Get("Content-Disposition"), "applications_")
	s.Contains(w.Header().Get("Content-Disposition"), ".csv")

	rows, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	s.Require().NoError(err)
	s.Require().Len(rows, 3)
	s.Equal("申込ID", rows[0][0])
	s.Equal("Yamada", rows[1][4])
	s.Equal("Suzuki", rows[2][4])
	s.Equal("12", rows[2][12])

	s.Empty(s.dirEntries(), "artifact is removed after download")
}

func (s *ServiceSuite) TestExportExcel() {
	s.submit(individualPayload())

	w := s.do(http.MethodGet, "/api/export/excel", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Header().Get("Content-Disposition"), ".xlsx")
	s.Equal("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	s.Equal([]byte("PK"), w.Body.Bytes()[:2])

	s.Empty(s.dirEntries())
}

func (s *ServiceSuite) dirEntries() []os.DirEntry {
	entries, err := os.ReadDir(s.dir)
	s.Require().NoError(err)
	return entries
}

func TestSubmitWithBrokenPaymentURLStoresAndSendsNothing(t *testing.T) {
	log := zerolog.Nop()
	repository := repo.NewMemoryRepository(&log)
	queue := &recordingQueue{}
	svc := NewService(repository, notify.NewDispatcher(queue, notify.Config{Location: time.UTC}, &log, nil),
		failingExporter{}, PaymentConfig{BaseURL: "https://pay.example.com/%zz", Amount: 1000}, &log, nil)

	var body bytes.Buffer
	require.NoError(t, json.NewEncoder(&body).Encode(individualPayload()))
	req := httptest.NewRequest(http.MethodPost, "/api/submit", &body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), dto.InternalError)

	records, err := repository.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, queue.sent())
}

func TestExportFailure(t *testing.T) {
	log := zerolog.Nop()
	svc := NewService(repo.NewMemoryRepository(&log), notify.NewDispatcher(&recordingQueue{}, notify.Config{}, &log, nil),
		failingExporter{}, PaymentConfig{BaseURL: "https://pay.example.com"}, &log, nil)
	r := newRouter(svc)

	for _, path := range []string{"/api/export/csv", "/api/export/excel"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusInternalServerError, w.Code, path)
		assert.Contains(t, w.Body.String(), dto.ExportFailed)
	}
}
