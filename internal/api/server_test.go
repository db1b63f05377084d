package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonbook/internal/availability"
	"salonbook/internal/booking"
	"salonbook/internal/models"
	"salonbook/internal/report"
)

var testDate = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type fakeEngine struct {
	slotsErr   error
	bestErr    error
	listErr    error
	validation *availability.ValidationResult
	validErr   error

	gotDuration int
	gotServices []int64
	gotBranch   *int64
	gotValidate availability.BookingRequest
}

func (f *fakeEngine) GetAvailableSlots(_ context.Context, rid int64, total int, date time.Time) ([]models.CandidateSlot, error) {
	f.gotDuration = total
	if f.slotsErr != nil {
		return nil, f.slotsErr
	}
	return []models.CandidateSlot{
		{ResourceID: rid, Date: date, Start: 540, End: 540 + total, Duration: total},
	}, nil
}

func (f *fakeEngine) GetAvailableSlotsForServices(_ context.Context, rid int64, ids []int64, date time.Time) ([]models.CandidateSlot, error) {
	f.gotServices = ids
	return []models.CandidateSlot{
		{ResourceID: rid, Date: date, Start: 600, End: 690, Duration: 90},
		{ResourceID: rid, Date: date, Start: 615, End: 705, Duration: 90},
	}, nil
}

func (f *fakeEngine) FindBestResource(_ context.Context, ids []int64, date time.Time, branchID *int64) (*availability.Match, error) {
	f.gotServices = ids
	f.gotBranch = branchID
	if f.bestErr != nil {
		return nil, f.bestErr
	}
	return &availability.Match{
		ResourceID: 7,
		Slot:       models.CandidateSlot{ResourceID: 7, Date: date, Start: 540, End: 570, Duration: 30},
	}, nil
}

func (f *fakeEngine) ListAvailableResources(_ context.Context, ids []int64, date time.Time, branchID *int64) ([]availability.ResourceAvailability, error) {
	f.gotServices = ids
	f.gotBranch = branchID
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(ids) == 1 && ids[0] == 99 {
		return []availability.ResourceAvailability{}, nil
	}
	slot := models.CandidateSlot{ResourceID: 2, Date: date, Start: 540, End: 570, Duration: 30}
	return []availability.ResourceAvailability{
		{ResourceID: 2, Name: "Alice", Slots: []models.CandidateSlot{slot}, SlotCount: 1},
	}, nil
}

func (f *fakeEngine) ValidateBookingRequest(_ context.Context, req availability.BookingRequest) (*availability.ValidationResult, error) {
	f.gotValidate = req
	if f.validErr != nil {
		return nil, f.validErr
	}
	return f.validation, nil
}

type fakeBooker struct {
	err     error
	got     booking.Request
	status  models.BookingStatus
	statusT int64
}

func (f *fakeBooker) Commit(_ context.Context, req booking.Request) (*models.Booking, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Booking{
		ID:         11,
		ResourceID: req.ResourceID,
		Date:       req.Date,
		Start:      req.Start,
		End:        req.Start + 30,
		Status:     models.StatusScheduled,
		ServiceIDs: req.ServiceIDs,
	}, nil
}

func (f *fakeBooker) SetStatus(_ context.Context, id int64, status models.BookingStatus) (*models.Booking, error) {
	f.statusT = id
	f.status = status
	if f.err != nil {
		return nil, f.err
	}
	return &models.Booking{ID: id, ResourceID: 1, Date: testDate, Start: 540, End: 570, Status: status}, nil
}

type fakeReports struct {
	err error
	got report.Request
}

func (f *fakeReports) Build(_ context.Context, out io.Writer, req report.Request) error {
	f.got = req
	if f.err != nil {
		return f.err
	}
	_, err := out.Write([]byte("PK-workbook"))
	return err
}

type httpCounter struct {
	mu    sync.Mutex
	calls []string
}

func (c *httpCounter) IncHTTP(method, route, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, method+" "+route+" "+status)
}

type testServer struct {
	engine  *fakeEngine
	booker  *fakeBooker
	reports *fakeReports
	metrics *httpCounter
	handler http.Handler
}

func newTestServer(cfg Config) *testServer {
	ts := &testServer{
		engine:  &fakeEngine{},
		booker:  &fakeBooker{},
		reports: &fakeReports{},
		metrics: &httpCounter{},
	}
	logger := zerolog.New(io.Discard)
	srv := NewHTTPServer(cfg, ts.engine, ts.booker, ts.reports, ts.metrics, &logger)
	ts.handler = srv.Routes()
	return ts
}

func (ts *testServer) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var rd io.Reader = http.NoBody
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestAPIKeyAuthentication(t *testing.T) {
	ts := newTestServer(Config{APIKeys: []string{"valid-key"}})

	tests := []struct {
		name           string
		apiKey         string
		expectedStatus int
	}{
		{name: "valid API key", apiKey: "valid-key", expectedStatus: http.StatusOK},
		{name: "missing API key", apiKey: "", expectedStatus: http.StatusUnauthorized},
		{name: "invalid API key", apiKey: "invalid-key", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.apiKey != "" {
				headers = []string{"x-api-key", tt.apiKey}
			}
			w := ts.do(http.MethodPost, "/api/v1/appointment-services/available-beauticians",
				`{"service_ids":[1],"date":"2026-03-02"}`, headers...)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestAvailableTimeSlots(t *testing.T) {
	t.Run("by total duration", func(t *testing.T) {
		ts := newTestServer(Config{})
		w := ts.do(http.MethodGet, "/api/v1/appointment-services/available-time-slots?beautician_id=3&total_duration=45&date=2026-03-02", "")
		require.Equal(t, http.StatusOK, w.Code)

		got := decodeBody[[]Slot](t, w)
		require.Len(t, got, 1)
		assert.Equal(t, Slot{BeauticianID: 3, Date: "2026-03-02", Start: "09:00", End: "09:45", DurationMinutes: 45}, got[0])
		assert.Equal(t, 45, ts.engine.gotDuration)
	})

	t.Run("by service ids", func(t *testing.T) {
		ts := newTestServer(Config{})
		w := ts.do(http.MethodGet, "/api/v1/appointment-services/available-time-slots?beautician_id=3&service_ids=1,2&service_ids[]=4&date=2026-03-02", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decodeBody[[]Slot](t, w), 2)
		assert.Equal(t, []int64{1, 2, 4}, ts.engine.gotServices)
	})

	tests := []struct {
		name   string
		query  string
		err    error
		status int
	}{
		{name: "missing beautician", query: "total_duration=30&date=2026-03-02", status: http.StatusBadRequest},
		{name: "missing duration and services", query: "beautician_id=1&date=2026-03-02", status: http.StatusBadRequest},
		{name: "bad date", query: "beautician_id=1&total_duration=30&date=02.03.2026", status: http.StatusBadRequest},
		{name: "bad duration", query: "beautician_id=1&total_duration=half&date=2026-03-02", status: http.StatusBadRequest},
		{name: "engine rejects duration", query: "beautician_id=1&total_duration=0&date=2026-03-02",
			err: fmt.Errorf("%w: duration must be positive", availability.ErrInvalidInput), status: http.StatusBadRequest},
		{name: "repository failure", query: "beautician_id=1&total_duration=30&date=2026-03-02",
			err: errors.New("disk I/O error"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(Config{})
			ts.engine.slotsErr = tt.err
			w := ts.do(http.MethodGet, "/api/v1/appointment-services/available-time-slots?"+tt.query, "")
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusInternalServerError {
				assert.NotContains(t, w.Body.String(), "disk")
			}
		})
	}
}

func TestFindBestBeautician(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		err     error
		status  int
		message string
	}{
		{name: "found", body: `{"service_ids":[1,2],"date":"2026-03-02","branch_id":4}`, status: http.StatusOK},
		{name: "missing services", body: `{"service_ids":[],"date":"2026-03-02"}`, status: http.StatusBadRequest},
		{name: "missing date", body: `{"service_ids":[1]}`, status: http.StatusBadRequest},
		{name: "unknown field", body: `{"service_ids":[1],"date":"2026-03-02","extra":true}`, status: http.StatusBadRequest},
		{name: "no candidates", body: `{"service_ids":[1],"date":"2026-03-02"}`,
			err: availability.ErrNotFound, status: http.StatusNotFound, message: noBeauticianMessage},
		{name: "nobody free", body: `{"service_ids":[1],"date":"2026-03-02"}`,
			err: availability.ErrNoAvailability, status: http.StatusNotFound, message: noBeauticianMessage},
		{name: "unknown service", body: `{"service_ids":[1],"date":"2026-03-02"}`,
			err: fmt.Errorf("%w: service 1", availability.ErrInvalidInput), status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(Config{})
			ts.engine.bestErr = tt.err
			w := ts.do(http.MethodPost, "/api/v1/appointment-services/find-best-beautician", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())

			if tt.message != "" {
				assert.Equal(t, tt.message, decodeBody[map[string]string](t, w)["message"])
			}
			if tt.status == http.StatusOK {
				got := decodeBody[BestMatch](t, w)
				assert.Equal(t, int64(7), got.BeauticianID)
				assert.Equal(t, "09:00", got.Slot.Start)
				assert.Equal(t, "09:30", got.Slot.End)
				require.NotNil(t, ts.engine.gotBranch)
				assert.Equal(t, int64(4), *ts.engine.gotBranch)
			}
		})
	}

	t.Run("required fields message", func(t *testing.T) {
		ts := newTestServer(Config{})
		w := ts.do(http.MethodPost, "/api/v1/appointment-services/find-best-beautician", `{"date":"2026-03-02"}`)
		assert.Equal(t, "service_ids and date are required", decodeBody[map[string]string](t, w)["error"])
	})
}

func TestAvailableBeauticians(t *testing.T) {
	ts := newTestServer(Config{})

	w := ts.do(http.MethodPost, "/api/v1/appointment-services/available-beauticians", `{"service_ids":[1],"date":"2026-03-02"}`)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody[AvailableBeauticians](t, w)
	assert.Equal(t, "2026-03-02", got.Date)
	assert.Equal(t, 1, got.Count)
	require.Len(t, got.AvailableBeauticians, 1)
	assert.Equal(t, "Alice", got.AvailableBeauticians[0].Name)

	w = ts.do(http.MethodPost, "/api/v1/appointment-services/available-beauticians", `{"service_ids":[99],"date":"2026-03-02"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"available_beauticians":[]`)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestValidateBooking(t *testing.T) {
	t.Run("reports errors and warnings", func(t *testing.T) {
		ts := newTestServer(Config{})
		ts.engine.validation = &availability.ValidationResult{
			Valid: false,
			Errors: []availability.Issue{
				{Kind: availability.KindPastDate, Message: "Cannot book appointments in the past"},
			},
		}
		w := ts.do(http.MethodPost, "/api/v1/appointment-services/validate-booking",
			`{"service_ids":[1],"date":"2026-01-01","beautician_id":5}`)
		require.Equal(t, http.StatusOK, w.Code)

		got := decodeBody[ValidateResponse](t, w)
		assert.False(t, got.IsValid)
		assert.Equal(t, []string{"Cannot book appointments in the past"}, got.Errors)
		assert.Equal(t, []string{}, got.Warnings)
		require.NotNil(t, ts.engine.gotValidate.ResourceID)
		assert.Equal(t, int64(5), *ts.engine.gotValidate.ResourceID)
	})

	t.Run("missing date is left to the validator", func(t *testing.T) {
		ts := newTestServer(Config{})
		ts.engine.validation = &availability.ValidationResult{Valid: true, Warnings: []string{"w"}}
		w := ts.do(http.MethodPost, "/api/v1/appointment-services/validate-booking", `{"service_ids":[1]}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, ts.engine.gotValidate.Date.IsZero())
		assert.Equal(t, []string{"w"}, decodeBody[ValidateResponse](t, w).Warnings)
	})

	t.Run("repository failure", func(t *testing.T) {
		ts := newTestServer(Config{})
		ts.engine.validErr = errors.New("database is locked")
		w := ts.do(http.MethodPost, "/api/v1/appointment-services/validate-booking", `{"service_ids":[1],"date":"2026-03-02"}`)
		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.False(t, decodeBody[ValidateResponse](t, w).IsValid)
	})
}

func TestCreateAppointment(t *testing.T) {
	body := `{"beautician_id":1,"service_ids":[1],"date":"2026-03-02","start":"10:15"}`

	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "created", body: body, status: http.StatusCreated},
		{name: "bad start", body: `{"beautician_id":1,"service_ids":[1],"date":"2026-03-02","start":"ten"}`, status: http.StatusBadRequest},
		{name: "conflict", body: body, err: fmt.Errorf("%w: booking 3", availability.ErrConflictDetected), status: http.StatusConflict},
		{name: "outside hours", body: body, err: availability.ErrNoAvailability, status: http.StatusConflict},
		{name: "skill mismatch", body: body, err: availability.ErrSkillMismatch, status: http.StatusUnprocessableEntity},
		{name: "past date", body: body, err: availability.ErrPastDate, status: http.StatusBadRequest},
		{name: "unknown beautician", body: body, err: availability.ErrNotFound, status: http.StatusNotFound},
		{name: "lock timeout", body: body, err: booking.ErrLockTimeout, status: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(Config{})
			ts.booker.err = tt.err
			w := ts.do(http.MethodPost, "/api/v1/appointments", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())

			if tt.status == http.StatusCreated {
				got := decodeBody[Appointment](t, w)
				assert.Equal(t, int64(11), got.ID)
				assert.Equal(t, "10:15", got.Start)
				assert.Equal(t, "10:45", got.End)
				assert.Equal(t, "SCHEDULED", got.Status)
				assert.Equal(t, 615, ts.booker.got.Start)
				assert.Equal(t, testDate, ts.booker.got.Date)
			}
		})
	}
}

func TestUpdateStatus(t *testing.T) {
	ts := newTestServer(Config{})

	w := ts.do(http.MethodPut, "/api/v1/appointments/42/status", `{"status":"cancelled"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(42), ts.booker.statusT)
	assert.Equal(t, models.StatusCancelled, ts.booker.status)
	assert.Equal(t, "CANCELLED", decodeBody[Appointment](t, w).Status)

	w = ts.do(http.MethodPut, "/api/v1/appointments/abc/status", `{"status":"CANCELLED"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.booker.err = fmt.Errorf("%w: booking 42", availability.ErrNotFound)
	w = ts.do(http.MethodPut, "/api/v1/appointments/42/status", `{"status":"CONFIRMED"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAvailabilityReport(t *testing.T) {
	ts := newTestServer(Config{})

	w := ts.do(http.MethodGet, "/api/v1/reports/availability.xlsx?service_ids=1,2&date=2026-03-02&branch_id=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, report.ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "availability_2026-03-02.xlsx")
	assert.Equal(t, "PK-workbook", w.Body.String())
	assert.Equal(t, []int64{1, 2}, ts.reports.got.ServiceIDs)
	require.NotNil(t, ts.reports.got.BranchID)
	assert.Equal(t, int64(3), *ts.reports.got.BranchID)

	w = ts.do(http.MethodGet, "/api/v1/reports/availability.xlsx?date=2026-03-02", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.reports.err = errors.New("excel failure")
	w = ts.do(http.MethodGet, "/api/v1/reports/availability.xlsx?service_ids=1&date=2026-03-02", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestDisabledBookingAndReports(t *testing.T) {
	logger := zerolog.New(io.Discard)
	srv := NewHTTPServer(Config{}, &fakeEngine{}, nil, nil, nil, &logger)
	h := srv.Routes()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/reports/availability.xlsx", http.NoBody)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestRateLimitPerClient(t *testing.T) {
	ts := newTestServer(Config{APIKeys: []string{"a", "b"}, RateLimitPerMinute: 2})
	target := "/api/v1/appointment-services/available-time-slots?beautician_id=1&total_duration=30&date=2026-03-02"

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, target, "", "x-api-key", "a").Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, target, "", "x-api-key", "a").Code)
	w := ts.do(http.MethodGet, target, "", "x-api-key", "a")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, target, "", "x-api-key", "b").Code)
}

func TestRequestID(t *testing.T) {
	ts := newTestServer(Config{})
	target := "/api/v1/appointment-services/available-time-slots?beautician_id=1&total_duration=30&date=2026-03-02"

	w := ts.do(http.MethodGet, target, "", "X-Request-ID", "req-1")
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))

	w = ts.do(http.MethodGet, target, "")
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestCountRequestsUsesRoutePattern(t *testing.T) {
	ts := newTestServer(Config{})

	ts.do(http.MethodPut, "/api/v1/appointments/42/status", `{"status":"CONFIRMED"}`)
	ts.do(http.MethodGet, "/nowhere", "")

	require.Len(t, ts.metrics.calls, 2)
	assert.Equal(t, "PUT /api/v1/appointments/{id}/status 200", ts.metrics.calls[0])
	assert.True(t, strings.HasSuffix(ts.metrics.calls[1], " 404"), ts.metrics.calls[1])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{availability.ErrInvalidInput, http.StatusBadRequest},
		{availability.ErrPastDate, http.StatusBadRequest},
		{availability.ErrSkillMismatch, http.StatusUnprocessableEntity},
		{availability.ErrNotFound, http.StatusNotFound},
		{availability.ErrNoAvailability, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", availability.ErrConflictDetected), http.StatusConflict},
		{booking.ErrLockTimeout, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, statusFor(tt.err))
		})
	}
}
