package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"salonbook/internal/availability"
	"salonbook/internal/booking"
	"salonbook/internal/models"
	"salonbook/internal/report"
	"salonbook/internal/slots"
)

const noBeauticianMessage = "No available beautician found for the requested services and date"

// handleAvailableTimeSlots lists the free slots of one beautician.
// GET /api/v1/appointment-services/available-time-slots
func (s *HTTPServer) handleAvailableTimeSlots(w http.ResponseWriter, r *http.Request) {
	beauticianID, err := queryInt64(r, "beautician_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	serviceIDs, err := queryIDs(r, "service_ids")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rawDuration := strings.TrimSpace(r.URL.Query().Get("total_duration"))
	if beauticianID == nil || date.IsZero() || (rawDuration == "" && len(serviceIDs) == 0) {
		writeError(w, http.StatusBadRequest, "beautician_id, date and total_duration or service_ids are required")
		return
	}

	var found []models.CandidateSlot
	if len(serviceIDs) > 0 {
		found, err = s.engine.GetAvailableSlotsForServices(r.Context(), *beauticianID, serviceIDs, date)
	} else {
		total, convErr := strconv.Atoi(rawDuration)
		if convErr != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid total_duration: %q", rawDuration))
			return
		}
		found, err = s.engine.GetAvailableSlots(r.Context(), *beauticianID, total, date)
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSlots(found))
}

// handleFindBestBeautician returns the first beautician with a free slot.
// POST /api/v1/appointment-services/find-best-beautician
func (s *HTTPServer) handleFindBestBeautician(w http.ResponseWriter, r *http.Request) {
	req, date, ok := s.decodeServicesRequest(w, r)
	if !ok {
		return
	}

	match, err := s.engine.FindBestResource(r.Context(), req.ServiceIDs, date, req.BranchID)
	if err != nil {
		switch availability.KindOf(err) {
		case availability.KindNotFound, availability.KindNoAvailability:
			writeJSON(w, http.StatusNotFound, map[string]string{"message": noBeauticianMessage})
		default:
			s.writeFailure(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, BestMatch{
		BeauticianID: match.ResourceID,
		Slot:         toSlot(match.Slot),
	})
}

// handleAvailableBeauticians ranks every beautician with free slots.
// POST /api/v1/appointment-services/available-beauticians
func (s *HTTPServer) handleAvailableBeauticians(w http.ResponseWriter, r *http.Request) {
	req, date, ok := s.decodeServicesRequest(w, r)
	if !ok {
		return
	}

	list, err := s.engine.ListAvailableResources(r.Context(), req.ServiceIDs, date, req.BranchID)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AvailableBeauticians{
		Date:                 date.Format(slots.DateLayout),
		AvailableBeauticians: toBeauticians(list),
		Count:                len(list),
	})
}

// handleValidateBooking reports every problem with a prospective booking.
// POST /api/v1/appointment-services/validate-booking
func (s *HTTPServer) handleValidateBooking(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.engine.ValidateBookingRequest(r.Context(), availability.BookingRequest{
		ServiceIDs: req.ServiceIDs,
		Date:       date,
		BranchID:   req.BranchID,
		ResourceID: req.BeauticianID,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", RequestIDFrom(r.Context())).Msg("validation failed")
		writeJSON(w, http.StatusInternalServerError, ValidateResponse{
			IsValid:  false,
			Errors:   []string{"Validation failed"},
			Warnings: []string{},
		})
		return
	}

	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, ValidateResponse{
		IsValid:  res.Valid,
		Errors:   res.Messages(),
		Warnings: warnings,
	})
}

// handleCreateAppointment books one beautician at a start time.
// POST /api/v1/appointments
func (s *HTTPServer) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	if s.booker == nil {
		writeError(w, http.StatusNotImplemented, "booking is disabled")
		return
	}

	var req AppointmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, err := slots.ParseClock(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start; expected HH:MM")
		return
	}

	b, err := s.booker.Commit(r.Context(), booking.Request{
		ResourceID: req.BeauticianID,
		BranchID:   req.BranchID,
		CustomerID: req.CustomerID,
		ServiceIDs: req.ServiceIDs,
		Date:       date,
		Start:      start,
	})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointment(b))
}

// handleUpdateStatus moves an appointment to a new status.
// PUT /api/v1/appointments/{id}/status
func (s *HTTPServer) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	if s.booker == nil {
		writeError(w, http.StatusNotImplemented, "booking is disabled")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}
	var req StatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status := models.BookingStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	b, err := s.booker.SetStatus(r.Context(), id, status)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointment(b))
}

// handleAvailabilityReport streams an Excel workbook of free slots.
// GET /api/v1/reports/availability.xlsx
func (s *HTTPServer) handleAvailabilityReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeError(w, http.StatusNotImplemented, "reports are disabled")
		return
	}

	serviceIDs, err := queryIDs(r, "service_ids")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	branchID, err := queryInt64(r, "branch_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(serviceIDs) == 0 || date.IsZero() {
		writeError(w, http.StatusBadRequest, errMissingServicesOrDate.Error())
		return
	}

	// Buffered so a failure halfway through still yields a JSON error.
	var buf bytes.Buffer
	if err := s.reports.Build(r.Context(), &buf, report.Request{
		ServiceIDs: serviceIDs,
		Date:       date,
		BranchID:   branchID,
	}); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="availability_%s.xlsx"`, date.Format(slots.DateLayout)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) decodeServicesRequest(w http.ResponseWriter, r *http.Request) (ServicesRequest, time.Time, bool) {
	var req ServicesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, time.Time{}, false
	}
	if len(req.ServiceIDs) == 0 || strings.TrimSpace(req.Date) == "" {
		writeError(w, http.StatusBadRequest, errMissingServicesOrDate.Error())
		return req, time.Time{}, false
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, time.Time{}, false
	}
	return req, date, true
}
