package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/booking"
	"salonbook/internal/slots"
)

const maxBodyBytes = 1 << 20

var errMissingServicesOrDate = errors.New("service_ids and date are required")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

// statusFor maps an engine or booking error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, booking.ErrLockTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	switch availability.KindOf(err) {
	case availability.KindInvalidInput, availability.KindPastDate:
		return http.StatusBadRequest
	case availability.KindSkillMismatch:
		return http.StatusUnprocessableEntity
	case availability.KindNotFound:
		return http.StatusNotFound
	case availability.KindNoAvailability, availability.KindConflictDetected:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure answers with the status of err. Internal errors are logged
// and hidden from the caller.
func (s *HTTPServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().
			Err(err).
			Str("request_id", RequestIDFrom(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		if status == http.StatusInternalServerError {
			writeError(w, status, "internal error")
			return
		}
	}
	writeError(w, status, err.Error())
}

// parseDate accepts "" as the zero date so the engine reports it.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	d, err := slots.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format; expected YYYY-MM-DD")
	}
	return d, nil
}

// queryIDs reads ids from repeated or comma separated parameters, accepting
// both key and key[] spellings.
func queryIDs(r *http.Request, key string) ([]int64, error) {
	q := r.URL.Query()
	var out []int64
	for _, raw := range append(q[key], q[key+"[]"]...) {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %q", key, part)
			}
			out = append(out, id)
		}
	}
	return out, nil
}

func queryInt64(r *http.Request, key string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return &v, nil
}
