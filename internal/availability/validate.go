package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"salonbook/internal/matching"
	"salonbook/internal/slots"
)

// BookingRequest is the input of ValidateBookingRequest. A zero Date means
// the date is missing.
type BookingRequest struct {
	ServiceIDs []int64
	Date       time.Time
	BranchID   *int64
	ResourceID *int64
}

// Issue is one validation error.
type Issue struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// ValidationResult reports every problem with a booking request at once.
type ValidationResult struct {
	Valid    bool     `json:"is_valid"`
	Errors   []Issue  `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (r *ValidationResult) fail(kind Kind, msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, Issue{Kind: kind, Message: msg})
}

// Messages returns the error messages in the order they were found.
func (r *ValidationResult) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, i := range r.Errors {
		out = append(out, i.Message)
	}
	return out
}

// Err converts the first issue into an error wrapping its kind's sentinel.
func (r *ValidationResult) Err() error {
	if r.Valid || len(r.Errors) == 0 {
		return nil
	}
	first := r.Errors[0]
	sentinel := first.Kind.Sentinel()
	if sentinel == nil {
		sentinel = ErrInvalidInput
	}
	return fmt.Errorf("%w: %s", sentinel, first.Message)
}

// ValidateBookingRequest checks a request before any availability work.
// The returned error is reserved for repository failures; problems with the
// request itself are reported in the result.
func (e *Engine) ValidateBookingRequest(ctx context.Context, req BookingRequest) (res *ValidationResult, err error) {
	defer e.observe("validate", time.Now(), &err)

	res = &ValidationResult{Valid: true, Errors: []Issue{}, Warnings: []string{}}
	ids := matching.Normalize(req.ServiceIDs)

	servicesOK := false
	if len(ids) == 0 {
		res.fail(KindInvalidInput, "At least one service must be selected")
	} else {
		missing, err := e.missingServices(ctx, ids)
		if err != nil {
			return nil, err
		}
		if missing {
			res.fail(KindInvalidInput, "One or more selected services do not exist")
		} else {
			servicesOK = true
		}
	}

	date := slots.DateOnly(req.Date)
	today := e.deps.Clock.Today()
	dateOK := false
	switch {
	case req.Date.IsZero():
		res.fail(KindInvalidInput, "Date is required")
	case date.Before(today):
		res.fail(KindPastDate, "Cannot book appointments in the past")
	default:
		dateOK = true
		if limit := e.opts.MaxAdvanceDays; limit > 0 && date.After(today.AddDate(0, 0, limit)) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("Date is more than %d days ahead", limit))
		}
	}

	if req.ResourceID != nil {
		r, err := e.deps.Directory.GetResource(ctx, *req.ResourceID)
		if err != nil {
			return nil, fmt.Errorf("get resource %d: %w", *req.ResourceID, err)
		}
		if r == nil {
			res.fail(KindNotFound, "Specified beautician does not exist")
		} else {
			if servicesOK {
				ok, err := e.deps.Skills.Covers(ctx, r.ID, ids)
				if err != nil {
					return nil, fmt.Errorf("skills of resource %d: %w", r.ID, err)
				}
				if !ok {
					res.fail(KindSkillMismatch, "Specified beautician cannot perform all selected services")
				}
			}
			if dateOK {
				windows, err := e.deps.Windows.WindowsFor(ctx, r.ID, date.Weekday())
				if err != nil {
					return nil, fmt.Errorf("windows of resource %d: %w", r.ID, err)
				}
				if len(windows) == 0 {
					res.Warnings = append(res.Warnings, "Specified beautician does not work on "+date.Weekday().String())
				}
			}
		}
	}

	if req.BranchID != nil {
		ok, err := e.deps.Directory.BranchExists(ctx, *req.BranchID)
		if err != nil {
			return nil, fmt.Errorf("branch %d: %w", *req.BranchID, err)
		}
		if !ok {
			res.fail(KindNotFound, "Specified branch does not exist")
		}
	}

	return res, nil
}

func (e *Engine) missingServices(ctx context.Context, ids []int64) (bool, error) {
	for _, id := range ids {
		if id <= 0 {
			return true, nil
		}
		_, err := e.deps.Catalog.DurationOf(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("duration of service %d: %w", id, err)
		}
	}
	return false, nil
}
