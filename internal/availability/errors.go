package availability

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrPastDate         = errors.New("date is in the past")
	ErrNotFound         = errors.New("not found")
	ErrNoAvailability   = errors.New("no availability")
	ErrConflictDetected = errors.New("slot conflicts with an existing booking")
	ErrSkillMismatch    = errors.New("resource cannot perform all requested services")
)

// Kind classifies an engine error for callers that cannot use errors.Is,
// such as the HTTP layer and metrics labels.
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindPastDate         Kind = "past_date"
	KindNotFound         Kind = "not_found"
	KindNoAvailability   Kind = "no_availability"
	KindConflictDetected Kind = "conflict"
	KindSkillMismatch    Kind = "skill_mismatch"
	KindInternal         Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidInput, KindInvalidInput},
	{ErrPastDate, KindPastDate},
	{ErrNotFound, KindNotFound},
	{ErrNoAvailability, KindNoAvailability},
	{ErrConflictDetected, KindConflictDetected},
	{ErrSkillMismatch, KindSkillMismatch},
}

// KindOf returns the kind of err, "" for nil and KindInternal for anything
// that does not wrap one of the package sentinels.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Sentinel returns the sentinel error of a kind, or nil for unknown kinds.
func (k Kind) Sentinel() error {
	for _, e := range kinds {
		if e.kind == k {
			return e.err
		}
	}
	return nil
}
