package availability

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"salonbook/internal/matching"
	"salonbook/internal/models"
	"salonbook/internal/slots"
)

// Options tunes the engine.
type Options struct {
	Granularity     int // minutes between candidate starts
	MinBlockMinutes int // blocks shorter than this are skipped by FindBestResource
	MaxAdvanceDays  int // 0 disables the far-future warning
	Workers         int // parallelism of ListAvailableResources
}

// DefaultOptions returns the standard engine settings.
func DefaultOptions() Options {
	return Options{
		Granularity:     slots.DefaultGranularity,
		MinBlockMinutes: 15,
		MaxAdvanceDays:  60,
		Workers:         4,
	}
}

// Deps are the collaborators the engine reads from.
type Deps struct {
	Catalog   ServiceCatalog
	Skills    SkillRegistry
	Windows   WindowProvider
	Bookings  BookingRepository
	Directory ResourceDirectory
	Clock     Clock
	Observer  Observer
}

// Match is the result of FindBestResource.
type Match struct {
	ResourceID int64                `json:"beautician_id"`
	Slot       models.CandidateSlot `json:"slot"`
}

// ResourceAvailability is one entry of ListAvailableResources.
type ResourceAvailability struct {
	ResourceID int64                  `json:"beautician_id"`
	Name       string                 `json:"name"`
	Slots      []models.CandidateSlot `json:"slots"`
	SlotCount  int                    `json:"slot_count"`
}

// Engine answers availability questions. It never mutates state and is safe
// for concurrent use.
type Engine struct {
	deps    Deps
	opts    Options
	matcher *matching.Matcher
	gen     *slots.Generator
	checker *slots.ConflictChecker
	logger  *zerolog.Logger
}

// NewEngine creates a new availability engine.
func NewEngine(deps Deps, opts Options, logger *zerolog.Logger) *Engine {
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Engine{
		deps:    deps,
		opts:    opts,
		matcher: matching.NewMatcher(deps.Skills, deps.Directory),
		gen:     slots.NewGenerator(opts.Granularity),
		checker: slots.NewConflictChecker(deps.Bookings),
		logger:  logger,
	}
}

// Options returns the engine settings.
func (e *Engine) Options() Options {
	return e.opts
}

// Today returns the current date according to the engine clock.
func (e *Engine) Today() time.Time {
	return e.deps.Clock.Today()
}

// TotalDuration sums the durations of the distinct services requested.
func (e *Engine) TotalDuration(ctx context.Context, serviceIDs []int64) (int, error) {
	ids := matching.Normalize(serviceIDs)
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no services requested", ErrInvalidInput)
	}

	total := 0
	for _, id := range ids {
		if id <= 0 {
			return 0, fmt.Errorf("%w: service id %d", ErrInvalidInput, id)
		}
		d, err := e.deps.Catalog.DurationOf(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return 0, fmt.Errorf("%w: service %d does not exist", ErrInvalidInput, id)
		}
		if err != nil {
			return 0, fmt.Errorf("duration of service %d: %w", id, err)
		}
		total += d
	}
	return total, nil
}

// GetAvailableSlots lists every bookable slot of totalDuration minutes for a
// resource on date. A resource without windows that weekday has no slots.
func (e *Engine) GetAvailableSlots(ctx context.Context, resourceID int64, totalDuration int, date time.Time) (out []models.CandidateSlot, err error) {
	defer e.observe("available_slots", time.Now(), &err)

	if totalDuration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}
	if date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	return e.availableSlots(ctx, resourceID, totalDuration, slots.DateOnly(date))
}

// GetAvailableSlotsForServices is GetAvailableSlots with the duration derived
// from a service set.
func (e *Engine) GetAvailableSlotsForServices(ctx context.Context, resourceID int64, serviceIDs []int64, date time.Time) ([]models.CandidateSlot, error) {
	total, err := e.TotalDuration(ctx, serviceIDs)
	if err != nil {
		return nil, err
	}
	return e.GetAvailableSlots(ctx, resourceID, total, date)
}

func (e *Engine) availableSlots(ctx context.Context, resourceID int64, total int, date time.Time) ([]models.CandidateSlot, error) {
	windows, err := e.deps.Windows.WindowsFor(ctx, resourceID, date.Weekday())
	if err != nil {
		return nil, fmt.Errorf("windows of resource %d: %w", resourceID, err)
	}
	if len(windows) == 0 {
		return nil, nil
	}

	bookings, err := e.deps.Bookings.ActiveBookingsFor(ctx, resourceID, date)
	if err != nil {
		return nil, fmt.Errorf("bookings of resource %d: %w", resourceID, err)
	}

	var candidates []models.CandidateSlot
	for _, block := range slots.WindowBlocks(windows, bookings, total) {
		for s := range e.gen.Slots(resourceID, date, block, total) {
			candidates = append(candidates, s)
		}
	}

	checked, err := e.checker.Filter(ctx, resourceID, date, candidates)
	if err != nil {
		return nil, err
	}
	return dedupe(checked), nil
}

// FindBestResource returns the earliest slot of the lowest-id resource that
// can perform every requested service on date. Candidates are tried in
// ascending id order and the first passing slot wins.
func (e *Engine) FindBestResource(ctx context.Context, serviceIDs []int64, date time.Time, branchID *int64) (m *Match, err error) {
	defer e.observe("find_best", time.Now(), &err)

	if date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	date = slots.DateOnly(date)

	total, err := e.TotalDuration(ctx, serviceIDs)
	if err != nil {
		return nil, err
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: requested services have no duration", ErrNotFound)
	}

	candidates, err := e.matcher.Match(ctx, serviceIDs, branchID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no resource performs services %v", ErrNotFound, serviceIDs)
	}

	for _, rid := range candidates {
		slot, ok, err := e.firstFit(ctx, rid, total, date)
		if err != nil {
			return nil, err
		}
		if ok {
			e.logger.Debug().
				Int64("resource_id", rid).
				Str("date", date.Format(slots.DateLayout)).
				Str("start", slots.FormatClock(slot.Start)).
				Msg("best resource found")
			return &Match{ResourceID: rid, Slot: slot}, nil
		}
	}

	return nil, fmt.Errorf("%w: %d candidates, none free for %d minutes on %s",
		ErrNoAvailability, len(candidates), total, date.Format(slots.DateLayout))
}

func (e *Engine) firstFit(ctx context.Context, resourceID int64, total int, date time.Time) (models.CandidateSlot, bool, error) {
	windows, err := e.deps.Windows.WindowsFor(ctx, resourceID, date.Weekday())
	if err != nil {
		return models.CandidateSlot{}, false, fmt.Errorf("windows of resource %d: %w", resourceID, err)
	}
	if len(windows) == 0 {
		return models.CandidateSlot{}, false, nil
	}

	bookings, err := e.deps.Bookings.ActiveBookingsFor(ctx, resourceID, date)
	if err != nil {
		return models.CandidateSlot{}, false, fmt.Errorf("bookings of resource %d: %w", resourceID, err)
	}

	for _, block := range slots.WindowBlocks(windows, bookings, e.opts.MinBlockMinutes) {
		if block.Duration < total {
			continue
		}
		slot, ok := e.gen.First(resourceID, date, block, total)
		if !ok {
			continue
		}
		free, err := e.checker.Check(ctx, slot)
		if err != nil {
			return models.CandidateSlot{}, false, err
		}
		if free {
			return slot, true, nil
		}
	}
	return models.CandidateSlot{}, false, nil
}

// ListAvailableResources returns every matching resource with at least one
// slot on date, most slots first, ties broken by ascending id.
func (e *Engine) ListAvailableResources(ctx context.Context, serviceIDs []int64, date time.Time, branchID *int64) (out []ResourceAvailability, err error) {
	defer e.observe("list_available", time.Now(), &err)

	if date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	date = slots.DateOnly(date)

	total, err := e.TotalDuration(ctx, serviceIDs)
	if err != nil {
		return nil, err
	}

	candidates, err := e.matcher.Match(ctx, serviceIDs, branchID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 || total <= 0 {
		return []ResourceAvailability{}, nil
	}

	results := make([]ResourceAvailability, len(candidates))
	errs := make([]error, len(candidates))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, e.opts.Workers)
	var wg sync.WaitGroup
	for i, rid := range candidates {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			defer func() { <-sem }()

			res, err := e.resourceAvailability(ctx, rid, total, date)
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			results[i] = res
		}()
	}
	wg.Wait()

	if err := firstError(errs); err != nil {
		return nil, err
	}

	out = make([]ResourceAvailability, 0, len(results))
	for _, r := range results {
		if r.SlotCount > 0 {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b ResourceAvailability) int {
		if c := cmp.Compare(b.SlotCount, a.SlotCount); c != 0 {
			return c
		}
		return cmp.Compare(a.ResourceID, b.ResourceID)
	})
	return out, nil
}

func (e *Engine) resourceAvailability(ctx context.Context, resourceID int64, total int, date time.Time) (ResourceAvailability, error) {
	found, err := e.availableSlots(ctx, resourceID, total, date)
	if err != nil {
		return ResourceAvailability{}, err
	}
	res := ResourceAvailability{ResourceID: resourceID, Slots: found, SlotCount: len(found)}
	if len(found) == 0 {
		return res, nil
	}

	r, err := e.deps.Directory.GetResource(ctx, resourceID)
	if err != nil {
		return ResourceAvailability{}, fmt.Errorf("get resource %d: %w", resourceID, err)
	}
	if r != nil {
		res.Name = r.Name
	}
	return res, nil
}

func (e *Engine) observe(op string, started time.Time, err *error) {
	elapsed := time.Since(started)
	outcome := "ok"
	if *err != nil {
		outcome = string(KindOf(*err))
		if outcome == string(KindInternal) {
			e.logger.Error().Err(*err).Str("operation", op).Msg("availability query failed")
		}
	}
	if e.deps.Observer != nil {
		e.deps.Observer.ObserveQuery(op, outcome, elapsed)
	}
}

// firstError prefers a real failure over the cancellations it caused.
func firstError(errs []error) error {
	var canceled error
	for _, err := range errs {
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			if canceled == nil {
				canceled = err
			}
		default:
			return err
		}
	}
	return canceled
}

func dedupe(in []models.CandidateSlot) []models.CandidateSlot {
	type key struct{ start, end int }
	seen := make(map[key]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		k := key{s.Start, s.End}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}
