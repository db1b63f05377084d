package availability

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"salonbook/internal/models"
)

// memStore is an in-memory implementation of every engine dependency.
type memStore struct {
	mu        sync.Mutex
	services  map[int64]int
	skills    map[int64][]int64
	windows   map[int64][]models.Window
	bookings  map[int64][]models.Booking
	resources map[int64]*models.Resource
	branches  map[int64]bool

	bookingErr   error
	bookingReads int
	windowReads  int
	// replaced, when set, supplies the bookings returned from the given read onwards.
	replaced map[int64]func(read int) []models.Booking
}

func newMemStore() *memStore {
	return &memStore{
		services:  map[int64]int{},
		skills:    map[int64][]int64{},
		windows:   map[int64][]models.Window{},
		bookings:  map[int64][]models.Booking{},
		resources: map[int64]*models.Resource{},
		branches:  map[int64]bool{},
		replaced:  map[int64]func(int) []models.Booking{},
	}
}

func (s *memStore) addResource(id int64, name string, branchID *int64, skills ...int64) {
	s.resources[id] = &models.Resource{ID: id, Name: name, BranchID: branchID}
	s.skills[id] = skills
}

func (s *memStore) addWindow(id int64, day time.Weekday, start, end int) {
	s.windows[id] = append(s.windows[id], models.Window{ResourceID: id, Weekday: day, Start: start, End: end})
}

func (s *memStore) book(id int64, start, end int, status models.BookingStatus) {
	s.bookings[id] = append(s.bookings[id], models.Booking{ResourceID: id, Start: start, End: end, Status: status})
}

func (s *memStore) DurationOf(_ context.Context, serviceID int64) (int, error) {
	d, ok := s.services[serviceID]
	if !ok {
		return 0, fmt.Errorf("service %d: %w", serviceID, ErrNotFound)
	}
	return d, nil
}

func (s *memStore) Covers(_ context.Context, resourceID int64, serviceIDs []int64) (bool, error) {
	for _, id := range serviceIDs {
		if !slices.Contains(s.skills[resourceID], id) {
			return false, nil
		}
	}
	return true, nil
}

func (s *memStore) ResourcesCovering(ctx context.Context, serviceIDs []int64) ([]int64, error) {
	var out []int64
	for rid := range s.skills {
		if ok, _ := s.Covers(ctx, rid, serviceIDs); ok {
			out = append(out, rid)
		}
	}
	return out, nil
}

func (s *memStore) WindowsFor(_ context.Context, resourceID int64, weekday time.Weekday) ([]models.Window, error) {
	s.mu.Lock()
	s.windowReads++
	s.mu.Unlock()

	var out []models.Window
	for _, w := range s.windows[resourceID] {
		if w.Weekday == weekday {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *memStore) ActiveBookingsFor(_ context.Context, resourceID int64, _ time.Time) ([]models.Booking, error) {
	s.mu.Lock()
	s.bookingReads++
	read := s.bookingReads
	s.mu.Unlock()

	if s.bookingErr != nil {
		return nil, s.bookingErr
	}
	if fn, ok := s.replaced[resourceID]; ok {
		if b := fn(read); b != nil {
			return b, nil
		}
	}
	var out []models.Booking
	for _, b := range s.bookings[resourceID] {
		if b.Status.IsActive() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memStore) GetResource(_ context.Context, id int64) (*models.Resource, error) {
	return s.resources[id], nil
}

func (s *memStore) BranchExists(_ context.Context, id int64) (bool, error) {
	return s.branches[id], nil
}

type recordedQuery struct {
	op, outcome string
}

type recordingObserver struct {
	mu      sync.Mutex
	queries []recordedQuery
}

func (o *recordingObserver) ObserveQuery(op, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queries = append(o.queries, recordedQuery{op, outcome})
}
