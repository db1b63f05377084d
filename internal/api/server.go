package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"salonbook/internal/availability"
	"salonbook/internal/booking"
	"salonbook/internal/models"
	"salonbook/internal/report"
)

// Engine answers availability questions.
type Engine interface {
	GetAvailableSlots(ctx context.Context, resourceID int64, totalDuration int, date time.Time) ([]models.CandidateSlot, error)
	GetAvailableSlotsForServices(ctx context.Context, resourceID int64, serviceIDs []int64, date time.Time) ([]models.CandidateSlot, error)
	FindBestResource(ctx context.Context, serviceIDs []int64, date time.Time, branchID *int64) (*availability.Match, error)
	ListAvailableResources(ctx context.Context, serviceIDs []int64, date time.Time, branchID *int64) ([]availability.ResourceAvailability, error)
	ValidateBookingRequest(ctx context.Context, req availability.BookingRequest) (*availability.ValidationResult, error)
}

// Booker creates bookings and moves them between statuses.
type Booker interface {
	Commit(ctx context.Context, req booking.Request) (*models.Booking, error)
	SetStatus(ctx context.Context, id int64, status models.BookingStatus) (*models.Booking, error)
}

// ReportBuilder renders availability workbooks.
type ReportBuilder interface {
	Build(ctx context.Context, out io.Writer, req report.Request) error
}

// Metrics counts served requests.
type Metrics interface {
	IncHTTP(method, route, status string)
}

// Config holds the HTTP layer settings.
type Config struct {
	// APIKeys accepted in the x-api-key header. Empty disables the check.
	APIKeys            []string
	RateLimitPerMinute int
	RequestTimeout     time.Duration
}

// HTTPServer exposes the booking engine over HTTP.
type HTTPServer struct {
	engine  Engine
	booker  Booker
	reports ReportBuilder
	metrics Metrics
	apiKeys map[string]struct{}
	limiter *clientLimiter
	timeout time.Duration
	logger  *zerolog.Logger
}

// NewHTTPServer creates a server. booker, reports and metrics may be nil;
// the routes that need them answer 501 in that case.
func NewHTTPServer(cfg Config, engine Engine, booker Booker, reports ReportBuilder, metrics Metrics, logger *zerolog.Logger) *HTTPServer {
	keys := make(map[string]struct{}, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = struct{}{}
		}
	}
	return &HTTPServer{
		engine:  engine,
		booker:  booker,
		reports: reports,
		metrics: metrics,
		apiKeys: keys,
		limiter: newClientLimiter(cfg.RateLimitPerMinute),
		timeout: cfg.RequestTimeout,
		logger:  logger,
	}
}

// Routes builds the router.
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.countRequests)
	if s.timeout > 0 {
		r.Use(middleware.Timeout(s.timeout))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Use(s.rateLimit)

		r.Route("/appointment-services", func(r chi.Router) {
			r.Get("/available-time-slots", s.handleAvailableTimeSlots)
			r.Post("/find-best-beautician", s.handleFindBestBeautician)
			r.Post("/available-beauticians", s.handleAvailableBeauticians)
			r.Post("/validate-booking", s.handleValidateBooking)
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", s.handleCreateAppointment)
			r.Put("/{id}/status", s.handleUpdateStatus)
		})

		r.Get("/reports/availability.xlsx", s.handleAvailabilityReport)
	})

	return r
}
