package models

import "time"

// Branch is a physical location of the business.
type Branch struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// Service is a bookable treatment.
type Service struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Duration int     `json:"duration"` // minutes
	Price    float64 `json:"price"`
	Category string  `json:"category,omitempty"`
	IsActive bool    `json:"is_active"`
}

// Resource is a staff member who performs services.
type Resource struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	BranchID *int64 `json:"branch_id,omitempty"`
}

// InBranch reports whether the resource is affiliated with branchID.
func (r *Resource) InBranch(branchID int64) bool {
	return r.BranchID != nil && *r.BranchID == branchID
}

// Window is a recurring weekly open interval of a resource.
// Start and End are minutes from midnight, End exclusive.
type Window struct {
	ResourceID int64        `json:"beautician_id"`
	Weekday    time.Weekday `json:"day_of_week"`
	Start      int          `json:"start"`
	End        int          `json:"end"`
}

// FreeBlock is a maximal interval of a window not covered by any active booking.
type FreeBlock struct {
	Start    int `json:"start"`
	End      int `json:"end"`
	Duration int `json:"duration_minutes"`
}

// CandidateSlot is a concrete appointment offer inside a free block.
type CandidateSlot struct {
	ResourceID int64     `json:"beautician_id"`
	Date       time.Time `json:"date"`
	Start      int       `json:"start"`
	End        int       `json:"end"`
	Duration   int       `json:"duration_minutes"`
}
