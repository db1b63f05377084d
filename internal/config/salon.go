package config

import (
	"cmp"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"salonbook/internal/models"
	"salonbook/internal/slots"
)

// BranchConfig represents a single branch.
type BranchConfig struct {
	ID      int64  `yaml:"id"`
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Contact string `yaml:"contact"`
}

// ServiceConfig represents a bookable service.
type ServiceConfig struct {
	ID              int64   `yaml:"id"`
	Name            string  `yaml:"name"`
	DurationMinutes int     `yaml:"duration_minutes"`
	Price           float64 `yaml:"price"`
	Category        string  `yaml:"category"`
	Inactive        bool    `yaml:"inactive"`
}

// ShiftConfig is one weekly working interval.
type ShiftConfig struct {
	Day   string `yaml:"day"`   // "Monday", "mon" or 1..7
	Start string `yaml:"start"` // "09:00"
	End   string `yaml:"end"`   // "17:00"
}

// StaffConfig represents a beautician.
type StaffConfig struct {
	ID       int64         `yaml:"id"`
	Name     string        `yaml:"name"`
	Email    string        `yaml:"email"`
	Branch   int64         `yaml:"branch"` // 0 = not affiliated
	Skills   []int64       `yaml:"skills"`
	Schedule []ShiftConfig `yaml:"schedule"`
}

// SalonConfig is the root configuration for salon.yaml.
type SalonConfig struct {
	Branches []BranchConfig  `yaml:"branches"`
	Services []ServiceConfig `yaml:"services"`
	Staff    []StaffConfig   `yaml:"staff"`
}

// LoadSalonConfig loads and validates salon configuration from YAML file.
func LoadSalonConfig(path string) (*SalonConfig, error) {
	if path == "" {
		path = "configs/salon.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read salon config: %w", err)
	}

	var cfg SalonConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse salon config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate salon config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *SalonConfig) Validate() error {
	branches := make(map[int64]bool)
	for i, b := range c.Branches {
		if b.ID <= 0 {
			return fmt.Errorf("branch[%d]: id must be positive, got %d", i, b.ID)
		}
		if branches[b.ID] {
			return fmt.Errorf("branch[%d]: duplicate id %d", i, b.ID)
		}
		branches[b.ID] = true
		if b.Name == "" {
			return fmt.Errorf("branch[%d]: name is required", i)
		}
	}

	if len(c.Services) == 0 {
		return fmt.Errorf("no services defined")
	}
	services := make(map[int64]bool)
	names := make(map[string]bool)
	for i, s := range c.Services {
		if s.ID <= 0 {
			return fmt.Errorf("service[%d]: id must be positive, got %d", i, s.ID)
		}
		if services[s.ID] {
			return fmt.Errorf("service[%d]: duplicate id %d", i, s.ID)
		}
		services[s.ID] = true

		if s.Name == "" {
			return fmt.Errorf("service[%d]: name is required", i)
		}
		if names[s.Name] {
			return fmt.Errorf("service[%d]: duplicate name '%s'", i, s.Name)
		}
		names[s.Name] = true

		if s.DurationMinutes <= 0 {
			return fmt.Errorf("service[%d]: duration_minutes must be positive", i)
		}
		if s.Price < 0 {
			return fmt.Errorf("service[%d]: price cannot be negative", i)
		}
	}

	staff := make(map[int64]bool)
	for i, st := range c.Staff {
		if st.ID <= 0 {
			return fmt.Errorf("staff[%d]: id must be positive, got %d", i, st.ID)
		}
		if staff[st.ID] {
			return fmt.Errorf("staff[%d]: duplicate id %d", i, st.ID)
		}
		staff[st.ID] = true

		if st.Name == "" {
			return fmt.Errorf("staff[%d]: name is required", i)
		}
		if st.Branch != 0 && !branches[st.Branch] {
			return fmt.Errorf("staff[%d]: unknown branch %d", i, st.Branch)
		}
		for j, sk := range st.Skills {
			if !services[sk] {
				return fmt.Errorf("staff[%d].skills[%d]: unknown service %d", i, j, sk)
			}
		}
		if _, err := shiftWindows(st); err != nil {
			return fmt.Errorf("staff[%d].%w", i, err)
		}
	}

	return nil
}

// shiftWindows converts a staff schedule to windows, rejecting overlapping
// shifts on the same day. Adjacent shifts stay separate windows.
func shiftWindows(st StaffConfig) ([]models.Window, error) {
	windows := make([]models.Window, 0, len(st.Schedule))
	for i, sh := range st.Schedule {
		day, err := slots.ParseWeekday(sh.Day)
		if err != nil {
			return nil, fmt.Errorf("schedule[%d].day: %w", i, err)
		}
		start, err := slots.ParseClock(sh.Start)
		if err != nil {
			return nil, fmt.Errorf("schedule[%d].start: invalid format '%s', expected HH:MM", i, sh.Start)
		}
		end, err := slots.ParseClock(sh.End)
		if err != nil {
			return nil, fmt.Errorf("schedule[%d].end: invalid format '%s', expected HH:MM", i, sh.End)
		}
		if end <= start {
			return nil, fmt.Errorf("schedule[%d]: end must be after start", i)
		}
		windows = append(windows, models.Window{ResourceID: st.ID, Weekday: day, Start: start, End: end})
	}

	slices.SortFunc(windows, func(a, b models.Window) int {
		if c := cmp.Compare(a.Weekday, b.Weekday); c != 0 {
			return c
		}
		return cmp.Compare(a.Start, b.Start)
	})
	for i := 1; i < len(windows); i++ {
		prev, cur := windows[i-1], windows[i]
		if prev.Weekday == cur.Weekday && cur.Start < prev.End {
			return nil, fmt.Errorf("schedule: overlapping shifts on %s", cur.Weekday)
		}
	}
	return windows, nil
}

// Catalog converts the configuration into domain records.
func (c *SalonConfig) Catalog() Catalog {
	var out Catalog
	for _, b := range c.Branches {
		out.Branches = append(out.Branches, models.Branch{ID: b.ID, Name: b.Name, Address: b.Address, Contact: b.Contact})
	}
	for _, s := range c.Services {
		out.Services = append(out.Services, models.Service{
			ID:       s.ID,
			Name:     s.Name,
			Duration: s.DurationMinutes,
			Price:    s.Price,
			Category: s.Category,
			IsActive: !s.Inactive,
		})
	}
	out.Skills = make(map[int64][]int64, len(c.Staff))
	for _, st := range c.Staff {
		r := models.Resource{ID: st.ID, Name: st.Name, Email: st.Email}
		if st.Branch != 0 {
			branch := st.Branch
			r.BranchID = &branch
		}
		out.Resources = append(out.Resources, r)
		out.Skills[st.ID] = slices.Clone(st.Skills)

		// Validate already rejected bad schedules.
		windows, _ := shiftWindows(st)
		out.Windows = append(out.Windows, windows...)
	}
	return out
}

// Catalog is the salon configuration as domain records.
type Catalog struct {
	Branches  []models.Branch
	Services  []models.Service
	Resources []models.Resource
	Skills    map[int64][]int64 // resource id -> service ids
	Windows   []models.Window
}
