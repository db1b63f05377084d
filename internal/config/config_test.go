package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_SALON_KEY", "secret")
	path := writeFile(t, dir, "config.yaml", `
server:
  api_keys: ["${TEST_SALON_KEY}", "${TEST_SALON_UNSET}"]
database:
  path: `+filepath.Join(dir, "db", "salon.db")+`
booking:
  max_advance_days: 30
  cache_ttl_seconds: 60
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"secret"}, cfg.Server.APIKeys)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 15, cfg.Booking.GranularityMinutes)
	assert.Equal(t, 15, cfg.Booking.MinBlockMinutes)
	assert.Equal(t, 30, cfg.Booking.MaxAdvanceDays)
	assert.Equal(t, 4, cfg.Booking.ListWorkers)
	assert.Equal(t, 10*time.Second, cfg.LockTTL())
	assert.Equal(t, time.Minute, cfg.CacheTTL())
	assert.Equal(t, "configs/salon.yaml", cfg.Salon.Path)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	assert.DirExists(t, filepath.Join(dir, "db"))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeFile(t, t.TempDir(), "bad.yaml", "server: [")
	_, err = Load(path)
	assert.Error(t, err)
}

const validSalon = `
branches:
  - {id: 1, name: Downtown}
services:
  - {id: 1, name: Haircut, duration_minutes: 30, price: 20}
  - {id: 2, name: Colouring, duration_minutes: 90, price: 80, inactive: true}
staff:
  - id: 5
    name: Anna
    branch: 1
    skills: [1, 2]
    schedule:
      - {day: Tuesday, start: "14:00", end: "18:00"}
      - {day: Tuesday, start: "09:00", end: "14:00"}
      - {day: "1", start: "09:00", end: "17:00"}
  - id: 6
    name: Bella
    skills: [1]
`

func TestLoadSalonConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "salon.yaml", validSalon)

	cfg, err := LoadSalonConfig(path)
	require.NoError(t, err)

	cat := cfg.Catalog()
	require.Len(t, cat.Services, 2)
	assert.True(t, cat.Services[0].IsActive)
	assert.False(t, cat.Services[1].IsActive)

	require.Len(t, cat.Resources, 2)
	require.NotNil(t, cat.Resources[0].BranchID)
	assert.Equal(t, int64(1), *cat.Resources[0].BranchID)
	assert.Nil(t, cat.Resources[1].BranchID)
	assert.Equal(t, []int64{1, 2}, cat.Skills[5])

	// Adjacent Tuesday shifts are kept apart and ordered.
	require.Len(t, cat.Windows, 3)
	assert.Equal(t, time.Monday, cat.Windows[0].Weekday)
	assert.Equal(t, 9*60, cat.Windows[1].Start)
	assert.Equal(t, 14*60, cat.Windows[1].End)
	assert.Equal(t, 14*60, cat.Windows[2].Start)
}

func TestSalonConfig_Validate(t *testing.T) {
	service := ServiceConfig{ID: 1, Name: "Haircut", DurationMinutes: 30}
	tests := []struct {
		name    string
		cfg     SalonConfig
		wantErr string
	}{
		{"no services", SalonConfig{}, "no services defined"},
		{"duplicate service", SalonConfig{Services: []ServiceConfig{service, service}}, "duplicate id 1"},
		{"zero duration", SalonConfig{Services: []ServiceConfig{{ID: 1, Name: "x"}}}, "duration_minutes must be positive"},
		{"unknown skill", SalonConfig{
			Services: []ServiceConfig{service},
			Staff:    []StaffConfig{{ID: 1, Name: "A", Skills: []int64{9}}},
		}, "unknown service 9"},
		{"unknown branch", SalonConfig{
			Services: []ServiceConfig{service},
			Staff:    []StaffConfig{{ID: 1, Name: "A", Branch: 3}},
		}, "unknown branch 3"},
		{"bad day", SalonConfig{
			Services: []ServiceConfig{service},
			Staff:    []StaffConfig{{ID: 1, Name: "A", Schedule: []ShiftConfig{{Day: "Someday", Start: "09:00", End: "10:00"}}}},
		}, "staff[0].schedule[0].day"},
		{"end before start", SalonConfig{
			Services: []ServiceConfig{service},
			Staff:    []StaffConfig{{ID: 1, Name: "A", Schedule: []ShiftConfig{{Day: "Mon", Start: "10:00", End: "09:00"}}}},
		}, "end must be after start"},
		{"bad clock", SalonConfig{
			Services: []ServiceConfig{service},
			Staff:    []StaffConfig{{ID: 1, Name: "A", Schedule: []ShiftConfig{{Day: "Mon", Start: "9am", End: "10:00"}}}},
		}, "expected HH:MM"},
		{"overlapping shifts", SalonConfig{
			Services: []ServiceConfig{service},
			Staff: []StaffConfig{{ID: 1, Name: "A", Schedule: []ShiftConfig{
				{Day: "Mon", Start: "09:00", End: "13:00"},
				{Day: "Monday", Start: "12:00", End: "15:00"},
			}}},
		}, "overlapping shifts on Monday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWatchSalon_ReloadsOnChange(t *testing.T) {
	path := writeFile(t, t.TempDir(), "salon.yaml", validSalon)

	var mu sync.Mutex
	var seen []int
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := WatchSalon(ctx, path, 10*time.Millisecond, nil, func(cfg *SalonConfig) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, len(cfg.Staff))
	})
	require.NoError(t, err)

	updated := validSalon + `  - {id: 7, name: Cora, skills: [1]}
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2 && seen[1] == 3
	}, time.Second, 10*time.Millisecond)
}

func TestWatchSalon_InvalidInitial(t *testing.T) {
	path := writeFile(t, t.TempDir(), "salon.yaml", "services: []")
	err := WatchSalon(context.Background(), path, time.Second, nil, nil)
	assert.Error(t, err)
}
