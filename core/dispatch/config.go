package dispatch

import (
	"fmt"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// Planner names.
const (
	PlannerGreedy = "greedy"
	PlannerLP     = "lp"
)

// Config defines dispatch-related settings.
type Config struct {
	// InitialRadiusKm is the first search radius around a pickup point.
	InitialRadiusKm float64 `json:"initial_radius_km"`
	// MaxExpansions bounds how many times the radius is doubled.
	MaxExpansions int `json:"max_expansions"`
	// MaxAssignRetries bounds re-searches after losing a TryAssign race.
	MaxAssignRetries         int `json:"max_assign_retries"`
	RetryIntervalSeconds     int `json:"retry_interval_seconds"`
	AssignmentTimeoutSeconds int `json:"assignment_timeout_seconds"`
	// AlertAfterAttempts emits DispatchFailedRetryExceeded once an order has
	// been tried that many times. Zero disables the alert.
	AlertAfterAttempts int `json:"alert_after_attempts"`
	// Planner selects how RetryPending matches orders: greedy or lp.
	Planner    string `json:"planner"`
	LPMaxPairs int    `json:"lp_max_pairs"`
	// DeadlineMinutes maps priorities to the deadline offset from creation.
	DeadlineMinutes map[model.Priority]int `json:"deadline_minutes"`
	// ClassVolumeL maps capacity classes to the volume a vehicle must offer.
	ClassVolumeL map[model.CapacityClass]float64 `json:"class_volume_l"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.InitialRadiusKm <= 0 {
		c.InitialRadiusKm = 5
	}
	if c.MaxExpansions <= 0 {
		c.MaxExpansions = 3
	}
	if c.MaxAssignRetries <= 0 {
		c.MaxAssignRetries = 3
	}
	if c.RetryIntervalSeconds <= 0 {
		c.RetryIntervalSeconds = 30
	}
	if c.AssignmentTimeoutSeconds <= 0 {
		c.AssignmentTimeoutSeconds = 300
	}
	if c.AlertAfterAttempts == 0 {
		c.AlertAfterAttempts = 5
	}
	if c.Planner == "" {
		c.Planner = PlannerGreedy
	}
	if c.LPMaxPairs <= 0 {
		c.LPMaxPairs = 200
	}
	deadlines := map[model.Priority]int{
		model.PriorityUrgent: 60,
		model.PriorityHigh:   120,
		model.PriorityMedium: 240,
		model.PriorityLow:    1440,
	}
	if c.DeadlineMinutes == nil {
		c.DeadlineMinutes = map[model.Priority]int{}
	}
	for p, m := range deadlines {
		if c.DeadlineMinutes[p] <= 0 {
			c.DeadlineMinutes[p] = m
		}
	}
	volumes := map[model.CapacityClass]float64{
		model.CapacitySmall:  10,
		model.CapacityMedium: 40,
		model.CapacityLarge:  120,
	}
	if c.ClassVolumeL == nil {
		c.ClassVolumeL = map[model.CapacityClass]float64{}
	}
	for k, v := range volumes {
		if c.ClassVolumeL[k] <= 0 {
			c.ClassVolumeL[k] = v
		}
	}
}

// Validate checks the planner name.
func (c Config) Validate() error {
	switch c.Planner {
	case "", PlannerGreedy, PlannerLP:
	default:
		return fmt.Errorf("dispatch: unknown planner %q", c.Planner)
	}
	if c.AlertAfterAttempts < 0 {
		return fmt.Errorf("dispatch: alert_after_attempts must be >= 0")
	}
	return nil
}

// RetryInterval returns the PENDING retry period.
func (c Config) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalSeconds) * time.Second
}

// AssignmentTimeout returns how long an ASSIGNED order may wait for pickup.
func (c Config) AssignmentTimeout() time.Duration {
	return time.Duration(c.AssignmentTimeoutSeconds) * time.Second
}

// radii returns the search radii: the initial radius doubled MaxExpansions times.
func (c Config) radii() []float64 {
	out := make([]float64, 0, c.MaxExpansions+1)
	r := c.InitialRadiusKm
	for i := 0; i <= c.MaxExpansions; i++ {
		out = append(out, r)
		r *= 2
	}
	return out
}
