package fleet

import (
	"fmt"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// Config holds the registry thresholds and the startup fleet.
type Config struct {
	// CriticalBattery triggers a CriticalBattery event for EN_ROUTE vehicles.
	CriticalBattery float64 `json:"critical_battery"`
	// ChargingBattery: releases below it send the vehicle to CHARGING.
	ChargingBattery float64 `json:"charging_battery"`
	// ChargedBattery: a CHARGING vehicle reaching it becomes IDLE.
	ChargedBattery float64 `json:"charged_battery"`
	// GeoCellDegrees sizes the spatial index grid.
	GeoCellDegrees float64 `json:"geo_cell_degrees"`
	// SeedDemo registers the demo fleet at startup.
	SeedDemo bool            `json:"seed_demo"`
	Seed     []model.Vehicle `json:"seed"`
}

// SetDefaults applies the reference thresholds.
func (c *Config) SetDefaults() {
	if c.CriticalBattery <= 0 {
		c.CriticalBattery = 15
	}
	if c.ChargingBattery <= 0 {
		c.ChargingBattery = 30
	}
	if c.ChargedBattery <= 0 {
		c.ChargedBattery = 80
	}
}

// Validate checks the thresholds are ordered.
func (c Config) Validate() error {
	if !(c.CriticalBattery <= c.ChargingBattery && c.ChargingBattery <= c.ChargedBattery && c.ChargedBattery <= 100) {
		return fmt.Errorf("fleet: thresholds must satisfy critical <= charging <= charged <= 100")
	}
	return nil
}
