package simulator

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/kilianp07/fleetdispatch/config"
	"github.com/kilianp07/fleetdispatch/core/model"
)

const kmPerDegLat = 111.32

// GenerateFleet creates n vehicles spread around the configured center.
// Ids are sim-bike-NNN and sim-drone-NNN; the share of drones follows
// DronePct.
func GenerateFleet(cfg config.SimulatorConfig, rng *rand.Rand) []model.Vehicle {
	if cfg.Vehicles <= 0 {
		return nil
	}
	vs := make([]model.Vehicle, 0, cfg.Vehicles)
	bikes, drones := 0, 0
	for i := 0; i < cfg.Vehicles; i++ {
		v := model.Vehicle{
			Battery:  60 + rng.Float64()*40,
			Position: randomPoint(cfg.Center, cfg.SpreadKm, rng),
			Heading:  math.Floor(rng.Float64() * 360),
			Status:   model.VehicleIdle,
		}
		if rng.Float64() < cfg.DronePct {
			drones++
			v.ID = fmt.Sprintf("sim-drone-%03d", drones)
			v.Type = model.VehicleDrone
			v.Capacity = model.Capacity{WeightKg: 5, VolumeL: 10}
		} else {
			bikes++
			v.ID = fmt.Sprintf("sim-bike-%03d", bikes)
			v.Type = model.VehicleBike
			v.Capacity = model.Capacity{WeightKg: 50, VolumeL: 120}
		}
		v.Serial = fmt.Sprintf("SIM-%04d", i+1)
		vs = append(vs, v)
	}
	return vs
}

// randomPoint draws a point uniformly inside a disc of radiusKm.
func randomPoint(center model.Point, radiusKm float64, rng *rand.Rand) model.Point {
	r := radiusKm * math.Sqrt(rng.Float64())
	theta := rng.Float64() * 2 * math.Pi
	dLat := r * math.Cos(theta) / kmPerDegLat
	dLng := r * math.Sin(theta) / (kmPerDegLat * math.Cos(center.Lat*math.Pi/180))
	return model.Point{Lat: center.Lat + dLat, Lng: center.Lng + dLng}
}
