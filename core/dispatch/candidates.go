package dispatch

import (
	"math"
	"sort"

	"github.com/kilianp07/fleetdispatch/core/cost"
	"github.com/kilianp07/fleetdispatch/core/model"
)

type candidate struct {
	vehicle    model.Vehicle
	distanceKm float64
	score      float64
}

// eligible selects IDLE vehicles able to carry the order.
func (s *Scheduler) eligible(o model.Order) func(model.Vehicle) bool {
	vol := s.cfg.ClassVolumeL[o.CapacityClass]
	return func(v model.Vehicle) bool {
		return v.Status == model.VehicleIdle && v.CanCarry(o.WeightKg, vol)
	}
}

// candidates searches around the pickup with an expanding radius and returns
// the feasible vehicles of the first radius that has any, best score first.
func (s *Scheduler) candidates(o model.Order) []candidate {
	keep := s.eligible(o)
	for _, r := range s.cfg.radii() {
		found := s.fleet.Nearby(o.Pickup, r, keep)
		out := make([]candidate, 0, len(found))
		for _, c := range found {
			score := s.cost.Score(o, c.Vehicle, c.DistanceKm)
			if math.IsInf(score, 1) {
				continue
			}
			out = append(out, candidate{vehicle: c.Vehicle, distanceKm: c.DistanceKm, score: score})
		}
		if len(out) > 0 {
			sort.Slice(out, func(i, j int) bool {
				return cost.Less(out[i].score, out[i].vehicle.ID, out[j].score, out[j].vehicle.ID)
			})
			return out
		}
	}
	return nil
}
