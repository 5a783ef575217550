package cost

import (
	"github.com/kilianp07/fleetdispatch/core/geo"
	"github.com/kilianp07/fleetdispatch/core/model"
)

func modeOf(vt model.VehicleType) model.DeliveryMode {
	if vt == model.VehicleDrone {
		return model.ModeDrone
	}
	return model.ModeBike
}

func (m *Model) leg(kind model.LegKind, vt model.VehicleType, from, to model.Point) model.RouteLeg {
	d := geo.DistanceKm(from, to)
	return model.RouteLeg{
		Kind:       kind,
		Mode:       modeOf(vt),
		From:       from,
		To:         to,
		DistanceKm: d,
		Cost:       m.LegCost(vt, d),
	}
}

// deliveryLegs splits a HYBRID trip at the midpoint into a BIKE and a DRONE
// leg. Other modes are one leg served by vt.
func (m *Model) deliveryLegs(mode model.DeliveryMode, vt model.VehicleType, pickup, dropoff model.Point) []model.RouteLeg {
	if mode == model.ModeHybrid {
		mid := geo.Midpoint(pickup, dropoff)
		return []model.RouteLeg{
			m.leg(model.LegDelivery, model.VehicleBike, pickup, mid),
			m.leg(model.LegDelivery, model.VehicleDrone, mid, dropoff),
		}
	}
	return []model.RouteLeg{m.leg(model.LegDelivery, vt, pickup, dropoff)}
}

// PlanRoute quotes the delivery between pickup and dropoff without a vehicle.
func (m *Model) PlanRoute(pickup, dropoff model.Point, preferred model.DeliveryMode) model.Route {
	mode := m.SelectMode(geo.DistanceKm(pickup, dropoff), preferred)
	vt, ok := mode.VehicleType()
	if !ok {
		vt = model.VehicleBike
	}
	r := model.Route{Mode: mode}
	for _, l := range m.deliveryLegs(mode, vt, pickup, dropoff) {
		r.Append(l)
	}
	return r
}

// AssignmentRoute builds the legs for v serving o: the approach to the pickup
// followed by the delivery. When the policy mode does not match the vehicle
// type the route is served in the vehicle's own mode.
func (m *Model) AssignmentRoute(o model.Order, v model.Vehicle) model.Route {
	planned := m.SelectMode(geo.DistanceKm(o.Pickup, o.Dropoff), o.PreferredMode)
	mode := planned
	if vt, ok := planned.VehicleType(); ok && vt != v.Type {
		mode = modeOf(v.Type)
	}
	r := model.Route{Mode: mode}
	r.Append(m.leg(model.LegApproach, v.Type, v.Position, o.Pickup))
	for _, l := range m.deliveryLegs(mode, v.Type, o.Pickup, o.Dropoff) {
		r.Append(l)
	}
	return r
}
