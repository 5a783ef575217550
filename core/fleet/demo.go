package fleet

import "github.com/kilianp07/fleetdispatch/core/model"

var demoDepot = model.Point{Lat: 1.3521, Lng: 103.8198}

// DemoFleet returns the demo assets parked at the Singapore depot.
func DemoFleet() []model.Vehicle {
	bikeCap := model.Capacity{WeightKg: 50, VolumeL: 120}
	droneCap := model.Capacity{WeightKg: 5, VolumeL: 10}
	return []model.Vehicle{
		{ID: "bike-1", Serial: "BIKE-001", Type: model.VehicleBike, Capacity: bikeCap, Battery: 85, Position: demoDepot, Status: model.VehicleIdle},
		{ID: "bike-2", Serial: "BIKE-002", Type: model.VehicleBike, Capacity: bikeCap, Battery: 92, Position: demoDepot, Status: model.VehicleIdle},
		{ID: "drone-1", Serial: "DRONE-001", Type: model.VehicleDrone, Capacity: droneCap, Battery: 78, Position: demoDepot, Status: model.VehicleIdle},
		{ID: "drone-2", Serial: "DRONE-002", Type: model.VehicleDrone, Capacity: droneCap, Battery: 45, Position: demoDepot, Status: model.VehicleCharging},
	}
}
