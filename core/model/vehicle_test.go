package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validVehicle() Vehicle {
	return Vehicle{
		ID:       "bike-1",
		Type:     VehicleBike,
		Capacity: Capacity{WeightKg: 50, VolumeL: 120},
		Battery:  85,
		Position: Point{Lat: 1.3521, Lng: 103.8198},
		Status:   VehicleIdle,
	}
}

func TestVehicleValidate(t *testing.T) {
	require.NoError(t, validVehicle().Validate())

	cases := []struct {
		name  string
		mut   func(*Vehicle)
		field string
	}{
		{"missing id", func(v *Vehicle) { v.ID = "" }, "id"},
		{"unknown type", func(v *Vehicle) { v.Type = "TRUCK" }, "type"},
		{"battery over 100", func(v *Vehicle) { v.Battery = 101 }, "battery"},
		{"negative battery", func(v *Vehicle) { v.Battery = -1 }, "battery"},
		{"bad latitude", func(v *Vehicle) { v.Position.Lat = 91 }, "position.lat"},
		{"bad longitude", func(v *Vehicle) { v.Position.Lng = -181 }, "position.lng"},
		{"no capacity", func(v *Vehicle) { v.Capacity.WeightKg = 0 }, "capacity.weightkg"},
		{"bad heading", func(v *Vehicle) { v.Heading = 360 }, "heading"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := validVehicle()
			tc.mut(&v)
			err := v.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestVehicleStatusHelpers(t *testing.T) {
	assert.True(t, VehicleAssigned.Busy())
	assert.True(t, VehicleEnRoute.Busy())
	assert.False(t, VehicleIdle.Busy())
	assert.False(t, VehicleCharging.Busy())
	assert.True(t, VehicleOffline.Valid())
	assert.False(t, VehicleStatus("PARKED").Valid())
}

func TestVehicleCanCarry(t *testing.T) {
	v := validVehicle()
	assert.True(t, v.CanCarry(2, 10))
	assert.False(t, v.CanCarry(51, 10))
	assert.False(t, v.CanCarry(2, 121))
}
