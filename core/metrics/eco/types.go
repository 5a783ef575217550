package eco

import "time"

// Record aggregates delivery emissions for a vehicle and day.
type Record struct {
	VehicleID  string    `json:"vehicle_id"`
	Date       time.Time `json:"date"`
	Deliveries int       `json:"deliveries"`
	DistanceKm float64   `json:"distance_km"`
	EnergyKWh  float64   `json:"energy_kwh"`
	CO2eGrams  float64   `json:"co2e_grams"`
}

// CO2PerDelivery returns the average grams of CO2e per delivery.
func (r Record) CO2PerDelivery() float64 {
	if r.Deliveries == 0 {
		return 0
	}
	return r.CO2eGrams / float64(r.Deliveries)
}

// EnergyPerKm returns the energy intensity in kWh per km.
func (r Record) EnergyPerKm() float64 {
	if r.DistanceKm == 0 {
		return 0
	}
	return r.EnergyKWh / r.DistanceKm
}

// Sum adds the counters of o to r. Identity fields are kept.
func (r Record) Sum(o Record) Record {
	r.Deliveries += o.Deliveries
	r.DistanceKm += o.DistanceKm
	r.EnergyKWh += o.EnergyKWh
	r.CO2eGrams += o.CO2eGrams
	return r
}

// Total folds records into a single fleet-wide record.
func Total(recs []Record) Record {
	var t Record
	for _, r := range recs {
		t = t.Sum(r)
	}
	return t
}
