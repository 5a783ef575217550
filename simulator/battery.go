package simulator

import "time"

// Battery models a vehicle battery in percent of its capacity.
type Battery struct {
	Pct             float64
	PctPerKm        float64
	ChargePctPerMin float64
}

// Drive consumes the energy of km travelled and returns the remaining charge.
func (b *Battery) Drive(km float64) float64 {
	if km > 0 {
		b.Pct -= km * b.PctPerKm
	}
	b.clamp()
	return b.Pct
}

// Charge adds dt of charging and returns the new charge.
func (b *Battery) Charge(dt time.Duration) float64 {
	if dt > 0 {
		b.Pct += dt.Minutes() * b.ChargePctPerMin
	}
	b.clamp()
	return b.Pct
}

func (b *Battery) clamp() {
	if b.Pct < 0 {
		b.Pct = 0
	}
	if b.Pct > 100 {
		b.Pct = 100
	}
}
