package geo

import (
	"math"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// DistanceKm returns the haversine distance between two points in kilometres.
func DistanceKm(a, b model.Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// Midpoint returns the great-circle midpoint of a and b.
func Midpoint(a, b model.Point) model.Point {
	lat1, lng1 := toRadians(a.Lat), toRadians(a.Lng)
	lat2 := toRadians(b.Lat)
	dLng := toRadians(b.Lng - a.Lng)
	bx := math.Cos(lat2) * math.Cos(dLng)
	by := math.Cos(lat2) * math.Sin(dLng)
	lat := math.Atan2(math.Sin(lat1)+math.Sin(lat2), math.Sqrt((math.Cos(lat1)+bx)*(math.Cos(lat1)+bx)+by*by))
	lng := lng1 + math.Atan2(by, math.Cos(lat1)+bx)
	return model.Point{Lat: toDegrees(lat), Lng: normalizeLng(toDegrees(lng))}
}

// Bearing returns the initial great-circle bearing from a to b in degrees,
// in [0, 360).
func Bearing(a, b model.Point) float64 {
	lat1, lat2 := toRadians(a.Lat), toRadians(b.Lat)
	dLng := toRadians(b.Lng - a.Lng)
	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	deg := math.Mod(toDegrees(math.Atan2(y, x))+360, 360)
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// Toward moves from a toward b by at most stepKm. It returns b when the
// remaining distance is shorter than the step.
func Toward(a, b model.Point, stepKm float64) model.Point {
	d := DistanceKm(a, b)
	if d <= stepKm || d == 0 {
		return b
	}
	f := stepKm / d
	return model.Point{
		Lat: a.Lat + (b.Lat-a.Lat)*f,
		Lng: normalizeLng(a.Lng + (b.Lng-a.Lng)*f),
	}
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }

func normalizeLng(lng float64) float64 {
	for lng >= 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}
