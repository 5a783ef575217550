package geo

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetdispatch/core/model"
)

var depot = model.Point{Lat: 1.3521, Lng: 103.8198}

func TestDistanceKm(t *testing.T) {
	assert.Equal(t, 0.0, DistanceKm(depot, depot))
	d := DistanceKm(depot, model.Point{Lat: 1.3048, Lng: 103.8318})
	assert.InDelta(t, 5.43, d, 0.01)
	// one degree of longitude on the equator
	assert.InDelta(t, 111.19, DistanceKm(model.Point{}, model.Point{Lng: 1}), 0.01)
	assert.InDelta(t, DistanceKm(depot, model.Point{Lat: 2, Lng: 104}), DistanceKm(model.Point{Lat: 2, Lng: 104}, depot), 1e-9)
}

func TestMidpoint(t *testing.T) {
	a := model.Point{Lat: 0, Lng: 0}
	b := model.Point{Lat: 0, Lng: 10}
	m := Midpoint(a, b)
	assert.InDelta(t, 0, m.Lat, 1e-9)
	assert.InDelta(t, 5, m.Lng, 1e-9)
	assert.InDelta(t, DistanceKm(a, m), DistanceKm(m, b), 1e-6)
}

func TestBearing(t *testing.T) {
	assert.InDelta(t, 90, Bearing(model.Point{}, model.Point{Lng: 1}), 1e-9)
	assert.InDelta(t, 0, Bearing(model.Point{}, model.Point{Lat: 1}), 1e-9)
	assert.InDelta(t, 270, Bearing(model.Point{}, model.Point{Lng: -1}), 1e-9)
}

func TestToward(t *testing.T) {
	target := model.Point{Lat: 1.3048, Lng: 103.8318}
	p := Toward(depot, target, 1)
	assert.InDelta(t, 1, DistanceKm(depot, p), 0.01)
	assert.InDelta(t, DistanceKm(depot, target)-1, DistanceKm(p, target), 0.01)
	assert.Equal(t, target, Toward(depot, target, 100))
}

func TestIndexUpsertQueryRemove(t *testing.T) {
	ix := NewIndex(0)
	require.NoError(t, ix.Upsert("near", model.Point{Lat: 1.3530, Lng: 103.8200}))
	require.NoError(t, ix.Upsert("mid", model.Point{Lat: 1.3048, Lng: 103.8318}))
	require.NoError(t, ix.Upsert("far", model.Point{Lat: 1.45, Lng: 104.0}))

	hits := ix.Query(depot, 10, nil)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].ID)
	assert.Equal(t, "mid", hits[1].ID)

	assert.Empty(t, ix.Query(depot, 0.01, nil))

	// upsert is idempotent and moves points across cells
	require.NoError(t, ix.Upsert("far", model.Point{Lat: 1.3525, Lng: 103.8199}))
	require.NoError(t, ix.Upsert("far", model.Point{Lat: 1.3525, Lng: 103.8199}))
	assert.Equal(t, 3, ix.Len())
	hits = ix.Query(depot, 1, nil)
	require.Len(t, hits, 2)
	assert.Equal(t, "far", hits[0].ID)

	ix.Remove("far")
	ix.Remove("unknown")
	assert.Equal(t, 2, ix.Len())
	_, ok := ix.Position("far")
	assert.False(t, ok)
}

func TestIndexTieBreakByID(t *testing.T) {
	ix := NewIndex(0)
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, ix.Upsert(id, depot))
	}
	hits := ix.Query(depot, 1, nil)
	require.Len(t, hits, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{hits[0].ID, hits[1].ID, hits[2].ID})
}

func TestIndexFilter(t *testing.T) {
	ix := NewIndex(0)
	require.NoError(t, ix.Upsert("bike-1", depot))
	require.NoError(t, ix.Upsert("drone-1", depot))
	hits := ix.Query(depot, 1, func(id string) bool { return id[:5] == "drone" })
	require.Len(t, hits, 1)
	assert.Equal(t, "drone-1", hits[0].ID)
}

func TestIndexRejectsInvalidPosition(t *testing.T) {
	ix := NewIndex(0)
	err := ix.Upsert("v", model.Point{Lat: 95})
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Nil(t, ix.Query(model.Point{Lat: 100}, 5, nil))
}

func TestIndexAntimeridian(t *testing.T) {
	ix := NewIndex(0)
	require.NoError(t, ix.Upsert("east", model.Point{Lat: 0, Lng: 179.99}))
	require.NoError(t, ix.Upsert("west", model.Point{Lat: 0, Lng: -179.99}))
	hits := ix.Query(model.Point{Lat: 0, Lng: 180}, 5, nil)
	assert.Len(t, hits, 2)
}

func TestIndexNearPole(t *testing.T) {
	ix := NewIndex(1)
	require.NoError(t, ix.Upsert("a", model.Point{Lat: 89.9, Lng: 0}))
	require.NoError(t, ix.Upsert("b", model.Point{Lat: 89.9, Lng: 180}))
	hits := ix.Query(model.Point{Lat: 90, Lng: 0}, 20, nil)
	assert.Len(t, hits, 2)
}

// The grid answer must match a brute-force scan.
func TestIndexMatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ix := NewIndex(0.02)
	pts := map[string]model.Point{}
	for i := 0; i < 2000; i++ {
		id := fmt.Sprintf("v%04d", i)
		p := model.Point{Lat: 1.2 + rng.Float64()*0.3, Lng: 103.6 + rng.Float64()*0.4}
		pts[id] = p
		require.NoError(t, ix.Upsert(id, p))
	}
	for q := 0; q < 50; q++ {
		center := model.Point{Lat: 1.2 + rng.Float64()*0.3, Lng: 103.6 + rng.Float64()*0.4}
		radius := rng.Float64() * 8
		var want []string
		for id, p := range pts {
			if DistanceKm(center, p) <= radius {
				want = append(want, id)
			}
		}
		sort.Strings(want)
		var got []string
		for _, h := range ix.Query(center, radius, nil) {
			got = append(got, h.ID)
		}
		sort.Strings(got)
		assert.Equal(t, want, got)
	}
}
