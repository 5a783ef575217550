package geo

import (
	"math"
	"sort"
	"sync"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// kmPerDegreeLat is the length of one degree of latitude.
const kmPerDegreeLat = 111.32

// DefaultCellDegrees sizes grid cells at roughly 5.5 km.
const DefaultCellDegrees = 0.05

// Hit is one result of a radius query.
type Hit struct {
	ID         string
	Position   model.Point
	DistanceKm float64
}

// Filter narrows a query before distances are computed. Returning false skips the id.
type Filter func(id string) bool

type cellKey struct {
	row, col int
}

type entry struct {
	pos  model.Point
	cell cellKey
}

// Index is a grid bucket spatial index over vehicle positions. Queries only
// visit the cells overlapping the bounding box of the search circle.
// It is safe for concurrent use; readers may observe a position that is
// about to be replaced by a concurrent Upsert.
type Index struct {
	mu      sync.RWMutex
	cellDeg float64
	cols    int
	points  map[string]entry
	cells   map[cellKey]map[string]struct{}
}

// NewIndex returns an empty index with cells of cellDeg degrees. Non-positive
// sizes fall back to DefaultCellDegrees.
func NewIndex(cellDeg float64) *Index {
	if cellDeg <= 0 || cellDeg > 90 {
		cellDeg = DefaultCellDegrees
	}
	// snap the cell size so columns tile the full circle exactly
	cols := int(math.Ceil(360/cellDeg - 1e-9))
	return &Index{
		cellDeg: 360 / float64(cols),
		cols:    cols,
		points:  make(map[string]entry),
		cells:   make(map[cellKey]map[string]struct{}),
	}
}

func (ix *Index) row(lat float64) int {
	return int(math.Floor((lat + 90) / ix.cellDeg))
}

func (ix *Index) col(lng float64) int {
	c := int(math.Floor((normalizeLng(lng) + 180) / ix.cellDeg))
	return ((c % ix.cols) + ix.cols) % ix.cols
}

func (ix *Index) cellOf(p model.Point) cellKey {
	return cellKey{row: ix.row(p.Lat), col: ix.col(p.Lng)}
}

// Upsert inserts id at p or moves it there. Repeating the call is a no-op.
func (ix *Index) Upsert(id string, p model.Point) error {
	if !p.Valid() {
		return &model.ValidationError{Field: "position", Reason: "is outside WGS84 bounds"}
	}
	key := ix.cellOf(p)
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if old, ok := ix.points[id]; ok && old.cell != key {
		ix.removeFromCell(id, old.cell)
	}
	bucket, ok := ix.cells[key]
	if !ok {
		bucket = make(map[string]struct{})
		ix.cells[key] = bucket
	}
	bucket[id] = struct{}{}
	ix.points[id] = entry{pos: p, cell: key}
	return nil
}

// Remove deletes id. Unknown ids are ignored.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	e, ok := ix.points[id]
	if !ok {
		return
	}
	ix.removeFromCell(id, e.cell)
	delete(ix.points, id)
}

func (ix *Index) removeFromCell(id string, key cellKey) {
	bucket := ix.cells[key]
	delete(bucket, id)
	if len(bucket) == 0 {
		delete(ix.cells, key)
	}
}

// Position returns the indexed position of id.
func (ix *Index) Position(id string) (model.Point, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.points[id]
	return e.pos, ok
}

// Len returns the number of indexed points.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.points)
}

// Query returns the points within radiusKm of center ordered by ascending
// distance, ties broken by id. filter may be nil.
func (ix *Index) Query(center model.Point, radiusKm float64, filter Filter) []Hit {
	if radiusKm < 0 || !center.Valid() {
		return nil
	}
	dLat := radiusKm / kmPerDegreeLat
	minRow := ix.row(math.Max(-90, center.Lat-dLat))
	maxRow := ix.row(math.Min(90, center.Lat+dLat))

	ix.mu.RLock()
	var hits []Hit
	visit := func(key cellKey) {
		for id := range ix.cells[key] {
			if filter != nil && !filter(id) {
				continue
			}
			pos := ix.points[id].pos
			d := DistanceKm(center, pos)
			if d <= radiusKm {
				hits = append(hits, Hit{ID: id, Position: pos, DistanceKm: d})
			}
		}
	}
	for _, col := range ix.columns(center, radiusKm) {
		for row := minRow; row <= maxRow; row++ {
			visit(cellKey{row: row, col: col})
		}
	}
	ix.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].DistanceKm != hits[j].DistanceKm {
			return hits[i].DistanceKm < hits[j].DistanceKm
		}
		return hits[i].ID < hits[j].ID
	})
	return hits
}

// columns lists the grid columns overlapping the circle, wrapping at the
// antimeridian. Near the poles every column is scanned.
func (ix *Index) columns(center model.Point, radiusKm float64) []int {
	dLat := radiusKm / kmPerDegreeLat
	maxAbsLat := math.Min(90, math.Abs(center.Lat)+dLat)
	cosLat := math.Cos(toRadians(maxAbsLat))
	all := func() []int {
		out := make([]int, ix.cols)
		for i := range out {
			out[i] = i
		}
		return out
	}
	if cosLat < 1e-6 {
		return all()
	}
	dLng := radiusKm / (kmPerDegreeLat * cosLat)
	if dLng >= 180 {
		return all()
	}
	start := int(math.Floor((center.Lng - dLng + 180) / ix.cellDeg))
	end := int(math.Floor((center.Lng + dLng + 180) / ix.cellDeg))
	if end-start+1 >= ix.cols {
		return all()
	}
	out := make([]int, 0, end-start+1)
	for c := start; c <= end; c++ {
		out = append(out, ((c%ix.cols)+ix.cols)%ix.cols)
	}
	return out
}
