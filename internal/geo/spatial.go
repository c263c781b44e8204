// Spatial indexing for GEORADIUS / GEORADIUSBYMEMBER queries. Each key owns
// its own dhconnelly/rtreego R-tree, rebuilt from scratch on every mutation
// of that key's point set. This trades incremental-update performance for
// simplicity: the per-key point set in Store is always the source of truth
// and the tree is a derived cache.
package geo

import (
	"math"
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"
)

const (
	earthRadiusMeters = 6371000.0
	degreesPerMeter   = 1.0 / (earthRadiusMeters * (3.141592653589793 / 180.0))
)

// entry adapts a Point to rtreego.Spatial, which every indexed object must
// implement.
type entry struct {
	point Point
	rect  rtreego.Rect
}

func (e *entry) Bounds() rtreego.Rect { return e.rect }

func newEntry(p Point) *entry {
	location := rtreego.Point{p.Lon, p.Lat}
	rect, _ := rtreego.NewRect(location, []float64{1e-9, 1e-9})
	return &entry{point: p, rect: rect}
}

// Index holds one R-tree per key.
type Index struct {
	mu    sync.RWMutex
	trees map[string]*rtreego.Rtree
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{trees: make(map[string]*rtreego.Rtree)}
}

// Rebuild replaces key's tree with a fresh one built from points.
func (idx *Index) Rebuild(key string, points []Point) {
	tree := rtreego.NewTree(2, 2, 8)
	for _, p := range points {
		tree.Insert(newEntry(p))
	}
	idx.mu.Lock()
	idx.trees[key] = tree
	idx.mu.Unlock()
}

// Drop removes key's tree entirely.
func (idx *Index) Drop(key string) {
	idx.mu.Lock()
	delete(idx.trees, key)
	idx.mu.Unlock()
}

// Clear removes every indexed key.
func (idx *Index) Clear() {
	idx.mu.Lock()
	idx.trees = make(map[string]*rtreego.Rtree)
	idx.mu.Unlock()
}

// Neighbor pairs a point with its great-circle distance from the query
// center, in meters.
type Neighbor struct {
	Point        Point
	DistanceMeters float64
}

// Radius returns every point under key within radiusMeters of (lon, lat),
// sorted nearest-first. The caller re-sorts by the original server's
// documented (and preserved) distance-as-string ordering when ASC/DESC is
// requested; Radius itself always returns true-distance order.
func (idx *Index) Radius(key string, lon, lat, radiusMeters float64) []Neighbor {
	idx.mu.RLock()
	tree, ok := idx.trees[key]
	idx.mu.RUnlock()
	if !ok {
		return nil
	}

	// Longitude degrees shrink in real-world width by cos(lat) moving away
	// from the equator, so the same meter radius needs more longitude
	// degrees than latitude degrees to bound it; latitude has no such
	// correction.
	latDelta := radiusMeters * degreesPerMeter
	lonDelta := latDelta / math.Cos(lat*math.Pi/180.0)
	bbox, err := rtreego.NewRect(
		rtreego.Point{lon - lonDelta, lat - latDelta},
		[]float64{2 * lonDelta, 2 * latDelta},
	)
	if err != nil {
		return nil
	}

	var out []Neighbor
	for _, spatial := range tree.SearchIntersect(bbox) {
		e := spatial.(*entry)
		d := HaversineMeters(lat, lon, e.point.Lat, e.point.Lon)
		if d <= radiusMeters {
			out = append(out, Neighbor{Point: e.point, DistanceMeters: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceMeters < out[j].DistanceMeters })
	return out
}
