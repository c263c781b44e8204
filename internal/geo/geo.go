// Package geo implements the geospatial point-set value family (component
// C4): GEOADD, GEOPOS, GEOHASH, GEODIST, GEORADIUS, GEORADIUSBYMEMBER,
// GEODEL/GEOREM, and GEOJSON. Each key owns a set of named points; the
// set is the authoritative store, and a dhconnelly/rtreego spatial index is
// rebuilt over it on every mutation to answer radius queries.
package geo

import (
	"sync"

	"github.com/mmcloughlin/geohash"
	"github.com/samber/lo"

	"github.com/escanordb/escanor/internal/keyspace"
)

// Point is a single named geospatial point, longitude/latitude in degrees.
type Point struct {
	Member string
	Lon    float64
	Lat    float64
}

// DefaultGeohashPrecision is the geohash character count used wherever a
// command (e.g. GEORADIUS) reports a geohash without an explicit
// precision argument.
const DefaultGeohashPrecision = 9

// Geohash returns the standard base-32 geohash string for the point at the
// given precision (number of characters).
func (p Point) Geohash(precision uint) string {
	return geohash.EncodeWithPrecision(p.Lat, p.Lon, precision)
}

// Error carries the exact reply text for a GEO-family command failure.
type Error string

func (e Error) Error() string { return string(e) }

const ErrWrongType Error = "WRONGTYPE"

// ErrMemberNotFound formats the "member not found" reply for a specific
// member name, matching the original server's "ERR member %s not found".
func ErrMemberNotFound(member string) error {
	return Error("ERR member " + member + " not found")
}

// set is one key's collection of points, keyed by member name.
type set struct {
	mu     sync.RWMutex
	points map[string]Point
}

// Store holds every GEO-family point set.
type Store struct {
	dir   *keyspace.Directory
	mu    sync.RWMutex
	sets  map[string]*set
	index *Index
}

// New creates a Store backed by dir, the shared keyspace directory.
func New(dir *keyspace.Directory) *Store {
	return &Store{dir: dir, sets: make(map[string]*set), index: NewIndex()}
}

func (s *Store) getOrCreate(key string) *set {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sets[key]
	if !ok {
		st = &set{points: make(map[string]Point)}
		s.sets[key] = st
	}
	return st
}

func (s *Store) get(key string) (*set, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sets[key]
	return st, ok
}

// Add inserts or replaces a member's point under key, claiming key for the
// GEO family. The spatial index is rebuilt for key after the mutation.
func (s *Store) Add(key string, p Point) error {
	if ok, owner := s.dir.Claim(key, keyspace.Geo); !ok {
		return wrongType(owner)
	}
	st := s.getOrCreate(key)
	st.mu.Lock()
	st.points[p.Member] = p
	st.mu.Unlock()
	s.reindex(key)
	return nil
}

// Pos returns the point for member under key.
func (s *Store) Pos(key, member string) (Point, bool) {
	st, ok := s.get(key)
	if !ok {
		return Point{}, false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	p, ok := st.points[member]
	return p, ok
}

// Members returns every point currently stored under key.
func (s *Store) Members(key string) []Point {
	st, ok := s.get(key)
	if !ok {
		return nil
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return lo.Values(st.points)
}

// RemoveMember removes a single member from key's set. If the set becomes
// empty, key is dropped entirely — from the point set, the spatial index,
// and the keyspace directory — rather than left behind as an empty,
// still-claimed key. Otherwise the spatial index is rebuilt. It returns
// whether the member existed.
func (s *Store) RemoveMember(key, member string) bool {
	st, ok := s.get(key)
	if !ok {
		return false
	}
	st.mu.Lock()
	_, existed := st.points[member]
	delete(st.points, member)
	empty := len(st.points) == 0
	st.mu.Unlock()

	if !existed {
		return false
	}
	if empty {
		s.Del(key)
	} else {
		s.reindex(key)
	}
	return true
}

// Del removes the entire point set for key.
func (s *Store) Del(key string) bool {
	s.mu.Lock()
	_, existed := s.sets[key]
	delete(s.sets, key)
	s.mu.Unlock()
	if existed {
		s.dir.Release(key)
		s.index.Drop(key)
	}
	return existed
}

// Size returns the number of GEO-family keys.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sets)
}

// Clear removes every GEO-family point set and returns the count removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	n := len(s.sets)
	s.sets = make(map[string]*set)
	s.mu.Unlock()
	s.index.Clear()
	return n
}

func (s *Store) reindex(key string) {
	st, ok := s.get(key)
	if !ok {
		s.index.Drop(key)
		return
	}
	st.mu.RLock()
	points := lo.Values(st.points)
	st.mu.RUnlock()
	s.index.Rebuild(key, points)
}

// Index returns the spatial index backing GEORADIUS queries.
func (s *Store) Index() *Index {
	return s.index
}

func wrongType(owner keyspace.Family) error {
	if owner == keyspace.None {
		return nil
	}
	return ErrWrongType
}
