package handlers

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/escanordb/escanor/internal/engine"
	"github.com/escanordb/escanor/internal/geo"
)

// GeoHandlers adapts internal/geo onto Reply-returning methods.
type GeoHandlers struct {
	db *engine.Database
}

// NewGeoHandlers builds handlers backed by db.
func NewGeoHandlers(db *engine.Database) *GeoHandlers {
	return &GeoHandlers{db: db}
}

// Add implements GEOADD key member lon lat.
func (h *GeoHandlers) Add(key, member string, lon, lat float64) Reply {
	if err := h.db.Geo.Add(key, geo.Point{Member: member, Lon: lon, Lat: lat}); err != nil {
		return ErrFrom(err)
	}
	h.db.CountMutation("geo", "GEOADD", 1)
	return Simple("OK")
}

// Pos implements GEOPOS key member: an array of [lat, lon] bulk strings, or
// an empty array if the member is missing.
func (h *GeoHandlers) Pos(key, member string) Reply {
	p, ok := h.db.Geo.Pos(key, member)
	if !ok {
		return ArrayOf()
	}
	return ArrayOf(
		BulkString(strconv.FormatFloat(p.Lat, 'f', -1, 64)),
		BulkString(strconv.FormatFloat(p.Lon, 'f', -1, 64)),
	)
}

// Hash implements GEOHASH key member: an empty string if the member is
// missing.
func (h *GeoHandlers) Hash(key, member string, precision uint) Reply {
	p, ok := h.db.Geo.Pos(key, member)
	if !ok {
		return BulkString("")
	}
	return BulkString(p.Geohash(precision))
}

// Dist implements GEODIST key member1 member2 unit.
func (h *GeoHandlers) Dist(key, member1, member2 string, unit geo.Unit) Reply {
	p1, ok := h.db.Geo.Pos(key, member1)
	if !ok {
		return ErrFrom(geo.ErrMemberNotFound(member1))
	}
	p2, ok := h.db.Geo.Pos(key, member2)
	if !ok {
		return ErrFrom(geo.ErrMemberNotFound(member2))
	}
	meters := geo.HaversineMeters(p1.Lat, p1.Lon, p2.Lat, p2.Lon)
	return BulkString(strconv.FormatFloat(unit.FromMeters(meters), 'f', -1, 64))
}

// SortOrder picks GEORADIUS / GEORADIUSBYMEMBER result ordering.
type SortOrder int

const (
	SortNone SortOrder = iota
	SortAsc
	SortDesc
)

// Radius implements GEORADIUS key lon lat radius unit [ASC|DESC].
//
// Sorting, when requested, compares the formatted distance string
// lexicographically rather than the numeric distance — preserved from the
// original server rather than fixed, since it is visible in replies
// (e.g. "10" sorts before "9").
func (h *GeoHandlers) Radius(key string, lon, lat, radius float64, unit geo.Unit, order SortOrder) Reply {
	neighbors := h.db.Geo.Index().Radius(key, lon, lat, unit.ToMeters(radius))
	return ArrayOf(renderNeighbors(neighbors, unit, order)...)
}

// RadiusByMember implements GEORADIUSBYMEMBER key member radius unit [ASC|DESC].
func (h *GeoHandlers) RadiusByMember(key, member string, radius float64, unit geo.Unit, order SortOrder) Reply {
	center, ok := h.db.Geo.Pos(key, member)
	if !ok {
		return ErrFrom(geo.ErrMemberNotFound(member))
	}
	neighbors := h.db.Geo.Index().Radius(key, center.Lon, center.Lat, unit.ToMeters(radius))
	return ArrayOf(renderNeighbors(neighbors, unit, order)...)
}

func renderNeighbors(neighbors []geo.Neighbor, unit geo.Unit, order SortOrder) []Reply {
	type rendered struct {
		member  string
		geohash string
		dist    string
	}
	out := make([]rendered, 0, len(neighbors))
	for _, n := range neighbors {
		out = append(out, rendered{
			member:  n.Point.Member,
			geohash: n.Point.Geohash(geo.DefaultGeohashPrecision),
			dist:    strconv.FormatFloat(unit.FromMeters(n.DistanceMeters), 'f', -1, 64),
		})
	}
	switch order {
	case SortAsc:
		sort.Slice(out, func(i, j int) bool { return out[i].dist < out[j].dist })
	case SortDesc:
		sort.Slice(out, func(i, j int) bool { return out[i].dist > out[j].dist })
	}
	replies := make([]Reply, 0, len(out))
	for _, r := range out {
		replies = append(replies, ArrayOf(BulkString(r.member), BulkString(r.geohash), BulkString(r.dist)))
	}
	return replies
}

// Del implements GEODEL key.
func (h *GeoHandlers) Del(key string) Reply {
	existed := h.db.Geo.Del(key)
	if existed {
		h.db.CountMutation("geo", "GEODEL", 1)
	}
	return Int(boolToInt(existed))
}

// Remove implements GEOREM key member...: removes each member, always
// replying OK regardless of whether any member actually existed.
func (h *GeoHandlers) Remove(key string, members ...string) Reply {
	for _, member := range members {
		if h.db.Geo.RemoveMember(key, member) {
			h.db.CountMutation("geo", "GEOREM", 1)
		}
	}
	return Simple("OK")
}

// JSON implements GEOJSON key tag...: a GeoJSON FeatureCollection built
// from only the listed tags, silently skipping any that are missing.
func (h *GeoHandlers) JSON(key string, tags ...string) Reply {
	points := make([]geo.Point, 0, len(tags))
	for _, tag := range tags {
		if p, ok := h.db.Geo.Pos(key, tag); ok {
			points = append(points, p)
		}
	}
	fc := geo.BuildFeatureCollection(points)
	raw, err := json.Marshal(fc)
	if err != nil {
		return Err("ERR internal error")
	}
	return Bulk(raw)
}
