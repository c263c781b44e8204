package geo

import (
	"math"
	"testing"

	"github.com/escanordb/escanor/internal/keyspace"
)

func TestAddAndPos(t *testing.T) {
	s := New(keyspace.New())
	if err := s.Add("places", Point{Member: "a", Lon: -122.4, Lat: 37.8}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	p, ok := s.Pos("places", "a")
	if !ok || p.Lon != -122.4 || p.Lat != 37.8 {
		t.Fatalf("got %+v ok=%v", p, ok)
	}
}

func TestWrongTypeAcrossFamilies(t *testing.T) {
	dir := keyspace.New()
	s := New(dir)
	dir.Claim("k", keyspace.KV)
	if err := s.Add("k", Point{Member: "a"}); err != ErrWrongType {
		t.Fatalf("want ErrWrongType, got %v", err)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// San Francisco to Oakland, roughly 13 km apart.
	d := HaversineMeters(37.7749, -122.4194, 37.8044, -122.2712)
	if d < 10000 || d > 16000 {
		t.Fatalf("unexpected distance %f meters", d)
	}
}

func TestUnitConversionRoundTrip(t *testing.T) {
	m := Kilometers.ToMeters(5)
	if math.Abs(m-5000) > 0.001 {
		t.Fatalf("want 5000m, got %f", m)
	}
	km := Kilometers.FromMeters(m)
	if math.Abs(km-5) > 0.001 {
		t.Fatalf("want 5km, got %f", km)
	}
}

func TestRadiusFindsNearbyPoints(t *testing.T) {
	s := New(keyspace.New())
	_ = s.Add("places", Point{Member: "near", Lon: -122.42, Lat: 37.78})
	_ = s.Add("places", Point{Member: "far", Lon: 0, Lat: 0})

	neighbors := s.Index().Radius("places", -122.42, 37.78, 1000)
	if len(neighbors) != 1 || neighbors[0].Point.Member != "near" {
		t.Fatalf("got %+v", neighbors)
	}
}

func TestRadiusAppliesMeridianCorrectionAtHighLatitude(t *testing.T) {
	s := New(keyspace.New())
	const lat = 38.0
	// At 38 degrees latitude, 3 degrees of longitude is about 263km, inside
	// a 300km radius — but an uncorrected (latitude-only) bounding box only
	// reaches about 236km of longitude offset, so this point would be
	// missed by the R-tree candidate search without the cos(lat) correction.
	_ = s.Add("places", Point{Member: "east", Lon: 3.0, Lat: lat})

	neighbors := s.Index().Radius("places", 0, lat, 300000)
	if len(neighbors) != 1 || neighbors[0].Point.Member != "east" {
		t.Fatalf("expected meridian-corrected bbox to include the point, got %+v", neighbors)
	}
}

func TestRemoveMemberDropsFromIndex(t *testing.T) {
	s := New(keyspace.New())
	_ = s.Add("places", Point{Member: "a", Lon: 1, Lat: 1})
	if !s.RemoveMember("places", "a") {
		t.Fatal("expected removal to succeed")
	}
	if _, ok := s.Pos("places", "a"); ok {
		t.Fatal("expected member to be gone")
	}
	if len(s.Index().Radius("places", 1, 1, 100000)) != 0 {
		t.Fatal("expected index to no longer contain removed member")
	}
}
