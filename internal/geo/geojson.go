package geo

// FeatureCollection is a minimal GeoJSON FeatureCollection, enough to
// represent a GEO-family key's points for the GEOJSON command.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a single GeoJSON Point feature carrying the member name as a
// property.
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Geometry is a GeoJSON Point geometry, [longitude, latitude].
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// BuildFeatureCollection renders points as a GeoJSON FeatureCollection.
func BuildFeatureCollection(points []Point) FeatureCollection {
	features := make([]Feature, 0, len(points))
	for _, p := range points {
		features = append(features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{p.Lon, p.Lat},
			},
			Properties: map[string]any{"member": p.Member},
		})
	}
	return FeatureCollection{Type: "FeatureCollection", Features: features}
}
