package types

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Polygon is an ordered ring of vertices describing an affected map zone.
// Stored as JSONB via the gorm JSON serializer.
type Polygon []LatLng
