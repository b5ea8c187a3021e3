package geo

import (
	"testing"

	"github.com/amendezcabrera/villagelink-backend/pkg/types"
)

func square() types.Polygon {
	return types.Polygon{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 10},
		{Lat: 10, Lng: 10},
		{Lat: 10, Lng: 0},
	}
}

func TestContainsInside(t *testing.T) {
	if !Contains(square(), types.LatLng{Lat: 5, Lng: 5}) {
		t.Fatal("expected interior point to be contained")
	}
}

func TestContainsOutside(t *testing.T) {
	if Contains(square(), types.LatLng{Lat: 15, Lng: 5}) {
		t.Fatal("expected exterior point to be outside")
	}
	if Contains(square(), types.LatLng{Lat: -1, Lng: -1}) {
		t.Fatal("expected negative quadrant point to be outside")
	}
}

func TestContainsConcavePolygon(t *testing.T) {
	// L-shape with a notch cut out of the upper right corner.
	poly := types.Polygon{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 10},
		{Lat: 5, Lng: 10},
		{Lat: 5, Lng: 5},
		{Lat: 10, Lng: 5},
		{Lat: 10, Lng: 0},
	}
	if !Contains(poly, types.LatLng{Lat: 2, Lng: 8}) {
		t.Fatal("expected point in the wide arm to be contained")
	}
	if Contains(poly, types.LatLng{Lat: 8, Lng: 8}) {
		t.Fatal("expected point in the notch to be outside")
	}
}

func TestContainsDegeneratePolygon(t *testing.T) {
	if Contains(types.Polygon{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}, types.LatLng{Lat: 1, Lng: 1}) {
		t.Fatal("polygons with fewer than three vertices contain nothing")
	}
	if Contains(nil, types.LatLng{}) {
		t.Fatal("nil polygon contains nothing")
	}
}
