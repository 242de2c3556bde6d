package geo

import (
	"math"
	"testing"
)

func TestDistanceMilesZeroForSamePoint(t *testing.T) {
	point := Coordinates{Lat: 35.6660, Lng: -97.4966}
	if d := DistanceMiles(point, point); d != 0 {
		t.Fatalf("expected zero distance, got %f", d)
	}
}

func TestDistanceMilesSymmetric(t *testing.T) {
	edmond := Coordinates{Lat: 35.6660, Lng: -97.4966}
	tulsa := Coordinates{Lat: 36.1415, Lng: -95.9935}

	forward := DistanceMiles(edmond, tulsa)
	backward := DistanceMiles(tulsa, edmond)
	if math.Abs(forward-backward) > 1e-9 {
		t.Fatalf("expected symmetric distance, got %f and %f", forward, backward)
	}
}

func TestDistanceMilesEdmondToTulsa(t *testing.T) {
	edmond := Coordinates{Lat: 35.6660, Lng: -97.4966}
	tulsa := Coordinates{Lat: 36.1415, Lng: -95.9935}

	distance := DistanceMiles(edmond, tulsa)
	if distance < 85 || distance > 95 {
		t.Fatalf("expected roughly 90 miles between Edmond and Tulsa, got %f", distance)
	}
}

func TestDistanceMilesNonNegative(t *testing.T) {
	cases := []struct {
		a, b Coordinates
	}{
		{Coordinates{Lat: 0, Lng: 0}, Coordinates{Lat: 0, Lng: 180}},
		{Coordinates{Lat: 90, Lng: 0}, Coordinates{Lat: -90, Lng: 0}},
		{Coordinates{Lat: 36.1540, Lng: -95.9928}, Coordinates{Lat: 36.1541, Lng: -95.9929}},
	}
	for _, tc := range cases {
		if d := DistanceMiles(tc.a, tc.b); d < 0 {
			t.Fatalf("expected non-negative distance for %+v -> %+v, got %f", tc.a, tc.b, d)
		}
	}
}

func TestRoundMiles(t *testing.T) {
	if got := RoundMiles(12.34567); got != 12.3 {
		t.Fatalf("expected 12.3, got %f", got)
	}
	if got := RoundMiles(12.35); got != 12.4 {
		t.Fatalf("expected 12.4, got %f", got)
	}
}
