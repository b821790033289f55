package geo

import (
	"math"
	"testing"
)

func TestDistanceZeroForCoincidentPoints(t *testing.T) {
	p := Coordinate{Lat: 37.7749, Lng: -122.4194}
	if d := DistanceMeters(p, p); d != 0 {
		t.Fatalf("expected 0 distance, got %f", d)
	}
}

func TestDistanceSymmetry(t *testing.T) {
	a := Coordinate{Lat: 37.7749, Lng: -122.4194}
	b := Coordinate{Lat: 40.7128, Lng: -74.0060}
	if d1, d2 := DistanceMeters(a, b), DistanceMeters(b, a); d1 != d2 {
		t.Fatalf("expected symmetric distance, got %f vs %f", d1, d2)
	}
}

func TestDistanceKnownPair(t *testing.T) {
	// SF to NYC is roughly 4130 km.
	a := Coordinate{Lat: 37.7749, Lng: -122.4194}
	b := Coordinate{Lat: 40.7128, Lng: -74.0060}
	d := DistanceMeters(a, b)
	if d < 4_100_000 || d > 4_160_000 {
		t.Fatalf("distance out of expected range: %f", d)
	}
}

func TestDistanceAntipodalAndPolesStayFinite(t *testing.T) {
	cases := [][2]Coordinate{
		{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 180}},
		{{Lat: 90, Lng: 0}, {Lat: -90, Lng: 0}},
		{{Lat: 90, Lng: 45}, {Lat: 90, Lng: -135}},
	}
	halfCircumference := earthRadiusMeters * math.Pi
	for _, c := range cases {
		d := DistanceMeters(c[0], c[1])
		if math.IsNaN(d) || math.IsInf(d, 0) {
			t.Fatalf("distance not finite for %v: %f", c, d)
		}
		if d > halfCircumference+1 {
			t.Fatalf("distance exceeds half circumference for %v: %f", c, d)
		}
	}
}

func TestWithin(t *testing.T) {
	fence := Fence{Name: "Store", Latitude: 37.7749, Longitude: -122.4194, RadiusMeters: 100}

	inside := Coordinate{Lat: 37.77495, Lng: -122.41945}
	if !Within(inside, fence) {
		t.Fatal("expected point a few meters away to be within a 100m fence")
	}

	outside := Coordinate{Lat: 37.7849, Lng: -122.4194}
	if Within(outside, fence) {
		t.Fatal("expected point ~1.1km away to be outside a 100m fence")
	}

	if !Within(fence.Center(), fence) {
		t.Fatal("fence center must be within the fence")
	}
}
