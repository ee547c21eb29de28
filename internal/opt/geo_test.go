package opt

import (
	"math"
	"testing"
)

func TestDistanceSymmetricAndZero(t *testing.T) {
	pts := [][2]float64{{40.7128, -74.0060}, {34.0522, -118.2437}, {-33.8688, 151.2093}, {0, 0}, {51.5, -0.12}}
	for _, a := range pts {
		if d := DistanceKm(a[0], a[1], a[0], a[1]); d != 0 {
			t.Fatalf("distance to self: got %v", d)
		}
		for _, b := range pts {
			ab := DistanceKm(a[0], a[1], b[0], b[1])
			ba := DistanceKm(b[0], b[1], a[0], a[1])
			if ab != ba {
				t.Fatalf("asymmetric %v %v: %v vs %v", a, b, ab, ba)
			}
		}
	}
}

func TestDistanceOneDegreeLatitude(t *testing.T) {
	d := DistanceKm(0, 0, 1, 0)
	if math.Abs(d-111.19) > 0.05 {
		t.Fatalf("1 degree latitude: got %.3f km", d)
	}
}

func TestTravelMinutes(t *testing.T) {
	cases := map[float64]int{0: 0, 40: 60, 20: 30, 0.1: 1, 10.01: 16}
	for km, want := range cases {
		if got := TravelMinutes(km); got != want {
			t.Fatalf("TravelMinutes(%v): got %d want %d", km, got, want)
		}
	}
}
