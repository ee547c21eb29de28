package opt

import (
	"math"
	"reflect"
	"testing"
	"time"

	"techdispatch/internal/model"
)

func TestOptimizeRouteNearestNeighbor(t *testing.T) {
	tech := newTech("a@x.io")
	jobs := []model.Job{
		newJob("nocoord", "08:00", tech.ID),
		at(newJob("far", "09:00", tech.ID), 0.3, 0),
		at(newJob("near", "10:00", tech.ID), 0.1, 0),
		at(newJob("mid", "11:00", tech.ID), 0.2, 0),
	}
	r := OptimizeRoute(DefaultConfig(), tech, jobs, model.GeoPoint{}, StartFallback)
	var order []string
	for _, s := range r.Stops {
		order = append(order, s.JobID)
	}
	if want := []string{"near", "mid", "far", "nocoord"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("order: got %v want %v", order, want)
	}
	last := r.Stops[3]
	if last.Location != nil || last.DistanceKm != 0 || last.TravelMinutes != 0 {
		t.Fatalf("stop without coordinates: %+v", last)
	}
	if r.Stops[0].Order != 1 || r.Stops[0].TravelMinutes != 17 || r.Stops[0].ArrivalTime != "07:17" || r.Stops[0].DepartureTime != "08:17" {
		t.Fatalf("first stop: %+v", r.Stops[0])
	}
	if math.Abs(r.TotalDistanceKm-33.36) > 0.02 {
		t.Fatalf("total distance: %v", r.TotalDistanceKm)
	}
	if r.StartSource != StartFallback {
		t.Fatalf("source: %s", r.StartSource)
	}
}

func TestOptimizeRouteDeterministic(t *testing.T) {
	tech := newTech("a@x.io")
	jobs := []model.Job{
		at(newJob("a", "09:00", tech.ID), 40.71, -74.00),
		at(newJob("b", "10:00", tech.ID), 40.75, -73.98),
		at(newJob("c", "11:00", tech.ID), 40.68, -73.95),
		at(newJob("d", "12:00", tech.ID), 40.80, -73.96),
	}
	start := model.GeoPoint{Lat: 40.70, Lng: -74.01}
	first := OptimizeRoute(DefaultConfig(), tech, jobs, start, StartHome)
	for i := 0; i < 5; i++ {
		if again := OptimizeRoute(DefaultConfig(), tech, jobs, start, StartHome); !reflect.DeepEqual(first, again) {
			t.Fatalf("route changed between runs")
		}
	}
}

func TestOptimizeRouteTwoOptNeverWorse(t *testing.T) {
	tech := newTech("a@x.io")
	jobs := []model.Job{
		at(newJob("a", "09:00", tech.ID), 0.0, 1.0),
		at(newJob("b", "10:00", tech.ID), 0.0, -1.1),
		at(newJob("c", "11:00", tech.ID), 0.0, 2.0),
		at(newJob("d", "12:00", tech.ID), 0.0, -2.2),
	}
	cfg := DefaultConfig()
	plain := OptimizeRoute(cfg, tech, jobs, model.GeoPoint{}, StartFallback)
	cfg.TwoOptIterations = 10
	tuned := OptimizeRoute(cfg, tech, jobs, model.GeoPoint{}, StartFallback)
	if tuned.TotalDistanceKm > plain.TotalDistanceKm {
		t.Fatalf("2-opt made it worse: %v > %v", tuned.TotalDistanceKm, plain.TotalDistanceKm)
	}
	if len(tuned.Stops) != len(jobs) {
		t.Fatalf("stops lost: %d", len(tuned.Stops))
	}
}

func TestImproveOrder2Opt(t *testing.T) {
	pts := []model.GeoPoint{{Lat: 0}, {Lat: 0.3}, {Lat: 0.1}, {Lat: 0.2}}
	got := ImproveOrder2Opt(pts, []int{0, 1, 2, 3}, 10)
	if got[0] != 0 {
		t.Fatalf("origin moved: %v", got)
	}
	if want := []int{0, 2, 3, 1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("order: got %v want %v", got, want)
	}
}

func TestBuildSchedule(t *testing.T) {
	arr, dep := BuildSchedule(420, []int{10, 20}, []int{60, 30})
	if !reflect.DeepEqual(arr, []int{430, 510}) || !reflect.DeepEqual(dep, []int{490, 540}) {
		t.Fatalf("arrivals %v departures %v", arr, dep)
	}
}

func TestRouteStart(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FallbackOrigin = model.GeoPoint{Lat: 1, Lng: 2}
	tech := newTech("a@x.io")
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	checkIns := []model.CheckIn{
		{TechnicianID: tech.ID, Lat: 5, Lng: 5, At: now.Add(-time.Hour)},
		{TechnicianID: tech.ID, Lat: 6, Lng: 6, At: now},
		{TechnicianID: "b@x.io", Lat: 7, Lng: 7, At: now.Add(time.Hour)},
	}

	if p, src := RouteStart(cfg, tech, nil); src != StartFallback || p != cfg.FallbackOrigin {
		t.Fatalf("fallback: %v %s", p, src)
	}
	if p, src := RouteStart(cfg, tech, checkIns); src != StartCheckIn || p.Lat != 6 {
		t.Fatalf("check-in: %v %s", p, src)
	}
	tech.HomeLat, tech.HomeLng = fp(3), fp(4)
	if p, src := RouteStart(cfg, tech, checkIns); src != StartHome || p.Lat != 3 || p.Lng != 4 {
		t.Fatalf("home: %v %s", p, src)
	}
}
