package opt

import (
	"math"

	"techdispatch/internal/model"
)

// Route start sources.
const (
	StartHome     = "home"
	StartCheckIn  = "checkin"
	StartFallback = "fallback"
)

// OptimizeRoute orders jobs with the nearest-neighbor heuristic starting at start.
// It is greedy and does not guarantee the shortest tour. Jobs without a
// coordinate are never chosen as nearest; they stay in the pool and are taken in
// pool order once no coordinate-bearing job remains.
func OptimizeRoute(cfg Config, tech model.Technician, jobs []model.Job, start model.GeoPoint, source string) model.Route {
	ordered := nearestNeighbor(jobs, start)
	if cfg.TwoOptIterations > 0 {
		ordered = improve(cfg, ordered, start)
	}

	route := model.Route{
		TechnicianID:   tech.ID,
		TechnicianName: tech.Name,
		Start:          start,
		StartSource:    source,
		Stops:          make([]model.RouteStop, 0, len(ordered)),
	}
	legs := make([]int, len(ordered))
	durations := make([]int, len(ordered))
	prev := start
	for i, j := range ordered {
		stop := model.RouteStop{Order: i + 1, JobID: j.ID, JobNumber: j.Number, CustomerName: j.CustomerName}
		if p, ok := j.Point(); ok {
			pt := p
			stop.Location = &pt
			stop.DistanceKm = round2(DistanceKm(prev.Lat, prev.Lng, p.Lat, p.Lng))
			stop.TravelMinutes = cfg.travelMinutes(DistanceKm(prev.Lat, prev.Lng, p.Lat, p.Lng))
			prev = p
		}
		legs[i] = stop.TravelMinutes
		durations[i] = j.DurationMinutes()
		route.TotalDistanceKm += stop.DistanceKm
		route.TotalTravelMinutes += stop.TravelMinutes
		route.Stops = append(route.Stops, stop)
	}
	route.TotalDistanceKm = round2(route.TotalDistanceKm)

	arrivals, departures := BuildSchedule(cfg.WorkdayStart, legs, durations)
	for i := range route.Stops {
		route.Stops[i].ArrivalTime = model.FormatClock(arrivals[i])
		route.Stops[i].DepartureTime = model.FormatClock(departures[i])
	}
	return route
}

func nearestNeighbor(jobs []model.Job, start model.GeoPoint) []model.Job {
	remaining := append([]model.Job(nil), jobs...)
	out := make([]model.Job, 0, len(jobs))
	cur := start
	for len(remaining) > 0 {
		best := -1
		bestD := math.Inf(1)
		for i, j := range remaining {
			p, ok := j.Point()
			if !ok {
				continue
			}
			if d := DistanceKm(cur.Lat, cur.Lng, p.Lat, p.Lng); d < bestD {
				best, bestD = i, d
			}
		}
		if best < 0 {
			best = 0
		}
		picked := remaining[best]
		remaining = append(remaining[:best], remaining[best+1:]...)
		out = append(out, picked)
		if p, ok := picked.Point(); ok {
			cur = p
		}
	}
	return out
}

// improve runs the optional 2-opt pass when every stop has a coordinate.
func improve(cfg Config, ordered []model.Job, start model.GeoPoint) []model.Job {
	if len(ordered) < 3 {
		return ordered
	}
	pts := make([]model.GeoPoint, 0, len(ordered)+1)
	pts = append(pts, start)
	for _, j := range ordered {
		p, ok := j.Point()
		if !ok {
			return ordered
		}
		pts = append(pts, p)
	}
	idx := make([]int, len(pts))
	for i := range idx {
		idx[i] = i
	}
	better := ImproveOrder2Opt(pts, idx, cfg.TwoOptIterations)
	out := make([]model.Job, 0, len(ordered))
	for _, k := range better[1:] {
		out = append(out, ordered[k-1])
	}
	return out
}

// BuildSchedule derives arrival and departure minutes for consecutive stops
// starting at startMin: arrive after the leg's travel, leave after the job.
func BuildSchedule(startMin int, legs, durations []int) (arrivals, departures []int) {
	arrivals = make([]int, len(legs))
	departures = make([]int, len(legs))
	t := startMin
	for i := range legs {
		arrivals[i] = t + legs[i]
		t = arrivals[i] + durations[i]
		departures[i] = t
	}
	return arrivals, departures
}

// RouteStart picks the technician's home, then the latest check-in, then the
// configured fallback coordinate.
func RouteStart(cfg Config, tech model.Technician, checkIns []model.CheckIn) (model.GeoPoint, string) {
	if h, ok := tech.Home(); ok {
		return h, StartHome
	}
	var latest *model.CheckIn
	for i := range checkIns {
		ci := &checkIns[i]
		if ci.TechnicianID != tech.ID {
			continue
		}
		if latest == nil || ci.At.After(latest.At) {
			latest = ci
		}
	}
	if latest != nil {
		return model.GeoPoint{Lat: latest.Lat, Lng: latest.Lng}, StartCheckIn
	}
	return cfg.FallbackOrigin, StartFallback
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
