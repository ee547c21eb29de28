package opt

import (
	"fmt"
	"strings"
	"testing"

	"techdispatch/internal/model"
)

func gateJob(id string) model.Job {
	j := at(newJob(id, ""), 40, -74)
	j.ScheduledDate = ""
	j.Status = model.StatusOpen
	j.JobType = "Gate Repair"
	j.Product = "Door opener"
	return j
}

func expertAt(id string, lat, lng float64) model.Technician {
	t := newTech(id, "gate repair", "door")
	t.HomeLat, t.HomeLng = fp(lat), fp(lng)
	return t
}

func TestPlanStrongMatchAutoDispatch(t *testing.T) {
	expert := expertAt("a@x.io", 40, -74)
	novice := newTech("b@x.io")
	novice.HomeLat, novice.HomeLng = fp(45), fp(-80)
	job := gateJob("j1")
	day := dayOf(job)

	sugs, recs := PlanAssignments(DefaultConfig(), UnassignedJobs(day), []model.Technician{novice, expert}, day)
	if len(sugs) != 1 {
		t.Fatalf("want 1 suggestion, got %d", len(sugs))
	}
	s := sugs[0]
	if s.TechnicianID != expert.ID || s.Score != 95 || s.Confidence != "high" {
		t.Fatalf("suggestion: %+v", s)
	}
	if s.Slot == nil || s.Slot.SuggestedTime != "08:00" {
		t.Fatalf("slot: %+v", s.Slot)
	}
	if len(s.Alternatives) != 1 || s.Alternatives[0].TechnicianID != novice.ID || s.Alternatives[0].Score != 50 {
		t.Fatalf("alternatives: %+v", s.Alternatives)
	}
	if !strings.Contains(s.Justification, "Strong skill match") || !strings.Contains(s.Justification, "Close to technician's home") {
		t.Fatalf("justification: %q", s.Justification)
	}
	if len(recs) != 1 || recs[0].SuggestedTime != "08:00" || recs[0].Score != 95 {
		t.Fatalf("recommendations: %+v", recs)
	}
}

func TestPlanBelowThresholdNotAutoDispatched(t *testing.T) {
	novice := newTech("b@x.io")
	day := dayOf(gateJob("j1"))
	sugs, recs := PlanAssignments(DefaultConfig(), UnassignedJobs(day), []model.Technician{novice}, day)
	if len(sugs) != 1 || sugs[0].Score != 50 || sugs[0].Confidence != "low" {
		t.Fatalf("suggestions: %+v", sugs)
	}
	if len(recs) != 0 {
		t.Fatalf("score 50 must not be auto-dispatched: %+v", recs)
	}
}

func TestPlanNoSlotNotAutoDispatched(t *testing.T) {
	expert := expertAt("a@x.io", 40, -74)
	busy := newJob("busy", "07:00", expert.ID)
	busy.DurationHours = 10
	day := dayOf(gateJob("j1"), busy)
	sugs, recs := PlanAssignments(DefaultConfig(), UnassignedJobs(day), []model.Technician{expert}, day)
	if len(sugs) != 1 || sugs[0].Slot != nil {
		t.Fatalf("suggestion: %+v", sugs)
	}
	if len(recs) != 0 {
		t.Fatalf("no slot, no recommendation: %+v", recs)
	}
}

func TestPlanSkipsUnavailable(t *testing.T) {
	full := newTech("a@x.io")
	full.MaxJobsPerDay = 1
	day := dayOf(gateJob("j1"), newJob("e1", "09:00", full.ID))
	sugs, _ := PlanAssignments(DefaultConfig(), UnassignedJobs(day), []model.Technician{full}, day)
	if len(sugs) != 0 {
		t.Fatalf("technician at capacity must not be suggested: %+v", sugs)
	}
}

func TestPlanBatchAndAlternativesCapped(t *testing.T) {
	var jobs []model.Job
	for i := 0; i < 20; i++ {
		jobs = append(jobs, gateJob(fmt.Sprintf("j%02d", i)))
	}
	techs := []model.Technician{
		expertAt("a@x.io", 40, -74),
		expertAt("b@x.io", 40.1, -74),
		expertAt("c@x.io", 40.2, -74),
		expertAt("d@x.io", 40.3, -74),
	}
	day := dayOf(jobs...)
	sugs, recs := PlanAssignments(DefaultConfig(), UnassignedJobs(day), techs, day)
	if len(sugs) != 15 {
		t.Fatalf("batch cap: got %d", len(sugs))
	}
	for _, s := range sugs {
		if len(s.Alternatives) != 2 {
			t.Fatalf("alternatives: %d", len(s.Alternatives))
		}
		if s.Alternatives[0].Score > s.Score || s.Alternatives[1].Score > s.Alternatives[0].Score {
			t.Fatalf("candidates not ranked: %+v", s)
		}
	}
	for _, r := range recs {
		if r.Score < 70 || r.SuggestedTime == "" {
			t.Fatalf("gate violated: %+v", r)
		}
	}
}

func TestUnassignedJobsFilter(t *testing.T) {
	dated := newJob("dated", "")
	undated := newJob("undated", "")
	undated.ScheduledDate = ""
	tomorrow := newJob("tomorrow", "")
	tomorrow.ScheduledDate = "2025-03-11"
	cancelled := newJob("cancelled", "")
	cancelled.Status = model.StatusCancelled
	assigned := newJob("assigned", "", "a@x.io")

	got := UnassignedJobs(dayOf(dated, undated, tomorrow, cancelled, assigned))
	if len(got) != 2 || got[0].ID != "dated" || got[1].ID != "undated" {
		t.Fatalf("unassigned: %+v", got)
	}
}

func TestConfidenceBuckets(t *testing.T) {
	cfg := DefaultConfig()
	cases := map[int]string{100: "high", 80: "high", 79: "medium", 60: "medium", 59: "low", 0: "low"}
	for score, want := range cases {
		if got := cfg.confidence(score); got != want {
			t.Fatalf("confidence(%d): got %s want %s", score, got, want)
		}
	}
}
