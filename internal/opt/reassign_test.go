package opt

import (
	"testing"

	"techdispatch/internal/model"
)

func TestReassignToBetterFit(t *testing.T) {
	current := newTech("cur@x.io", "plumbing")
	current.HomeLat, current.HomeLng = fp(45), fp(-80)
	expert := expertAt("exp@x.io", 40, -74)
	generalist := newTech("gen@x.io")
	generalist.HomeLat, generalist.HomeLng = fp(40), fp(-74)

	job := at(newJob("j1", "09:00", current.ID), 40, -74)
	job.JobType, job.Product = "Gate Repair", "Door opener"
	day := dayOf(job)

	out := AnalyzeReassignments(DefaultConfig(), AssignedJobs(day), []model.Technician{current, generalist, expert}, day)
	if len(out) != 1 {
		t.Fatalf("want a single suggestion, got %+v", out)
	}
	s := out[0]
	if s.Type != model.SuggestionBetterFit || s.TechnicianID != expert.ID || s.CurrentTechnicianID != current.ID {
		t.Fatalf("suggestion: %+v", s)
	}
	if s.CurrentScore != 25 || s.Score != 95 || s.Improvement != 70 || s.Severity != model.SeverityHigh {
		t.Fatalf("scores: current=%d new=%d improvement=%d severity=%s", s.CurrentScore, s.Score, s.Improvement, s.Severity)
	}
	if s.Slot == nil || s.Slot.SuggestedTime != "08:00" {
		t.Fatalf("slot: %+v", s.Slot)
	}
}

func TestReassignMediumImprovement(t *testing.T) {
	current := newTech("cur@x.io", "plumbing")
	current.HomeLat, current.HomeLng = fp(45), fp(-80)
	other := newTech("oth@x.io")

	job := at(newJob("j1", "09:00", current.ID), 40, -74)
	job.JobType = "Gate Repair"
	day := dayOf(job)

	out := AnalyzeReassignments(DefaultConfig(), AssignedJobs(day), []model.Technician{current, other}, day)
	if len(out) != 1 || out[0].Improvement != 25 || out[0].Severity != model.SeverityMedium {
		t.Fatalf("medium: %+v", out)
	}
}

func TestReassignNotWorthIt(t *testing.T) {
	current := expertAt("cur@x.io", 40, -74)
	other := newTech("oth@x.io")
	other.HomeLat, other.HomeLng = fp(40), fp(-74)

	job := at(newJob("j1", "09:00", current.ID), 40, -74)
	job.JobType, job.Product = "Gate Repair", "Door opener"
	day := dayOf(job)
	if out := AnalyzeReassignments(DefaultConfig(), AssignedJobs(day), []model.Technician{current, other}, day); len(out) != 0 {
		t.Fatalf("no suggestion expected: %+v", out)
	}
}

func TestReassignSkipsCoAssigneesAndUnknownTechs(t *testing.T) {
	a := newTech("a@x.io", "plumbing")
	b := expertAt("b@x.io", 40, -74)
	job := at(newJob("j1", "09:00", a.ID, b.ID), 40, -74)
	job.JobType = "Gate Repair"
	orphan := newJob("j2", "11:00", "ghost@x.io")
	day := dayOf(job, orphan)
	if out := AnalyzeReassignments(DefaultConfig(), AssignedJobs(day), []model.Technician{a, b}, day); len(out) != 0 {
		t.Fatalf("co-assignees and unknown technicians must be skipped: %+v", out)
	}
}
