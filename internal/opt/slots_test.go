package opt

import (
	"testing"
	"time"

	"techdispatch/internal/model"
)

func mustDay(t *testing.T) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", testDate)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestFindSlotEmptyDay(t *testing.T) {
	tech := newTech("a@x.io")
	slot := FindSlot(DefaultConfig(), newJob("j1", ""), tech, nil, dayOf())
	if slot == nil || slot.SuggestedTime != "08:00" || slot.Reason != "First job of the day" {
		t.Fatalf("unexpected slot: %+v", slot)
	}

	untimed := newJob("e1", "", tech.ID)
	slot = FindSlot(DefaultConfig(), newJob("j1", ""), tech, []model.Job{untimed}, dayOf(untimed))
	if slot == nil || slot.SuggestedTime != "08:00" || slot.Reason != "No timed jobs scheduled yet" {
		t.Fatalf("untimed-only day: %+v", slot)
	}
}

func TestFindSlotBlockedByLeave(t *testing.T) {
	d := mustDay(t)
	tech := newTech("a@x.io")
	day := dayOf()
	day.Leaves = []model.Leave{{TechnicianID: tech.ID, Start: d, End: d.Add(24 * time.Hour)}}
	if slot := FindSlot(DefaultConfig(), newJob("j1", ""), tech, nil, day); slot != nil {
		t.Fatalf("expected no slot on leave, got %+v", slot)
	}
	// someone else's leave does not matter
	if slot := FindSlot(DefaultConfig(), newJob("j1", ""), newTech("b@x.io"), nil, day); slot == nil {
		t.Fatalf("other technician should be free")
	}
}

func TestFindSlotPrefersBetween(t *testing.T) {
	tech := newTech("a@x.io")
	existing := []model.Job{newJob("e2", "13:00", tech.ID), newJob("e1", "07:30", tech.ID)}
	slot := FindSlot(DefaultConfig(), newJob("j1", ""), tech, existing, dayOf(existing...))
	if slot == nil || slot.SuggestedTime != "08:45" {
		t.Fatalf("want 08:45 between slot, got %+v", slot)
	}
	if slot.TravelMinutes == nil || *slot.TravelMinutes != 15 {
		t.Fatalf("travel: %+v", slot.TravelMinutes)
	}
}

func TestFindSlotAfterOnly(t *testing.T) {
	tech := newTech("a@x.io")
	e := newJob("e1", "08:00", tech.ID)
	e.DurationHours = 2
	slot := FindSlot(DefaultConfig(), newJob("j1", ""), tech, []model.Job{e}, dayOf(e))
	if slot == nil || slot.SuggestedTime != "10:15" {
		t.Fatalf("want 10:15, got %+v", slot)
	}
}

func TestFindSlotBeforeOnly(t *testing.T) {
	tech := newTech("a@x.io")
	e := newJob("e1", "09:00", tech.ID)
	e.DurationHours = 8
	slot := FindSlot(DefaultConfig(), newJob("j1", ""), tech, []model.Job{e}, dayOf(e))
	if slot == nil || slot.SuggestedTime != "07:00" {
		t.Fatalf("want 07:00, got %+v", slot)
	}
	if slot.TravelMinutes != nil {
		t.Fatalf("before slot has no travel estimate")
	}
}

func TestFindSlotFullDay(t *testing.T) {
	tech := newTech("a@x.io")
	e := newJob("e1", "07:00", tech.ID)
	e.DurationHours = 10
	if slot := FindSlot(DefaultConfig(), newJob("j1", ""), tech, []model.Job{e}, dayOf(e)); slot != nil {
		t.Fatalf("expected nil, got %+v", slot)
	}
}

func TestFindSlotIgnoresJobItself(t *testing.T) {
	tech := newTech("a@x.io")
	job := newJob("j1", "09:00", tech.ID)
	slot := FindSlot(DefaultConfig(), job, tech, []model.Job{job}, dayOf(job))
	if slot == nil || slot.Reason != "First job of the day" {
		t.Fatalf("job should not block itself: %+v", slot)
	}
}

func TestIsSlotBlockedHalfOpen(t *testing.T) {
	d := mustDay(t)
	leaves := []model.Leave{{TechnicianID: "a@x.io", Start: d.Add(10 * time.Hour), End: d.Add(11 * time.Hour)}}
	if IsSlotBlocked(testDate, 9*60, 60, "a@x.io", leaves, nil) {
		t.Fatalf("slot ending at leave start must not be blocked")
	}
	if IsSlotBlocked(testDate, 11*60, 60, "a@x.io", leaves, nil) {
		t.Fatalf("slot starting at leave end must not be blocked")
	}
	if !IsSlotBlocked(testDate, 10*60+30, 60, "a@x.io", leaves, nil) {
		t.Fatalf("overlapping slot must be blocked")
	}
	if IsSlotBlocked(testDate, 10*60+30, 60, "b@x.io", leaves, nil) {
		t.Fatalf("leave applies to its technician only")
	}
	closed := []model.ClosedDay{{Start: d.Add(12 * time.Hour), End: d.Add(13 * time.Hour)}}
	if !IsSlotBlocked(testDate, 12*60, 30, "b@x.io", nil, closed) {
		t.Fatalf("closure applies to everyone")
	}
}

func TestFindSlotNeverOverlaps(t *testing.T) {
	cfg := DefaultConfig()
	d := mustDay(t)
	tech := newTech("a@x.io")
	layouts := [][]string{
		{"08:00"},
		{"07:30", "13:00"},
		{"09:00", "10:30", "15:00"},
		{"08:00", "08:30", "12:00"},
		{"11:00", "11:15"},
	}
	leaves := []model.Leave{{TechnicianID: tech.ID, Start: d.Add(13*time.Hour + 30*time.Minute), End: d.Add(14 * time.Hour)}}
	for _, clocks := range layouts {
		var existing []model.Job
		for i, c := range clocks {
			existing = append(existing, newJob(string(rune('a'+i)), c, tech.ID))
		}
		for _, dur := range []float64{0.5, 1, 2.5} {
			job := newJob("new", "")
			job.DurationHours = dur
			day := dayOf(existing...)
			day.Leaves = leaves
			slot := FindSlot(cfg, job, tech, existing, day)
			if slot == nil {
				continue
			}
			start, ok := model.ParseClock(slot.SuggestedTime)
			if !ok {
				t.Fatalf("bad time %q", slot.SuggestedTime)
			}
			end := start + job.DurationMinutes()
			for _, e := range timed(existing) {
				if start < e.End && end > e.Start {
					t.Fatalf("slot %s (%v h) overlaps %s in %v", slot.SuggestedTime, dur, e.ScheduledTime, clocks)
				}
			}
			if IsSlotBlocked(testDate, start, job.DurationMinutes(), tech.ID, leaves, nil) {
				t.Fatalf("slot %s is on leave", slot.SuggestedTime)
			}
		}
	}
}
