package opt

import (
	"math"
	"testing"
	"time"

	"techdispatch/internal/model"
)

func TestFitnessClosedDay(t *testing.T) {
	cfg := DefaultConfig()
	day := dayOf()
	start, _ := time.Parse("2006-01-02", testDate)
	day.ClosedDays = []model.ClosedDay{{Start: start, End: start.Add(24 * time.Hour), FullDay: true}}
	job := at(newJob("j1", ""), 40, -74)
	job.JobType = "gate repair"
	tech := newTech("a@x.io", "gate repair")
	tech.HomeLat, tech.HomeLng = fp(40), fp(-74)

	res := ScoreFitness(cfg, job, tech, day)
	if res.TotalScore != 0 || res.IsAvailable {
		t.Fatalf("closed day: got score=%v available=%v", res.TotalScore, res.IsAvailable)
	}
	if res.UnavailableReason != "Business is closed on this day" {
		t.Fatalf("reason: %q", res.UnavailableReason)
	}
	if res.Breakdown.Skill == 0 {
		t.Fatalf("skill should still be reported on closed days")
	}
}

func TestFitnessPartialClosureIsNotHardBlock(t *testing.T) {
	cfg := DefaultConfig()
	day := dayOf()
	start, _ := time.Parse("2006-01-02", testDate)
	day.ClosedDays = []model.ClosedDay{{Start: start.Add(12 * time.Hour), End: start.Add(14 * time.Hour)}}
	res := ScoreFitness(cfg, newJob("j1", ""), newTech("a@x.io"), day)
	if !res.IsAvailable || res.TotalScore == 0 {
		t.Fatalf("partial closure should not zero fitness: %+v", res)
	}
}

func TestFitnessNoSkillsNeutral(t *testing.T) {
	res := ScoreFitness(DefaultConfig(), newJob("j1", ""), newTech("a@x.io"), dayOf())
	if res.Breakdown.Skill != 0.5 {
		t.Fatalf("want neutral 0.5, got %v", res.Breakdown.Skill)
	}
}

func TestFitnessSkillWeights(t *testing.T) {
	job := newJob("j1", "")
	job.JobType = "Gate Repair"
	res := ScoreFitness(DefaultConfig(), job, newTech("a@x.io", "gate repair"), dayOf())
	// job type match 2 + shared "gate" 0.5 -> 2.5/4
	if math.Abs(res.Breakdown.Skill-0.625) > 1e-9 {
		t.Fatalf("skill: got %v", res.Breakdown.Skill)
	}
	if len(res.MatchedSkills) != 1 || res.MatchedSkills[0] != "gate repair" {
		t.Fatalf("matched: %v", res.MatchedSkills)
	}

	job.Product = "Roller door"
	res = ScoreFitness(DefaultConfig(), job, newTech("a@x.io", "gate repair", "roller door"), dayOf())
	if res.Breakdown.Skill != 1 {
		t.Fatalf("skill should clamp to 1, got %v", res.Breakdown.Skill)
	}
}

func TestFitnessLoadTerms(t *testing.T) {
	tech := newTech("a@x.io")
	jobs := []model.Job{newJob("e1", "08:00", tech.ID), newJob("e2", "10:00", tech.ID), newJob("e3", "12:00", tech.ID)}
	cancelled := newJob("e4", "14:00", tech.ID)
	cancelled.Status = model.StatusCancelled
	day := dayOf(append(jobs, cancelled)...)

	res := ScoreFitness(DefaultConfig(), newJob("j1", ""), tech, day)
	if res.CurrentJobs != 3 {
		t.Fatalf("current jobs: got %d", res.CurrentJobs)
	}
	if res.Breakdown.Availability != 0.5 || res.Breakdown.Workload != 0.5 {
		t.Fatalf("load terms: %+v", res.Breakdown)
	}

	tech.MaxJobsPerDay = 3
	res = ScoreFitness(DefaultConfig(), newJob("j1", ""), tech, day)
	if res.IsAvailable || res.Breakdown.Availability != 0 || res.Breakdown.Workload != 0 {
		t.Fatalf("at capacity: %+v", res)
	}
}

func TestFitnessProximity(t *testing.T) {
	tech := newTech("a@x.io")
	tech.HomeLat, tech.HomeLng = fp(40), fp(-74)
	job := at(newJob("j1", ""), 40, -74)
	res := ScoreFitness(DefaultConfig(), job, tech, dayOf())
	if res.Breakdown.Proximity != 1 {
		t.Fatalf("same point proximity: %v", res.Breakdown.Proximity)
	}
	far := at(newJob("j2", ""), 41, -74)
	if res := ScoreFitness(DefaultConfig(), far, tech, dayOf()); res.Breakdown.Proximity != 0 {
		t.Fatalf("111km away should be 0, got %v", res.Breakdown.Proximity)
	}
	noCoords := newJob("j3", "")
	if res := ScoreFitness(DefaultConfig(), noCoords, tech, dayOf()); res.Breakdown.Proximity != 0 || res.Breakdown.RouteEfficiency != 0 {
		t.Fatalf("missing coords should zero proximity terms: %+v", res.Breakdown)
	}
}

func TestFitnessRouteEfficiency(t *testing.T) {
	tech := newTech("a@x.io")
	other := at(newJob("e1", "09:00", tech.ID), 40, -74)
	job := at(newJob("j1", ""), 40, -74)
	res := ScoreFitness(DefaultConfig(), job, tech, dayOf(other))
	if res.Breakdown.RouteEfficiency != 1 {
		t.Fatalf("route efficiency next door: %v", res.Breakdown.RouteEfficiency)
	}
}

func TestFitnessScoreBounds(t *testing.T) {
	cfg := DefaultConfig()
	skills := [][]string{nil, {"gate"}, {"gate repair", "door", "motor service", "roller install"}}
	loads := []int{0, 2, 6, 9}
	for _, sk := range skills {
		for _, load := range loads {
			tech := newTech("a@x.io", sk...)
			tech.HomeLat, tech.HomeLng = fp(40.1), fp(-74.2)
			var jobs []model.Job
			for i := 0; i < load; i++ {
				jobs = append(jobs, at(newJob(string(rune('a'+i)), "", tech.ID), 40+float64(i)/10, -74))
			}
			job := at(newJob("j", ""), 40, -74)
			job.JobType, job.Product = "gate repair service", "roller door motor"
			res := ScoreFitness(cfg, job, tech, dayOf(jobs...))
			b := res.Breakdown
			for name, v := range map[string]float64{"total": res.TotalScore, "skill": b.Skill, "prox": b.Proximity, "avail": b.Availability, "work": b.Workload, "route": b.RouteEfficiency} {
				if v < 0 || v > 1 {
					t.Fatalf("%s out of bounds: %v (skills=%v load=%d)", name, v, sk, load)
				}
			}
		}
	}
}
