package opt

import (
	"fmt"
	"math"
	"strings"

	"techdispatch/internal/model"
)

const closedReason = "Business is closed on this day"

// ScoreFitness rates how well tech suits job on the target day. Missing
// coordinates zero the matching proximity terms; missing skills score a neutral 0.5.
// Leave is deliberately not consulted here, only by FindSlot.
func ScoreFitness(cfg Config, job model.Job, tech model.Technician, day Day) model.FitnessResult {
	skill, matched := skillScore(cfg, job, tech)
	res := model.FitnessResult{
		TechnicianID:     tech.ID,
		MatchedSkills:    matched,
		SkillExplanation: explainSkills(tech, matched),
		MaxJobs:          tech.MaxJobsPerDay,
	}
	res.Breakdown.Skill = skill

	if day.ClosedAllDay() {
		res.IsAvailable = false
		res.UnavailableReason = closedReason
		return res
	}

	mine := day.JobsFor(tech.ID)
	count := len(mine)
	res.CurrentJobs = count

	var home float64
	if p, ok := job.Point(); ok {
		if h, ok := tech.Home(); ok {
			home = math.Max(0, 1-DistanceKm(h.Lat, h.Lng, p.Lat, p.Lng)/cfg.HomeRadiusKm)
		}
	}
	res.Breakdown.Proximity = home
	res.Breakdown.RouteEfficiency = routeEfficiency(cfg, job, mine)

	maxJobs := tech.MaxJobsPerDay
	if maxJobs <= 0 {
		maxJobs = model.DefaultMaxJobsPerDay
		res.MaxJobs = maxJobs
	}
	load := float64(count) / float64(maxJobs)
	if count < maxJobs {
		res.Breakdown.Availability = 1 - load
	}
	res.Breakdown.Workload = math.Max(0, 1-load)

	w := cfg.Weights
	total := w.Skill*res.Breakdown.Skill +
		w.Proximity*res.Breakdown.Proximity +
		w.Availability*res.Breakdown.Availability +
		w.Workload*res.Breakdown.Workload +
		w.RouteEfficiency*res.Breakdown.RouteEfficiency
	res.TotalScore = clamp01(total)
	res.IsAvailable = count < maxJobs
	if !res.IsAvailable {
		res.UnavailableReason = fmt.Sprintf("At capacity (%d/%d jobs)", count, maxJobs)
	}
	return res
}

// skillScore weighs job-type matches 2, product matches 1.5 and shared generic
// terms 0.5 (once per skill), then scales by 1/4 into [0,1].
func skillScore(cfg Config, job model.Job, tech model.Technician) (float64, []string) {
	if len(tech.Skills) == 0 {
		return 0.5, []string{}
	}
	jobType := strings.ToLower(strings.TrimSpace(job.JobType))
	product := strings.ToLower(strings.TrimSpace(job.Product))
	jobContext := jobType + " " + product
	matched := []string{}
	var sum float64
	for _, raw := range tech.Skills {
		s := strings.ToLower(strings.TrimSpace(raw))
		if s == "" {
			continue
		}
		hit := false
		if intersects(s, jobType) {
			sum += 2
			hit = true
		}
		if intersects(s, product) {
			sum += 1.5
			hit = true
		}
		for _, term := range cfg.RelatedTerms {
			if strings.Contains(s, term) && strings.Contains(jobContext, term) {
				sum += 0.5
				hit = true
				break
			}
		}
		if hit {
			matched = append(matched, raw)
		}
	}
	return clamp01(sum / 4), matched
}

func intersects(skill, field string) bool {
	if field == "" {
		return false
	}
	return strings.Contains(field, skill) || strings.Contains(skill, field)
}

func explainSkills(tech model.Technician, matched []string) string {
	if len(tech.Skills) == 0 {
		return "No skills recorded"
	}
	if len(matched) == 0 {
		return "No matching skills"
	}
	return "Matched: " + strings.Join(matched, ", ")
}

// routeEfficiency favours jobs close to the technician's other work that day.
func routeEfficiency(cfg Config, job model.Job, mine []model.Job) float64 {
	p, ok := job.Point()
	if !ok {
		return 0
	}
	var total float64
	n := 0
	for _, other := range mine {
		if other.ID == job.ID {
			continue
		}
		q, ok := other.Point()
		if !ok {
			continue
		}
		total += DistanceKm(p.Lat, p.Lng, q.Lat, q.Lng)
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Max(0, 1-(total/float64(n))/cfg.RouteRadiusKm)
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
