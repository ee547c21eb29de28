package opt

import (
	"strings"

	"techdispatch/internal/model"
)

// AssignedJobs lists active target-date jobs with at least one technician.
func AssignedJobs(day Day) []model.Job {
	var out []model.Job
	for _, j := range day.Jobs {
		if j.ScheduledDate == day.Date && j.Active() && j.Assigned() {
			out = append(out, j)
		}
	}
	return out
}

// AnalyzeReassignments compares each assigned job's current technician (the first
// assignee on the roster) with every other technician that has spare capacity.
// Only an alternative beating the current score by more than
// cfg.ReassignImprovement qualifies, and only the single best one is kept.
func AnalyzeReassignments(cfg Config, jobs []model.Job, techs []model.Technician, day Day) []model.Suggestion {
	out := []model.Suggestion{}
	byID := make(map[string]model.Technician, len(techs))
	for _, t := range techs {
		byID[t.ID] = t
	}
	for _, job := range jobs {
		var current model.Technician
		found := false
		for _, id := range job.AssignedTechnicians {
			if t, ok := byID[id]; ok {
				current, found = t, true
				break
			}
		}
		if !found {
			continue
		}
		cur := ScoreFitness(cfg, job, current, day)

		var best *model.FitnessResult
		var bestTech model.Technician
		for _, t := range techs {
			if job.AssignedTo(t.ID) {
				continue
			}
			alt := ScoreFitness(cfg, job, t, day)
			if !alt.IsAvailable {
				continue
			}
			if alt.TotalScore-cur.TotalScore <= cfg.ReassignImprovement {
				continue
			}
			if best == nil || alt.TotalScore > best.TotalScore {
				a := alt
				best, bestTech = &a, t
			}
		}
		if best == nil {
			continue
		}

		improvement := percent(best.TotalScore) - percent(cur.TotalScore)
		sev := model.SeverityMedium
		if improvement >= cfg.ReassignHighImprovement {
			sev = model.SeverityHigh
		}
		out = append(out, model.Suggestion{
			Type:                model.SuggestionBetterFit,
			JobID:               job.ID,
			JobNumber:           job.Number,
			CustomerName:        job.CustomerName,
			TechnicianID:        bestTech.ID,
			TechnicianName:      bestTech.Name,
			CurrentTechnicianID: current.ID,
			Score:               percent(best.TotalScore),
			CurrentScore:        percent(cur.TotalScore),
			Improvement:         improvement,
			Confidence:          cfg.confidence(percent(best.TotalScore)),
			Severity:            sev,
			Slot:                FindSlot(cfg, job, bestTech, day.JobsFor(bestTech.ID), day),
			Justification:       justifyReassignment(*best, cur),
			Fitness:             *best,
		})
	}
	return out
}

func justifyReassignment(alt, cur model.FitnessResult) string {
	var parts []string
	if len(alt.MatchedSkills) > 0 && alt.Breakdown.Skill > cur.Breakdown.Skill {
		parts = append(parts, "Better skill match ("+strings.Join(alt.MatchedSkills, ", ")+")")
	}
	if alt.Breakdown.Proximity > 0.7 {
		parts = append(parts, "Closer to the job")
	}
	if cur.MaxJobs > 0 && float64(cur.CurrentJobs)/float64(cur.MaxJobs) > 0.8 {
		parts = append(parts, "Current technician is near capacity")
	}
	if alt.Breakdown.RouteEfficiency > 0.5 {
		parts = append(parts, "Fits the existing route")
	}
	if len(parts) == 0 {
		return "Higher overall fitness"
	}
	return strings.Join(parts, "; ")
}
