package opt

import (
	"math"
	"sort"
	"strings"

	"techdispatch/internal/model"
)

// UnassignedJobs lists open work for the target date (or undated) with nobody assigned.
func UnassignedJobs(day Day) []model.Job {
	var out []model.Job
	for _, j := range day.Jobs {
		if j.Assigned() || !j.Active() {
			continue
		}
		if j.ScheduledDate != "" && j.ScheduledDate != day.Date {
			continue
		}
		out = append(out, j)
	}
	return out
}

// PlanAssignments ranks available technicians for up to cfg.BatchSize unassigned
// jobs. The best candidate becomes the suggestion; it is also an auto-dispatch
// recommendation when its score clears the threshold and a slot exists.
func PlanAssignments(cfg Config, jobs []model.Job, techs []model.Technician, day Day) ([]model.Suggestion, []model.Recommendation) {
	suggestions := []model.Suggestion{}
	recs := []model.Recommendation{}
	if len(jobs) > cfg.BatchSize {
		jobs = jobs[:cfg.BatchSize]
	}
	for _, job := range jobs {
		var cands []model.Candidate
		for _, t := range techs {
			fit := ScoreFitness(cfg, job, t, day)
			if !fit.IsAvailable {
				continue
			}
			cands = append(cands, model.Candidate{
				TechnicianID:   t.ID,
				TechnicianName: t.Name,
				Score:          percent(fit.TotalScore),
				Fitness:        fit,
				Slot:           FindSlot(cfg, job, t, day.JobsFor(t.ID), day),
			})
		}
		if len(cands) == 0 {
			continue
		}
		sort.SliceStable(cands, func(a, b int) bool { return cands[a].Fitness.TotalScore > cands[b].Fitness.TotalScore })

		top := cands[0]
		alts := cands[1:]
		if len(alts) > cfg.Alternatives {
			alts = alts[:cfg.Alternatives]
		}
		s := model.Suggestion{
			Type:           model.SuggestionAssignment,
			JobID:          job.ID,
			JobNumber:      job.Number,
			CustomerName:   job.CustomerName,
			TechnicianID:   top.TechnicianID,
			TechnicianName: top.TechnicianName,
			Score:          top.Score,
			Confidence:     cfg.confidence(top.Score),
			Slot:           top.Slot,
			Justification:  justifyAssignment(top.Fitness),
			Alternatives:   append([]model.Candidate(nil), alts...),
			Fitness:        top.Fitness,
		}
		suggestions = append(suggestions, s)
		if top.Score >= cfg.AutoDispatchThreshold && top.Slot != nil {
			recs = append(recs, model.Recommendation{
				JobID:          job.ID,
				JobNumber:      job.Number,
				TechnicianID:   top.TechnicianID,
				TechnicianName: top.TechnicianName,
				Score:          top.Score,
				SuggestedTime:  top.Slot.SuggestedTime,
				Justification:  s.Justification,
			})
		}
	}
	return suggestions, recs
}

func justifyAssignment(f model.FitnessResult) string {
	var parts []string
	b := f.Breakdown
	switch {
	case b.Skill >= 0.7:
		parts = append(parts, "Strong skill match")
	case b.Skill >= 0.4:
		parts = append(parts, "Partial skill match")
	}
	if b.Proximity >= 0.7 {
		parts = append(parts, "Close to technician's home")
	}
	switch {
	case b.Availability >= 0.8:
		parts = append(parts, "Light schedule")
	case b.Availability >= 0.5:
		parts = append(parts, "Has capacity")
	}
	if b.RouteEfficiency >= 0.6 {
		parts = append(parts, "Near other jobs on the route")
	}
	if n := len(f.MatchedSkills); n > 0 {
		if n > 2 {
			n = 2
		}
		parts = append(parts, "Skills: "+strings.Join(f.MatchedSkills[:n], ", "))
	}
	if len(parts) == 0 {
		return "Best available option"
	}
	return strings.Join(parts, "; ")
}

func percent(score float64) int { return int(math.Round(score * 100)) }
