package opt

import (
	"fmt"
	"sort"
	"strings"

	"techdispatch/internal/model"
)

// DetectConflicts scans every technician's day and returns the findings sorted
// by severity (high first); equal severities keep discovery order.
func DetectConflicts(cfg Config, techs []model.Technician, day Day) []model.Conflict {
	out := []model.Conflict{}
	counts := make(map[string]int, len(techs))
	for _, t := range techs {
		counts[t.ID] = day.CountFor(t.ID)
	}
	for _, t := range techs {
		mine := day.JobsFor(t.ID)
		out = append(out, missingTimes(cfg, t, mine)...)
		out = append(out, spacing(cfg, t, mine)...)
		if c, ok := overloaded(cfg, t, mine, techs, counts); ok {
			out = append(out, c)
		}
		if c, ok := longWorkday(cfg, t, mine); ok {
			out = append(out, c)
		}
	}
	out = append(out, multipleAssignments(cfg, day)...)
	sort.SliceStable(out, func(a, b int) bool { return out[a].Severity.Rank() < out[b].Severity.Rank() })
	return out
}

func conflictID(typ model.ConflictType, techID, jobID string) string {
	if jobID == "" {
		return fmt.Sprintf("%s-%s", typ, techID)
	}
	return fmt.Sprintf("%s-%s-%s", typ, techID, jobID)
}

func jobLabel(j model.Job) string {
	if j.Number != "" {
		return "#" + j.Number
	}
	return j.ID
}

func techLabel(t model.Technician) string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

func missingTimes(cfg Config, t model.Technician, mine []model.Job) []model.Conflict {
	var out []model.Conflict
	for _, j := range mine {
		if j.ScheduledTime != "" {
			continue
		}
		out = append(out, model.Conflict{
			ID:            conflictID(model.ConflictMissingTime, t.ID, j.ID),
			Type:          model.ConflictMissingTime,
			Severity:      model.SeverityMedium,
			TechnicianIDs: []string{t.ID},
			JobIDs:        []string{j.ID},
			Message:       fmt.Sprintf("Job %s for %s has no scheduled time", jobLabel(j), techLabel(t)),
			SuggestedFix:  "Set a start time, e.g. " + strings.Join(cfg.MissingTimeSuggestions, ", "),
			Action: model.SuggestedAction{
				Kind:           "set_time",
				JobID:          j.ID,
				TechnicianID:   t.ID,
				CandidateTimes: append([]string(nil), cfg.MissingTimeSuggestions...),
			},
		})
	}
	return out
}

// spacing walks adjacent timed jobs for overlaps and short travel gaps.
func spacing(cfg Config, t model.Technician, mine []model.Job) []model.Conflict {
	var out []model.Conflict
	sched := timed(mine)
	for i := 0; i+1 < len(sched); i++ {
		cur, next := sched[i], sched[i+1]
		travel := cfg.legMinutes(cur.Job, next.Job)
		if next.Start < cur.End {
			overlap := cur.End - next.Start
			newTime := model.FormatClock(cur.End + travel)
			out = append(out, model.Conflict{
				ID:             conflictID(model.ConflictOverlap, t.ID, next.ID),
				Type:           model.ConflictOverlap,
				Severity:       model.SeverityHigh,
				TechnicianIDs:  []string{t.ID},
				JobIDs:         []string{cur.ID, next.ID},
				Message:        fmt.Sprintf("Jobs %s and %s overlap by %d minutes for %s", jobLabel(cur.Job), jobLabel(next.Job), overlap, techLabel(t)),
				SuggestedFix:   fmt.Sprintf("Move job %s to %s", jobLabel(next.Job), newTime),
				Action:         model.SuggestedAction{Kind: "reschedule", JobID: next.ID, TechnicianID: t.ID, NewTime: newTime},
				OverlapMinutes: overlap,
			})
			continue
		}
		gap := next.Start - cur.End
		if gap < travel {
			newTime := model.FormatClock(cur.End + travel)
			out = append(out, model.Conflict{
				ID:               conflictID(model.ConflictInsufficientTravel, t.ID, next.ID),
				Type:             model.ConflictInsufficientTravel,
				Severity:         model.SeverityMedium,
				TechnicianIDs:    []string{t.ID},
				JobIDs:           []string{cur.ID, next.ID},
				Message:          fmt.Sprintf("Only %d minutes between %s and %s for %s, about %d needed to travel", gap, jobLabel(cur.Job), jobLabel(next.Job), techLabel(t), travel),
				SuggestedFix:     fmt.Sprintf("Move job %s to %s", jobLabel(next.Job), newTime),
				Action:           model.SuggestedAction{Kind: "reschedule", JobID: next.ID, TechnicianID: t.ID, NewTime: newTime},
				ShortfallMinutes: travel - gap,
				RequiredMinutes:  travel,
			})
		}
	}
	return out
}

func overloaded(cfg Config, t model.Technician, mine []model.Job, techs []model.Technician, counts map[string]int) (model.Conflict, bool) {
	count := len(mine)
	if count <= t.MaxJobsPerDay {
		return model.Conflict{}, false
	}
	excess := count - t.MaxJobsPerDay
	sev := model.SeverityMedium
	if count > t.MaxJobsPerDay+cfg.OverloadHighMargin {
		sev = model.SeverityHigh
	}

	// untimed jobs move first, then the latest-starting ones
	movable := make([]model.Job, 0, count)
	for _, j := range mine {
		if j.ScheduledTime == "" {
			movable = append(movable, j)
		}
	}
	sched := timed(mine)
	for i := len(sched) - 1; i >= 0; i-- {
		movable = append(movable, sched[i].Job)
	}
	if len(movable) > excess {
		movable = movable[:excess]
	}
	jobIDs := make([]string, 0, len(movable))
	for _, j := range movable {
		jobIDs = append(jobIDs, j.ID)
	}

	type spare struct {
		id   string
		free int
	}
	var spares []spare
	for _, o := range techs {
		if o.ID == t.ID {
			continue
		}
		if free := o.MaxJobsPerDay - counts[o.ID]; free > 0 {
			spares = append(spares, spare{id: o.ID, free: free})
		}
	}
	sort.SliceStable(spares, func(a, b int) bool { return spares[a].free > spares[b].free })
	if len(spares) > cfg.OverloadAlternatives {
		spares = spares[:cfg.OverloadAlternatives]
	}
	alts := make([]string, 0, len(spares))
	for _, s := range spares {
		alts = append(alts, s.id)
	}

	fix := fmt.Sprintf("Reassign %d job(s)", excess)
	if len(alts) > 0 {
		fix += " to " + strings.Join(alts, ", ")
	}
	return model.Conflict{
		ID:            conflictID(model.ConflictOverloaded, t.ID, ""),
		Type:          model.ConflictOverloaded,
		Severity:      sev,
		TechnicianIDs: []string{t.ID},
		JobIDs:        jobIDs,
		Message:       fmt.Sprintf("%s has %d jobs, max is %d", techLabel(t), count, t.MaxJobsPerDay),
		SuggestedFix:  fix,
		Action: model.SuggestedAction{
			Kind:                     "reassign",
			TechnicianID:             t.ID,
			JobIDs:                   jobIDs,
			AlternativeTechnicianIDs: alts,
		},
		ExcessJobs: excess,
	}, true
}

func longWorkday(cfg Config, t model.Technician, mine []model.Job) (model.Conflict, bool) {
	sched := timed(mine)
	if len(sched) < 2 {
		return model.Conflict{}, false
	}
	span := sched[len(sched)-1].End - sched[0].Start
	hours := float64(span) / 60
	if hours <= cfg.LongWorkdayHours {
		return model.Conflict{}, false
	}
	sev := model.SeverityLow
	if hours > cfg.VeryLongWorkdayHours {
		sev = model.SeverityHigh
	}
	ids := make([]string, 0, len(sched))
	for _, tj := range sched {
		ids = append(ids, tj.ID)
	}
	return model.Conflict{
		ID:            conflictID(model.ConflictLongWorkday, t.ID, ""),
		Type:          model.ConflictLongWorkday,
		Severity:      sev,
		TechnicianIDs: []string{t.ID},
		JobIDs:        ids,
		Message:       fmt.Sprintf("%s is scheduled across %.1f hours (%s to %s)", techLabel(t), hours, model.FormatClock(sched[0].Start), model.FormatClock(sched[len(sched)-1].End)),
		SuggestedFix:  "Move the last job to another technician or another day",
		Action: model.SuggestedAction{
			Kind:         "split_day",
			TechnicianID: t.ID,
			JobID:        sched[len(sched)-1].ID,
			JobIDs:       ids,
		},
		SpanHours: hours,
	}, true
}

// multipleAssignments flags jobs staffed by several technicians unless the job
// type is one that normally needs a team.
func multipleAssignments(cfg Config, day Day) []model.Conflict {
	var out []model.Conflict
	for _, j := range day.Jobs {
		if j.ScheduledDate != day.Date || !j.Active() || len(j.AssignedTechnicians) < 2 {
			continue
		}
		if isTeamJob(cfg, j.JobType) {
			continue
		}
		out = append(out, model.Conflict{
			ID:            conflictID(model.ConflictMultipleAssignment, strings.Join(j.AssignedTechnicians, "+"), j.ID),
			Type:          model.ConflictMultipleAssignment,
			Severity:      model.SeverityLow,
			TechnicianIDs: append([]string(nil), j.AssignedTechnicians...),
			JobIDs:        []string{j.ID},
			Message:       fmt.Sprintf("Job %s has %d technicians assigned", jobLabel(j), len(j.AssignedTechnicians)),
			SuggestedFix:  "Review whether this job needs more than one technician",
			Action: model.SuggestedAction{
				Kind:                     "review_assignment",
				JobID:                    j.ID,
				AlternativeTechnicianIDs: append([]string(nil), j.AssignedTechnicians...),
			},
		})
	}
	return out
}

func isTeamJob(cfg Config, jobType string) bool {
	jt := strings.ToLower(jobType)
	for _, term := range cfg.TeamJobTypes {
		if strings.Contains(jt, term) {
			return true
		}
	}
	return false
}
