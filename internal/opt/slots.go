package opt

import (
	"fmt"
	"time"

	"techdispatch/internal/model"
)

// IsSlotBlocked reports whether [startMin, startMin+durationMin) on date overlaps
// one of techID's leaves or any closed-day interval (half-open overlap).
func IsSlotBlocked(date string, startMin, durationMin int, techID string, leaves []model.Leave, closed []model.ClosedDay) bool {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return false
	}
	s := day.Add(time.Duration(startMin) * time.Minute)
	e := s.Add(time.Duration(durationMin) * time.Minute)
	for _, l := range leaves {
		if l.TechnicianID == techID && s.Before(l.End) && e.After(l.Start) {
			return true
		}
	}
	for _, c := range closed {
		if s.Before(c.End) && e.After(c.Start) {
			return true
		}
	}
	return false
}

type slotCandidate struct {
	start  int
	score  float64
	reason string
	travel *int
}

// FindSlot looks for a start time for job inside tech's existing day. It is a
// first-fit-by-score heuristic over three windows (before the first job, between
// adjacent jobs, after the last job) and returns nil when none fits.
func FindSlot(cfg Config, job model.Job, tech model.Technician, existing []model.Job, day Day) *model.TimeSlot {
	dur := job.DurationMinutes()
	blocked := func(start int) bool {
		return IsSlotBlocked(day.Date, start, dur, tech.ID, day.Leaves, day.ClosedDays)
	}

	others := make([]model.Job, 0, len(existing))
	for _, j := range existing {
		if j.ID != job.ID {
			others = append(others, j)
		}
	}
	sched := timed(others)
	if len(sched) == 0 {
		if blocked(cfg.FirstJobTime) {
			return nil
		}
		reason := "First job of the day"
		if len(others) > 0 {
			reason = "No timed jobs scheduled yet"
		}
		return &model.TimeSlot{SuggestedTime: model.FormatClock(cfg.FirstJobTime), Reason: reason}
	}

	var cands []slotCandidate
	first := sched[0]
	if first.Start-cfg.WorkdayStart >= dur+cfg.EdgeBufferMinutes && !blocked(cfg.WorkdayStart) {
		cands = append(cands, slotCandidate{
			start:  cfg.WorkdayStart,
			score:  cfg.SlotScoreBefore,
			reason: fmt.Sprintf("Before first job at %s", model.FormatClock(first.Start)),
		})
	}

	// curEnd tracks the latest end so far so a long earlier job is never overlapped.
	curEnd := first.End
	for i := 0; i+1 < len(sched); i++ {
		cur, next := sched[i], sched[i+1]
		if cur.End > curEnd {
			curEnd = cur.End
		}
		travel := cfg.legMinutes(cur.Job, job)
		if next.Start-curEnd >= dur+travel+cfg.BetweenBufferMinutes {
			start := curEnd + travel
			if !blocked(start) {
				t := travel
				cands = append(cands, slotCandidate{
					start:  start,
					score:  cfg.SlotScoreBetween,
					reason: fmt.Sprintf("Between jobs at %s and %s (%d min travel)", model.FormatClock(cur.Start), model.FormatClock(next.Start), travel),
					travel: &t,
				})
			}
		}
	}

	last := sched[len(sched)-1]
	lastEnd := last.End
	for _, tj := range sched {
		if tj.End > lastEnd {
			lastEnd = tj.End
		}
	}
	if cfg.WorkdayEnd-lastEnd >= dur+cfg.EdgeBufferMinutes {
		travel := cfg.legMinutes(last.Job, job)
		start := lastEnd + travel
		if !blocked(start) {
			t := travel
			cands = append(cands, slotCandidate{
				start:  start,
				score:  cfg.SlotScoreAfter,
				reason: fmt.Sprintf("After last job (%d min travel)", travel),
				travel: &t,
			})
		}
	}

	if len(cands) == 0 {
		return nil
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.score > best.score {
			best = c
		}
	}
	return &model.TimeSlot{SuggestedTime: model.FormatClock(best.start), Reason: best.reason, TravelMinutes: best.travel}
}
