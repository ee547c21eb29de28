package opt

import (
	"sort"
	"time"

	"techdispatch/internal/model"
)

// Day is the read-only context shared by every computation for one target date.
type Day struct {
	Date       string
	Jobs       []model.Job
	Leaves     []model.Leave
	ClosedDays []model.ClosedDay
}

// NewDay builds the context from a canonical snapshot.
func NewDay(s model.Snapshot) Day {
	return Day{Date: s.Date, Jobs: s.Jobs, Leaves: s.Leaves, ClosedDays: s.ClosedDays}
}

// JobsFor returns the technician's active jobs on the target date, in input order.
func (d Day) JobsFor(techID string) []model.Job {
	var out []model.Job
	for _, j := range d.Jobs {
		if j.ScheduledDate == d.Date && j.Active() && j.AssignedTo(techID) {
			out = append(out, j)
		}
	}
	return out
}

// CountFor is the technician's same-day load excluding cancelled and completed jobs.
func (d Day) CountFor(techID string) int {
	return len(d.JobsFor(techID))
}

func (d Day) bounds() (time.Time, time.Time, bool) {
	start, err := time.Parse("2006-01-02", d.Date)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, start.Add(24 * time.Hour), true
}

// ClosedAllDay reports a full-day business closure touching the target date.
func (d Day) ClosedAllDay() bool {
	start, end, ok := d.bounds()
	if !ok {
		return false
	}
	for _, c := range d.ClosedDays {
		if c.FullDay && c.Start.Before(end) && c.End.After(start) {
			return true
		}
	}
	return false
}

// timed returns jobs with a start time, sorted ascending; ties keep input order.
func timed(jobs []model.Job) []timedJob {
	out := make([]timedJob, 0, len(jobs))
	for _, j := range jobs {
		if m, ok := model.ParseClock(j.ScheduledTime); ok && j.ScheduledTime != "" {
			out = append(out, timedJob{Job: j, Start: m, End: m + j.DurationMinutes()})
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Start < out[b].Start })
	return out
}

type timedJob struct {
	model.Job
	Start int
	End   int
}
