package api

import (
	"fmt"
	"strings"
	"time"

	"techdispatch/internal/model"
)

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func validateSnapshot(snap *model.Snapshot) error {
	if model.NormalizeDate(snap.Date) == "" {
		return fmt.Errorf("date must be YYYY-MM-DD, got %q", snap.Date)
	}
	for _, j := range snap.Jobs {
		if strings.TrimSpace(j.ID) == "" {
			return fmt.Errorf("job id is required")
		}
		if j.ScheduledDate != "" && model.NormalizeDate(j.ScheduledDate) == "" {
			return fmt.Errorf("job %s: invalid scheduledDate %q", j.ID, j.ScheduledDate)
		}
		if j.ScheduledTime != "" {
			if _, ok := model.ParseClock(j.ScheduledTime); !ok {
				return fmt.Errorf("job %s: scheduledTime must be HH:MM, got %q", j.ID, j.ScheduledTime)
			}
		}
		if j.DurationHours < 0 {
			return fmt.Errorf("job %s: durationHours must be >= 0", j.ID)
		}
		if p, ok := j.Point(); ok && (p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180) {
			return fmt.Errorf("job %s: coordinates out of range", j.ID)
		}
	}
	for _, t := range snap.Technicians {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("technician id is required")
		}
		if t.MaxJobsPerDay < 0 {
			return fmt.Errorf("technician %s: maxJobsPerDay must be >= 0", t.ID)
		}
	}
	for _, l := range snap.Leaves {
		if !l.Start.IsZero() && !l.End.IsZero() && l.End.Before(l.Start) {
			return fmt.Errorf("leave for %s ends before it starts", l.TechnicianID)
		}
	}
	for _, c := range snap.ClosedDays {
		if !c.Start.IsZero() && !c.End.IsZero() && c.End.Before(c.Start) {
			return fmt.Errorf("closed day %s ends before it starts", c.Start.Format("2006-01-02"))
		}
	}
	return nil
}

func validateCheckIn(c model.CheckIn) error {
	if strings.TrimSpace(c.TechnicianID) == "" {
		return fmt.Errorf("technicianId is required")
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("coordinates out of range")
	}
	return nil
}
