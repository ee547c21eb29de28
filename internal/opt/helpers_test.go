package opt

import "techdispatch/internal/model"

const testDate = "2025-03-10"

func fp(v float64) *float64 { return &v }

func newJob(id, clock string, techs ...string) model.Job {
	return model.Job{
		ID:                  id,
		Number:              id,
		ScheduledDate:       testDate,
		ScheduledTime:       clock,
		DurationHours:       1,
		AssignedTechnicians: techs,
		Status:              model.StatusScheduled,
	}
}

func at(j model.Job, lat, lng float64) model.Job {
	j.Lat, j.Lng = fp(lat), fp(lng)
	return j
}

func newTech(id string, skills ...string) model.Technician {
	return model.Technician{ID: id, Name: id, Skills: skills, MaxJobsPerDay: 6}
}

func dayOf(jobs ...model.Job) Day {
	return Day{Date: testDate, Jobs: jobs}
}
