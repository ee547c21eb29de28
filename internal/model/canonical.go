package model

import (
    "encoding/json"
    "fmt"
    "strings"
    "time"
)

// Records arrive from several upstream shapes (snake_case exports, older camelCase
// payloads). The UnmarshalJSON methods below fold the known aliases into the
// canonical fields; Snapshot.Canonicalize then applies defaults once.

func (j *Job) UnmarshalJSON(b []byte) error {
    type plain Job
    var raw struct {
        plain
        JobNumber          string   `json:"job_number"`
        CustomerNameSnake  string   `json:"customer_name"`
        Latitude           *float64 `json:"latitude"`
        Longitude          *float64 `json:"longitude"`
        JobTypeName        string   `json:"job_type_name"`
        JobTypeNameCamel   string   `json:"jobTypeName"`
        JobTypeSnake       string   `json:"job_type"`
        ProductName        string   `json:"product_name"`
        ScheduledDateSnake string   `json:"scheduled_date"`
        ScheduledTimeSnake string   `json:"scheduled_time"`
        ExpectedDuration   float64  `json:"expected_duration"`
        DurationSnake      float64  `json:"duration_hours"`
        AssignedSnake      []string `json:"assigned_technicians"`
    }
    if err := json.Unmarshal(b, &raw); err != nil { return err }
    *j = Job(raw.plain)
    j.Number = firstNonEmpty(j.Number, raw.JobNumber)
    j.CustomerName = firstNonEmpty(j.CustomerName, raw.CustomerNameSnake)
    if j.Lat == nil { j.Lat = raw.Latitude }
    if j.Lng == nil { j.Lng = raw.Longitude }
    j.JobType = firstNonEmpty(j.JobType, raw.JobTypeName, raw.JobTypeNameCamel, raw.JobTypeSnake)
    j.Product = firstNonEmpty(j.Product, raw.ProductName)
    j.ScheduledDate = firstNonEmpty(j.ScheduledDate, raw.ScheduledDateSnake)
    j.ScheduledTime = firstNonEmpty(j.ScheduledTime, raw.ScheduledTimeSnake)
    if j.DurationHours == 0 { j.DurationHours = raw.DurationSnake }
    if j.DurationHours == 0 { j.DurationHours = raw.ExpectedDuration }
    if len(j.AssignedTechnicians) == 0 { j.AssignedTechnicians = raw.AssignedSnake }
    return nil
}

func (t *Technician) UnmarshalJSON(b []byte) error {
    type plain Technician
    var raw struct {
        plain
        Email        string   `json:"email"`
        FullName     string   `json:"full_name"`
        HomeLatSnake *float64 `json:"home_lat"`
        HomeLngSnake *float64 `json:"home_lng"`
        HomeLatitude *float64 `json:"home_latitude"`
        HomeLongitude *float64 `json:"home_longitude"`
        MaxJobsSnake int      `json:"max_jobs_per_day"`
    }
    if err := json.Unmarshal(b, &raw); err != nil { return err }
    *t = Technician(raw.plain)
    t.ID = firstNonEmpty(t.ID, raw.Email)
    t.Name = firstNonEmpty(t.Name, raw.FullName)
    if t.HomeLat == nil { t.HomeLat = firstFloat(raw.HomeLatSnake, raw.HomeLatitude) }
    if t.HomeLng == nil { t.HomeLng = firstFloat(raw.HomeLngSnake, raw.HomeLongitude) }
    if t.MaxJobsPerDay == 0 { t.MaxJobsPerDay = raw.MaxJobsSnake }
    return nil
}

func (l *Leave) UnmarshalJSON(b []byte) error {
    var raw struct {
        TechnicianID    string `json:"technicianId"`
        TechnicianEmail string `json:"technician_email"`
        UserEmail       string `json:"user_email"`
        Start           string `json:"start"`
        StartDate       string `json:"startDate"`
        StartSnake      string `json:"start_date"`
        End             string `json:"end"`
        EndDate         string `json:"endDate"`
        EndSnake        string `json:"end_date"`
        Reason          string `json:"reason"`
    }
    if err := json.Unmarshal(b, &raw); err != nil { return err }
    start, _, err := ParseInstant(firstNonEmpty(raw.Start, raw.StartDate, raw.StartSnake))
    if err != nil { return fmt.Errorf("leave start: %w", err) }
    end, dateOnly, err := ParseInstant(firstNonEmpty(raw.End, raw.EndDate, raw.EndSnake))
    if err != nil { return fmt.Errorf("leave end: %w", err) }
    if dateOnly { end = end.Add(24 * time.Hour) }
    *l = Leave{
        TechnicianID: firstNonEmpty(raw.TechnicianID, raw.TechnicianEmail, raw.UserEmail),
        Start:        start,
        End:          end,
        Reason:       raw.Reason,
    }
    return nil
}

func (c *ClosedDay) UnmarshalJSON(b []byte) error {
    var raw struct {
        Date      string `json:"date"`
        Start     string `json:"start"`
        StartDate string `json:"start_date"`
        End       string `json:"end"`
        EndDate   string `json:"end_date"`
        FullDay   *bool  `json:"fullDay"`
        FullSnake *bool  `json:"full_day"`
        IsFullDay *bool  `json:"is_full_day"`
        Reason    string `json:"reason"`
    }
    if err := json.Unmarshal(b, &raw); err != nil { return err }
    full := false
    for _, p := range []*bool{raw.FullDay, raw.FullSnake, raw.IsFullDay} {
        if p != nil { full = *p; break }
    }
    start, _, err := ParseInstant(firstNonEmpty(raw.Start, raw.StartDate, raw.Date))
    if err != nil { return fmt.Errorf("closed day start: %w", err) }
    var end time.Time
    if s := firstNonEmpty(raw.End, raw.EndDate); s != "" {
        var dateOnly bool
        end, dateOnly, err = ParseInstant(s)
        if err != nil { return fmt.Errorf("closed day end: %w", err) }
        if dateOnly { end = end.Add(24 * time.Hour) }
    } else if !start.IsZero() {
        end = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
    }
    *c = ClosedDay{Start: start, End: end, FullDay: full, Reason: raw.Reason}
    return nil
}

var instantLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"}

// ParseInstant accepts RFC3339, zone-less timestamps (read as UTC) and bare dates.
// dateOnly is true for bare dates so callers can widen end bounds to the whole day.
func ParseInstant(s string) (t time.Time, dateOnly bool, err error) {
    s = strings.TrimSpace(s)
    if s == "" { return time.Time{}, false, nil }
    for _, layout := range instantLayouts {
        if t, err := time.Parse(layout, s); err == nil { return t.UTC(), false, nil }
    }
    if t, err := time.Parse("2006-01-02", s); err == nil { return t, true, nil }
    return time.Time{}, false, fmt.Errorf("unrecognized time %q", s)
}

// ParseClock converts "H:MM", "HH:MM" or "HH:MM:SS" into minutes since midnight.
func ParseClock(s string) (int, bool) {
    s = strings.TrimSpace(s)
    var h, m int
    if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil { return 0, false }
    if h < 0 || h > 23 || m < 0 || m > 59 { return 0, false }
    return h*60 + m, true
}

// FormatClock renders minutes since midnight as zero-padded "HH:MM".
func FormatClock(min int) string {
    if min < 0 { min = 0 }
    return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// NormalizeDate trims timestamps down to their YYYY-MM-DD prefix; invalid input yields "".
func NormalizeDate(s string) string {
    s = strings.TrimSpace(s)
    if len(s) < 10 { return "" }
    if _, err := time.Parse("2006-01-02", s[:10]); err != nil { return "" }
    return s[:10]
}

// Canonicalize returns a copy with defaults applied and aliases resolved.
// Engine code assumes its input went through this exactly once.
func (s Snapshot) Canonicalize() Snapshot {
    out := Snapshot{Date: NormalizeDate(s.Date), JobTypes: s.JobTypes}
    defaults := map[string]float64{}
    for _, jt := range s.JobTypes {
        if jt.DefaultDurationHours > 0 { defaults[strings.ToLower(strings.TrimSpace(jt.Name))] = jt.DefaultDurationHours }
    }
    out.Jobs = make([]Job, 0, len(s.Jobs))
    for _, j := range s.Jobs {
        out.Jobs = append(out.Jobs, canonicalJob(j, defaults))
    }
    out.Technicians = make([]Technician, 0, len(s.Technicians))
    for _, t := range s.Technicians {
        t.ID = canonicalID(t.ID)
        if t.ID == "" { continue }
        if t.MaxJobsPerDay <= 0 { t.MaxJobsPerDay = DefaultMaxJobsPerDay }
        skills := make([]string, 0, len(t.Skills))
        for _, sk := range t.Skills {
            if sk = strings.TrimSpace(sk); sk != "" { skills = append(skills, sk) }
        }
        t.Skills = skills
        if t.HomeLat == nil || t.HomeLng == nil { t.HomeLat, t.HomeLng = nil, nil }
        out.Technicians = append(out.Technicians, t)
    }
    out.Leaves = make([]Leave, 0, len(s.Leaves))
    for _, l := range s.Leaves {
        l.TechnicianID = canonicalID(l.TechnicianID)
        if l.TechnicianID == "" || !l.End.After(l.Start) { continue }
        out.Leaves = append(out.Leaves, l)
    }
    out.ClosedDays = make([]ClosedDay, 0, len(s.ClosedDays))
    for _, c := range s.ClosedDays {
        if !c.End.After(c.Start) { continue }
        out.ClosedDays = append(out.ClosedDays, c)
    }
    out.CheckIns = make([]CheckIn, 0, len(s.CheckIns))
    for _, ci := range s.CheckIns {
        ci.TechnicianID = canonicalID(ci.TechnicianID)
        out.CheckIns = append(out.CheckIns, ci)
    }
    return out
}

const (
    DefaultDurationHours  = 1.0
    DefaultMaxJobsPerDay  = 6
)

func canonicalJob(j Job, defaults map[string]float64) Job {
    j.Status = strings.ToLower(strings.TrimSpace(j.Status))
    if j.Status == "" { j.Status = StatusOpen }
    if j.Status == "canceled" { j.Status = StatusCancelled }
    j.ScheduledDate = NormalizeDate(j.ScheduledDate)
    if m, ok := ParseClock(j.ScheduledTime); ok {
        j.ScheduledTime = FormatClock(m)
    } else {
        j.ScheduledTime = ""
    }
    if j.DurationHours <= 0 {
        if d, ok := defaults[strings.ToLower(strings.TrimSpace(j.JobType))]; ok {
            j.DurationHours = d
        } else {
            j.DurationHours = DefaultDurationHours
        }
    }
    if j.Lat == nil || j.Lng == nil { j.Lat, j.Lng = nil, nil }
    seen := map[string]bool{}
    assigned := make([]string, 0, len(j.AssignedTechnicians))
    for _, id := range j.AssignedTechnicians {
        id = canonicalID(id)
        if id == "" || seen[id] { continue }
        seen[id] = true
        assigned = append(assigned, id)
    }
    j.AssignedTechnicians = assigned
    return j
}

// technician ids are email-like, compare case-insensitively
func canonicalID(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func firstNonEmpty(vals ...string) string {
    for _, v := range vals {
        if strings.TrimSpace(v) != "" { return v }
    }
    return ""
}

func firstFloat(vals ...*float64) *float64 {
    for _, v := range vals {
        if v != nil { return v }
    }
    return nil
}
