package model

import "time"

// Job statuses the engine distinguishes. Anything else is treated as open work.
const (
    StatusOpen      = "open"
    StatusScheduled = "scheduled"
    StatusCompleted = "completed"
    StatusCancelled = "cancelled"
)

type GeoPoint struct {
    Lat float64 `json:"lat"`
    Lng float64 `json:"lng"`
}

// Job is a unit of field work. ScheduledDate and ScheduledTime are empty when unset.
type Job struct {
    ID                  string   `json:"id"`
    Number              string   `json:"number,omitempty"`
    CustomerName        string   `json:"customerName,omitempty"`
    Address             string   `json:"address,omitempty"`
    Lat                 *float64 `json:"lat,omitempty"`
    Lng                 *float64 `json:"lng,omitempty"`
    JobType             string   `json:"jobType,omitempty"`
    Product             string   `json:"product,omitempty"`
    ScheduledDate       string   `json:"scheduledDate,omitempty"`
    ScheduledTime       string   `json:"scheduledTime,omitempty"`
    DurationHours       float64  `json:"durationHours"`
    AssignedTechnicians []string `json:"assignedTechnicians"`
    Status              string   `json:"status,omitempty"`
}

// Point returns the job coordinate when both halves are present.
func (j Job) Point() (GeoPoint, bool) {
    if j.Lat == nil || j.Lng == nil { return GeoPoint{}, false }
    return GeoPoint{Lat: *j.Lat, Lng: *j.Lng}, true
}

// Active reports whether the job still counts toward a technician's day.
func (j Job) Active() bool {
    return j.Status != StatusCancelled && j.Status != StatusCompleted
}

func (j Job) Assigned() bool { return len(j.AssignedTechnicians) > 0 }

func (j Job) AssignedTo(techID string) bool {
    for _, t := range j.AssignedTechnicians {
        if t == techID { return true }
    }
    return false
}

// DurationMinutes is the expected on-site time.
func (j Job) DurationMinutes() int { return int(j.DurationHours * 60) }

type Technician struct {
    ID            string   `json:"id"`
    Name          string   `json:"name,omitempty"`
    Skills        []string `json:"skills"`
    HomeLat       *float64 `json:"homeLat,omitempty"`
    HomeLng       *float64 `json:"homeLng,omitempty"`
    MaxJobsPerDay int      `json:"maxJobsPerDay"`
}

func (t Technician) Home() (GeoPoint, bool) {
    if t.HomeLat == nil || t.HomeLng == nil { return GeoPoint{}, false }
    return GeoPoint{Lat: *t.HomeLat, Lng: *t.HomeLng}, true
}

// Leave is a technician's unavailability interval [Start, End).
type Leave struct {
    TechnicianID string    `json:"technicianId"`
    Start        time.Time `json:"start"`
    End          time.Time `json:"end"`
    Reason       string    `json:"reason,omitempty"`
}

// ClosedDay is a business-wide unavailability interval [Start, End).
type ClosedDay struct {
    Start   time.Time `json:"start"`
    End     time.Time `json:"end"`
    FullDay bool      `json:"fullDay"`
    Reason  string    `json:"reason,omitempty"`
}

// JobType carries per-type defaults used during canonicalization.
type JobType struct {
    Name                 string  `json:"name"`
    DefaultDurationHours float64 `json:"defaultDurationHours,omitempty"`
}

// CheckIn is the latest known position of a technician.
type CheckIn struct {
    TechnicianID string    `json:"technicianId"`
    Lat          float64   `json:"lat"`
    Lng          float64   `json:"lng"`
    At           time.Time `json:"at"`
}

// Snapshot is the immutable input to one evaluation.
type Snapshot struct {
    Date        string       `json:"date"`
    Jobs        []Job        `json:"jobs"`
    Technicians []Technician `json:"technicians"`
    Leaves      []Leave      `json:"leaves"`
    ClosedDays  []ClosedDay  `json:"closedDays"`
    JobTypes    []JobType    `json:"jobTypes,omitempty"`
    CheckIns    []CheckIn    `json:"checkIns,omitempty"`
}

type FitnessBreakdown struct {
    Skill           float64 `json:"skill"`
    Proximity       float64 `json:"proximity"`
    Availability    float64 `json:"availability"`
    Workload        float64 `json:"workload"`
    RouteEfficiency float64 `json:"routeEfficiency"`
}

type FitnessResult struct {
    TechnicianID      string           `json:"technicianId"`
    TotalScore        float64          `json:"totalScore"`
    Breakdown         FitnessBreakdown `json:"breakdown"`
    MatchedSkills     []string         `json:"matchedSkills"`
    SkillExplanation  string           `json:"skillExplanation"`
    CurrentJobs       int              `json:"currentJobs"`
    MaxJobs           int              `json:"maxJobs"`
    IsAvailable       bool             `json:"isAvailable"`
    UnavailableReason string           `json:"unavailableReason,omitempty"`
}

type TimeSlot struct {
    SuggestedTime string `json:"suggestedTime"`
    Reason        string `json:"reason"`
    TravelMinutes *int   `json:"travelMinutes,omitempty"`
}

type ConflictType string

const (
    ConflictOverlap            ConflictType = "overlap"
    ConflictInsufficientTravel ConflictType = "insufficient_travel"
    ConflictMissingTime        ConflictType = "missing_time"
    ConflictOverloaded         ConflictType = "overloaded"
    ConflictLongWorkday        ConflictType = "long_workday"
    ConflictMultipleAssignment ConflictType = "multiple_assignment"
)

type Severity string

const (
    SeverityHigh   Severity = "high"
    SeverityMedium Severity = "medium"
    SeverityLow    Severity = "low"
)

// Rank orders severities high first.
func (s Severity) Rank() int {
    switch s {
    case SeverityHigh:
        return 0
    case SeverityMedium:
        return 1
    default:
        return 2
    }
}

// SuggestedAction is the machine-applicable half of a conflict.
type SuggestedAction struct {
    Kind                     string   `json:"kind"`
    JobID                    string   `json:"jobId,omitempty"`
    TechnicianID             string   `json:"technicianId,omitempty"`
    NewTime                  string   `json:"newTime,omitempty"`
    CandidateTimes           []string `json:"candidateTimes,omitempty"`
    JobIDs                   []string `json:"jobIds,omitempty"`
    AlternativeTechnicianIDs []string `json:"alternativeTechnicianIds,omitempty"`
}

type Conflict struct {
    ID               string          `json:"id"`
    Type             ConflictType    `json:"type"`
    Severity         Severity        `json:"severity"`
    TechnicianIDs    []string        `json:"technicianIds"`
    JobIDs           []string        `json:"jobIds"`
    Message          string          `json:"message"`
    SuggestedFix     string          `json:"suggestedFix"`
    Action           SuggestedAction `json:"suggestedAction"`
    OverlapMinutes   int             `json:"overlapMinutes,omitempty"`
    ShortfallMinutes int             `json:"shortfallMinutes,omitempty"`
    RequiredMinutes  int             `json:"requiredMinutes,omitempty"`
    ExcessJobs       int             `json:"excessJobs,omitempty"`
    SpanHours        float64         `json:"spanHours,omitempty"`
}

type RouteStop struct {
    Order          int      `json:"order"`
    JobID          string   `json:"jobId"`
    JobNumber      string   `json:"jobNumber,omitempty"`
    CustomerName   string   `json:"customerName,omitempty"`
    Location       *GeoPoint `json:"location,omitempty"`
    DistanceKm     float64  `json:"distanceKm"`
    TravelMinutes  int      `json:"travelMinutes"`
    ArrivalTime    string   `json:"arrivalTime"`
    DepartureTime  string   `json:"departureTime"`
}

type Route struct {
    TechnicianID       string      `json:"technicianId"`
    TechnicianName     string      `json:"technicianName,omitempty"`
    Start              GeoPoint    `json:"start"`
    StartSource        string      `json:"startSource"`
    Stops              []RouteStop `json:"stops"`
    TotalDistanceKm    float64     `json:"totalDistanceKm"`
    TotalTravelMinutes int         `json:"totalTravelMinutes"`
}

// Candidate is one ranked technician for a job.
type Candidate struct {
    TechnicianID   string        `json:"technicianId"`
    TechnicianName string        `json:"technicianName,omitempty"`
    Score          int           `json:"score"`
    Fitness        FitnessResult `json:"fitness"`
    Slot           *TimeSlot     `json:"slot,omitempty"`
}

const (
    SuggestionAssignment = "assignment"
    SuggestionBetterFit  = "better_fit_available"
)

type Suggestion struct {
    Type                string      `json:"type"`
    JobID               string      `json:"jobId"`
    JobNumber           string      `json:"jobNumber,omitempty"`
    CustomerName        string      `json:"customerName,omitempty"`
    TechnicianID        string      `json:"technicianId"`
    TechnicianName      string      `json:"technicianName,omitempty"`
    CurrentTechnicianID string      `json:"currentTechnicianId,omitempty"`
    Score               int         `json:"score"`
    CurrentScore        int         `json:"currentScore,omitempty"`
    Improvement         int         `json:"improvement,omitempty"`
    Confidence          string      `json:"confidence,omitempty"`
    Severity            Severity    `json:"severity,omitempty"`
    Slot                *TimeSlot   `json:"slot,omitempty"`
    Justification       string      `json:"justification"`
    Alternatives        []Candidate `json:"alternatives,omitempty"`
    Fitness             FitnessResult `json:"fitness"`
}

type Recommendation struct {
    JobID          string `json:"jobId"`
    JobNumber      string `json:"jobNumber,omitempty"`
    TechnicianID   string `json:"technicianId"`
    TechnicianName string `json:"technicianName,omitempty"`
    Score          int    `json:"score"`
    SuggestedTime  string `json:"suggestedTime"`
    Justification  string `json:"justification"`
}

type Stats struct {
    TotalTechnicians          int `json:"totalTechnicians"`
    ScheduledJobs             int `json:"scheduledJobs"`
    UnassignedJobs            int `json:"unassignedJobs"`
    ConflictsDetected         int `json:"conflictsDetected"`
    ReassignmentOpportunities int `json:"reassignmentOpportunities"`
    AutoDispatchReady         int `json:"autoDispatchReady"`
}

// Evaluation is the full engine output for one date.
type Evaluation struct {
    Date                        string           `json:"date"`
    Conflicts                   []Conflict       `json:"conflicts"`
    AssignmentSuggestions       []Suggestion     `json:"assignmentSuggestions"`
    ReassignmentSuggestions     []Suggestion     `json:"reassignmentSuggestions"`
    AutoDispatchRecommendations []Recommendation `json:"autoDispatchRecommendations"`
    OptimizedRoutes             []Route          `json:"optimizedRoutes"`
    Stats                       Stats            `json:"stats"`
    Summary                     string           `json:"summary,omitempty"`
}

// Subscriptions (webhooks)
type SubscriptionRequest struct {
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret,omitempty"`
}

type Subscription struct {
    ID       string   `json:"id"`
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret,omitempty"`
}

// EvaluationRecord is the history row the service keeps per evaluation run.
type EvaluationRecord struct {
    ID           string    `json:"id"`
    TenantID     string    `json:"tenantId"`
    Date         string    `json:"date"`
    TechnicianID string    `json:"technicianId,omitempty"`
    Stats        Stats     `json:"stats"`
    HighConflicts int      `json:"highConflicts"`
    DurationMs   int       `json:"durationMs"`
    CreatedAt    time.Time `json:"createdAt"`
}
