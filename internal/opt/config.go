package opt

import (
	"fmt"
	"math"

	"techdispatch/internal/model"
)

// Weights are the fitness sub-score weights. They are expected to sum to 1.
type Weights struct {
	Skill           float64 `yaml:"skill" json:"skill"`
	Proximity       float64 `yaml:"proximity" json:"proximity"`
	Availability    float64 `yaml:"availability" json:"availability"`
	Workload        float64 `yaml:"workload" json:"workload"`
	RouteEfficiency float64 `yaml:"routeEfficiency" json:"routeEfficiency"`
}

func (w Weights) sum() float64 {
	return w.Skill + w.Proximity + w.Availability + w.Workload + w.RouteEfficiency
}

// Config holds every tunable constant used by the scoring, slotting, conflict and
// routing heuristics. Times are minutes since midnight unless noted.
type Config struct {
	Weights Weights `yaml:"weights" json:"weights"`

	SpeedKmh      float64 `yaml:"speedKmh" json:"speedKmh"`
	HomeRadiusKm  float64 `yaml:"homeRadiusKm" json:"homeRadiusKm"`
	RouteRadiusKm float64 `yaml:"routeRadiusKm" json:"routeRadiusKm"`

	WorkdayStart         int `yaml:"workdayStart" json:"workdayStart"`
	WorkdayEnd           int `yaml:"workdayEnd" json:"workdayEnd"`
	FirstJobTime         int `yaml:"firstJobTime" json:"firstJobTime"`
	EdgeBufferMinutes    int `yaml:"edgeBufferMinutes" json:"edgeBufferMinutes"`
	BetweenBufferMinutes int `yaml:"betweenBufferMinutes" json:"betweenBufferMinutes"`
	MinTravelMinutes     int `yaml:"minTravelMinutes" json:"minTravelMinutes"`
	DefaultTravelMinutes int `yaml:"defaultTravelMinutes" json:"defaultTravelMinutes"`

	SlotScoreBefore  float64 `yaml:"slotScoreBefore" json:"slotScoreBefore"`
	SlotScoreBetween float64 `yaml:"slotScoreBetween" json:"slotScoreBetween"`
	SlotScoreAfter   float64 `yaml:"slotScoreAfter" json:"slotScoreAfter"`

	BatchSize             int `yaml:"batchSize" json:"batchSize"`
	Alternatives          int `yaml:"alternatives" json:"alternatives"`
	AutoDispatchThreshold int `yaml:"autoDispatchThreshold" json:"autoDispatchThreshold"`
	ConfidenceHigh        int `yaml:"confidenceHigh" json:"confidenceHigh"`
	ConfidenceMedium      int `yaml:"confidenceMedium" json:"confidenceMedium"`

	ReassignImprovement     float64 `yaml:"reassignImprovement" json:"reassignImprovement"`
	ReassignHighImprovement int     `yaml:"reassignHighImprovement" json:"reassignHighImprovement"`

	LongWorkdayHours       float64  `yaml:"longWorkdayHours" json:"longWorkdayHours"`
	VeryLongWorkdayHours   float64  `yaml:"veryLongWorkdayHours" json:"veryLongWorkdayHours"`
	OverloadHighMargin     int      `yaml:"overloadHighMargin" json:"overloadHighMargin"`
	OverloadAlternatives   int      `yaml:"overloadAlternatives" json:"overloadAlternatives"`
	MissingTimeSuggestions []string `yaml:"missingTimeSuggestions" json:"missingTimeSuggestions"`
	TeamJobTypes           []string `yaml:"teamJobTypes" json:"teamJobTypes"`
	RelatedTerms           []string `yaml:"relatedTerms" json:"relatedTerms"`

	FallbackOrigin   model.GeoPoint `yaml:"fallbackOrigin" json:"fallbackOrigin"`
	TwoOptIterations int            `yaml:"twoOptIterations" json:"twoOptIterations"`
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		Weights:                 Weights{Skill: 0.40, Proximity: 0.25, Availability: 0.20, Workload: 0.10, RouteEfficiency: 0.05},
		SpeedKmh:                DefaultSpeedKmh,
		HomeRadiusKm:            60,
		RouteRadiusKm:           30,
		WorkdayStart:            7 * 60,
		WorkdayEnd:              17 * 60,
		FirstJobTime:            8 * 60,
		EdgeBufferMinutes:       30,
		BetweenBufferMinutes:    15,
		MinTravelMinutes:        10,
		DefaultTravelMinutes:    15,
		SlotScoreBefore:         0.8,
		SlotScoreBetween:        0.9,
		SlotScoreAfter:          0.7,
		BatchSize:               15,
		Alternatives:            2,
		AutoDispatchThreshold:   70,
		ConfidenceHigh:          80,
		ConfidenceMedium:        60,
		ReassignImprovement:     0.20,
		ReassignHighImprovement: 40,
		LongWorkdayHours:        10,
		VeryLongWorkdayHours:    12,
		OverloadHighMargin:      2,
		OverloadAlternatives:    3,
		MissingTimeSuggestions:  []string{"08:00", "10:00", "13:00", "15:00"},
		TeamJobTypes:            []string{"installation", "install", "large repair"},
		RelatedTerms:            []string{"service", "repair", "install", "maintenance", "gate", "door", "motor", "roller"},
		FallbackOrigin:          model.GeoPoint{Lat: 0, Lng: 0},
	}
}

// Validate rejects tunings the heuristics cannot run with.
func (c Config) Validate() error {
	if math.Abs(c.Weights.sum()-1) > 1e-6 {
		return fmt.Errorf("weights must sum to 1, got %.4f", c.Weights.sum())
	}
	if c.SpeedKmh <= 0 {
		return fmt.Errorf("speedKmh must be > 0")
	}
	if c.HomeRadiusKm <= 0 || c.RouteRadiusKm <= 0 {
		return fmt.Errorf("radii must be > 0")
	}
	if c.WorkdayStart < 0 || c.WorkdayEnd > 24*60 || c.WorkdayStart >= c.WorkdayEnd {
		return fmt.Errorf("invalid workday %d-%d", c.WorkdayStart, c.WorkdayEnd)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batchSize must be > 0")
	}
	if c.Alternatives < 0 || c.OverloadAlternatives < 0 {
		return fmt.Errorf("alternative counts must be >= 0")
	}
	if c.ReassignImprovement < 0 || c.ReassignImprovement > 1 {
		return fmt.Errorf("reassignImprovement must be in [0,1]")
	}
	if c.TwoOptIterations < 0 {
		return fmt.Errorf("twoOptIterations must be >= 0")
	}
	return nil
}

func (c Config) travelMinutes(km float64) int {
	return int(math.Ceil(km / c.SpeedKmh * 60))
}

// legMinutes estimates travel between two jobs for buffer checks: floored at
// MinTravelMinutes, DefaultTravelMinutes when either side has no coordinate.
func (c Config) legMinutes(a, b model.Job) int {
	pa, okA := a.Point()
	pb, okB := b.Point()
	if !okA || !okB {
		return c.DefaultTravelMinutes
	}
	m := c.travelMinutes(DistanceKm(pa.Lat, pa.Lng, pb.Lat, pb.Lng))
	if m < c.MinTravelMinutes {
		m = c.MinTravelMinutes
	}
	return m
}

func (c Config) confidence(score int) string {
	switch {
	case score >= c.ConfidenceHigh:
		return "high"
	case score >= c.ConfidenceMedium:
		return "medium"
	default:
		return "low"
	}
}
