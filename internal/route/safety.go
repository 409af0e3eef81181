package route

import (
	"errors"
	"math"
	"regexp"
	"strings"
)

// Mode selects day or night weighting for the safety score.
type Mode string

const (
	ModeDay   Mode = "day"
	ModeNight Mode = "night"
)

// ErrInvalidMode is returned for anything other than day or night.
var ErrInvalidMode = errors.New("mode must be 'day' or 'night'")

// ParseMode accepts "day" or "night" in any case. Empty means day.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeDay:
		return ModeDay, nil
	case ModeNight:
		return ModeNight, nil
	default:
		return "", ErrInvalidMode
	}
}

// Traffic levels, derived from average speed.
const (
	TrafficLow      = "Low"
	TrafficModerate = "Moderate"
	TrafficHigh     = "High"
)

var majorRoadPattern = regexp.MustCompile(`(?i)\b(NH|SH|National Highway|State Highway|Expressway|motorway|trunk)\b`)

// Penalties are the points taken off a base of 100, per component.
type Penalties struct {
	RoadType    int `json:"road_type"`
	TurnDensity int `json:"turn_density"`
	Isolation   int `json:"isolation"`
	Duration    int `json:"duration"`
	Traffic     int `json:"traffic"`
}

func (p Penalties) total() int {
	return p.RoadType + p.TurnDensity + p.Isolation + p.Duration + p.Traffic
}

// Breakdown is the measured input behind a score.
type Breakdown struct {
	HighwayRatio             float64   `json:"highway_ratio"`
	TurnDensity              float64   `json:"turn_density"`
	LongestIsolatedSegmentKm float64   `json:"longest_isolated_segment_km"`
	TrafficLevel             string    `json:"traffic_level"`
	Penalties                Penalties `json:"penalties"`
}

// Safety is the scored result for one route.
type Safety struct {
	Score         float64
	DistanceKm    float64
	DurationHours float64
	Breakdown     Breakdown
}

// Score rates a route from 1.0 to 10.0. The result depends only on the
// route and the mode.
func Score(r *osrmRoute, mode Mode) Safety {
	distanceKm := r.Distance / 1000
	durationH := r.Duration / 3600
	steps := r.steps()

	highway := highwayRatio(steps, r.Distance)
	turns := turnDensity(steps, distanceKm)
	isolatedKm := longestIsolatedKm(steps)
	traffic := classifyTraffic(r.Duration, r.Distance)

	var p Penalties
	switch {
	case highway > 0.7:
	case highway >= 0.4:
		p.RoadType = -5
	default:
		p.RoadType = -10
	}

	switch {
	case turns < 1:
	case turns <= 2:
		p.TurnDensity = -5
	default:
		p.TurnDensity = -10
	}

	switch {
	case isolatedKm > 50:
		p.Isolation = -15
	case isolatedKm > 20:
		p.Isolation = -7
	}

	switch {
	case durationH > 8:
		p.Duration = -10
	case durationH > 6:
		p.Duration = -5
	}

	switch traffic {
	case TrafficHigh:
		p.Traffic = -10
	case TrafficModerate:
		p.Traffic = -5
	}

	if mode == ModeNight {
		p.Isolation = int(float64(p.Isolation) * 1.5)
		p.RoadType = int(float64(p.RoadType) * 1.3)
	}

	raw := max(100+p.total(), 10)

	return Safety{
		Score:         roundTo(float64(raw)/10, 1),
		DistanceKm:    roundTo(distanceKm, 1),
		DurationHours: roundTo(durationH, 2),
		Breakdown: Breakdown{
			HighwayRatio:             roundTo(highway, 3),
			TurnDensity:              roundTo(turns, 2),
			LongestIsolatedSegmentKm: roundTo(isolatedKm, 1),
			TrafficLevel:             traffic,
			Penalties:                p,
		},
	}
}

func highwayRatio(steps []osrmStep, totalM float64) float64 {
	if totalM <= 0 {
		return 0
	}
	var onHighway float64
	for _, s := range steps {
		if majorRoadPattern.MatchString(s.Name + " " + s.Ref) {
			onHighway += s.Distance
		}
	}
	return onHighway / totalM
}

// turnDensity counts maneuvers per km, ignoring depart and arrive.
func turnDensity(steps []osrmStep, totalKm float64) float64 {
	if totalKm <= 0 {
		return 0
	}
	turns := 0
	for _, s := range steps {
		if s.Maneuver.Type != "depart" && s.Maneuver.Type != "arrive" {
			turns++
		}
	}
	return float64(turns) / totalKm
}

// longestIsolatedKm is the longest run of consecutive unnamed steps.
func longestIsolatedKm(steps []osrmStep) float64 {
	var run, longest float64
	for _, s := range steps {
		if strings.TrimSpace(s.Name) == "" && strings.TrimSpace(s.Ref) == "" {
			run += s.Distance
			continue
		}
		longest = max(longest, run)
		run = 0
	}
	return max(longest, run) / 1000
}

func classifyTraffic(durationS, distanceM float64) string {
	if distanceM <= 0 || durationS <= 0 {
		return TrafficModerate
	}
	kmh := (distanceM / 1000) / (durationS / 3600)
	switch {
	case kmh >= 70:
		return TrafficLow
	case kmh >= 45:
		return TrafficModerate
	default:
		return TrafficHigh
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
