package route

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/unfoldindia/unfold/internal/config"
	"github.com/unfoldindia/unfold/internal/logging"
	"github.com/unfoldindia/unfold/internal/metrics"
)

var (
	// ErrMissingPlace is returned when origin or destination is blank.
	ErrMissingPlace = errors.New("origin and destination are required")
	// ErrUpstream means a map service failed or returned nothing usable.
	ErrUpstream = errors.New("map service failed")
)

const maxAlternatives = 3

var routeNames = []string{"Recommended Route", "Scenic Route", "Shortest Route"}

// Highway detection for road quality and summaries. Narrower than the
// safety pattern: motorway and trunk tags do not count here.
var highwayNamePattern = regexp.MustCompile(`(?i)\b(NH|SH|National Highway|State Highway|Expressway)\b`)

// Summary is a route's length and time.
type Summary struct {
	DistanceKm    float64 `json:"distance_km"`
	DurationHours float64 `json:"duration_hours"`
}

// Maneuver is one navigation instruction's geometry.
type Maneuver struct {
	Type     string    `json:"type"`
	Modifier string    `json:"modifier"`
	Location []float64 `json:"location"` // [lng, lat]
}

// Step is one leg of turn-by-turn navigation.
type Step struct {
	Distance float64  `json:"distance"`
	Duration float64  `json:"duration"`
	Name     string   `json:"name"`
	Ref      string   `json:"ref"`
	Maneuver Maneuver `json:"maneuver"`
}

// Route is one scored alternative.
type Route struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	DistanceKm      float64   `json:"distance_km"`
	DurationMinutes float64   `json:"duration_minutes"`
	SafetyScore     float64   `json:"safety_score"`
	RoadSummary     string    `json:"road_summary"`
	TrafficLevel    string    `json:"traffic_level"`
	RoadQuality     string    `json:"road_quality"`
	Geometry        Geometry  `json:"geometry"`
	Steps           []Step    `json:"steps"`
	Summary         Summary   `json:"route_summary"`
	Breakdown       Breakdown `json:"breakdown"`
}

// Plan is the answer to one origin/destination query.
type Plan struct {
	Routes            []Route    `json:"routes"`
	OriginCoords      Coordinate `json:"origin_coords"`
	DestinationCoords Coordinate `json:"destination_coords"`
	Status            string     `json:"status"`
}

// Planner finds driving routes between Indian places and ranks them by
// safety.
type Planner struct {
	geocoder *Geocoder
	osrm     *osrmClient
	log      *logrus.Entry
	metrics  *metrics.Metrics
}

// NewPlanner builds a planner against the configured Nominatim and OSRM
// endpoints.
func NewPlanner(cfg config.RouteConfig, logger *logrus.Logger, m *metrics.Metrics) *Planner {
	if m == nil {
		m = metrics.New()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	return &Planner{
		geocoder: newGeocoder(client, cfg.NominatimURL, cfg.UserAgent, m),
		osrm:     &osrmClient{http: client, baseURL: cfg.OSRMURL},
		log:      logging.Component(logger, "route"),
		metrics:  m,
	}
}

// Plan geocodes both places, fetches up to three alternatives and returns
// them safest first.
func (p *Planner) Plan(ctx context.Context, origin, destination string, mode Mode) (*Plan, error) {
	origin, destination = strings.TrimSpace(origin), strings.TrimSpace(destination)
	if origin == "" || destination == "" {
		p.metrics.RouteRequests.WithLabelValues("invalid").Inc()
		return nil, ErrMissingPlace
	}
	if mode != ModeDay && mode != ModeNight {
		p.metrics.RouteRequests.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidMode
	}

	plan, err := p.plan(ctx, origin, destination, mode)
	switch {
	case err == nil:
		p.metrics.RouteRequests.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrPlaceNotFound):
		p.metrics.RouteRequests.WithLabelValues("invalid").Inc()
	case errors.Is(err, ErrUpstream):
		p.metrics.RouteRequests.WithLabelValues("upstream").Inc()
	default:
		p.metrics.RouteRequests.WithLabelValues("error").Inc()
	}
	return plan, err
}

func (p *Planner) plan(ctx context.Context, origin, destination string, mode Mode) (*Plan, error) {
	var from, to Coordinate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		from, err = p.geocoder.Lookup(gctx, origin)
		return err
	})
	g.Go(func() error {
		var err error
		to, err = p.geocoder.Lookup(gctx, destination)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	raw, err := p.osrm.routes(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if len(raw) > maxAlternatives {
		raw = raw[:maxAlternatives]
	}

	routes := make([]Route, 0, len(raw))
	for i := range raw {
		routes = append(routes, buildRoute(fmt.Sprintf("route_%d", i+1), &raw[i], mode))
	}
	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].SafetyScore > routes[j].SafetyScore
	})
	for i := range routes {
		if i < len(routeNames) {
			routes[i].Name = routeNames[i]
		} else {
			routes[i].Name = fmt.Sprintf("Route %d", i+1)
		}
	}

	p.log.WithFields(logrus.Fields{
		"origin": origin, "destination": destination, "mode": mode, "routes": len(routes),
	}).Debug("route planned")

	return &Plan{
		Routes:            routes,
		OriginCoords:      from,
		DestinationCoords: to,
		Status:            "success",
	}, nil
}

func buildRoute(id string, r *osrmRoute, mode Mode) Route {
	s := Score(r, mode)
	geometry := Geometry{Type: "LineString", Coordinates: [][]float64{}}
	if r.Geometry != nil {
		geometry = *r.Geometry
	}
	return Route{
		ID:              id,
		DistanceKm:      s.DistanceKm,
		DurationMinutes: math.Round(r.Duration / 60),
		SafetyScore:     s.Score,
		RoadSummary:     roadSummary(r),
		TrafficLevel:    s.Breakdown.TrafficLevel,
		RoadQuality:     roadQuality(r),
		Geometry:        geometry,
		Steps:           navigationSteps(r),
		Summary:         Summary{DistanceKm: s.DistanceKm, DurationHours: s.DurationHours},
		Breakdown:       s.Breakdown,
	}
}

// roadQuality grades a route by the share of distance on named highways.
func roadQuality(r *osrmRoute) string {
	var onHighway, total float64
	for _, s := range r.steps() {
		total += s.Distance
		if highwayNamePattern.MatchString(s.Name + " " + s.Ref) {
			onHighway += s.Distance
		}
	}
	if total <= 0 {
		return "Average"
	}
	switch ratio := onHighway / total; {
	case ratio >= 0.6:
		return "Excellent"
	case ratio >= 0.3:
		return "Good"
	default:
		return "Average"
	}
}

// roadSummary names the route by its longest highway, or failing that its
// longest named road.
func roadSummary(r *osrmRoute) string {
	var names []string
	dist := make(map[string]float64)
	for _, s := range r.steps() {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			continue
		}
		if _, seen := dist[name]; !seen {
			names = append(names, name)
		}
		dist[name] += s.Distance
	}
	if len(names) == 0 {
		return "Local Roads"
	}

	sort.SliceStable(names, func(i, j int) bool { return dist[names[i]] > dist[names[j]] })
	for _, name := range names {
		if highwayNamePattern.MatchString(name) {
			return name
		}
	}
	return names[0]
}

func navigationSteps(r *osrmRoute) []Step {
	steps := r.steps()
	out := make([]Step, 0, len(steps))
	for _, s := range steps {
		loc := s.Maneuver.Location
		if loc == nil {
			loc = []float64{}
		}
		out = append(out, Step{
			Distance: s.Distance,
			Duration: s.Duration,
			Name:     s.Name,
			Ref:      s.Ref,
			Maneuver: Maneuver{Type: s.Maneuver.Type, Modifier: s.Maneuver.Modifier, Location: loc},
		})
	}
	return out
}
