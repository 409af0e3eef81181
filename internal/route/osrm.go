package route

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Geometry is a GeoJSON LineString in [lng, lat] order.
type Geometry struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}

type osrmManeuver struct {
	Type     string    `json:"type"`
	Modifier string    `json:"modifier"`
	Location []float64 `json:"location"`
}

type osrmStep struct {
	Distance float64      `json:"distance"`
	Duration float64      `json:"duration"`
	Name     string       `json:"name"`
	Ref      string       `json:"ref"`
	Maneuver osrmManeuver `json:"maneuver"`
}

type osrmLeg struct {
	Steps []osrmStep `json:"steps"`
}

type osrmRoute struct {
	Distance float64   `json:"distance"` // meters
	Duration float64   `json:"duration"` // seconds
	Geometry *Geometry `json:"geometry"`
	Legs     []osrmLeg `json:"legs"`
}

func (r *osrmRoute) steps() []osrmStep {
	var out []osrmStep
	for _, leg := range r.Legs {
		out = append(out, leg.Steps...)
	}
	return out
}

type osrmResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

// osrmClient asks an OSRM server for driving alternatives.
type osrmClient struct {
	http    *http.Client
	baseURL string
}

func (c *osrmClient) routes(ctx context.Context, from, to Coordinate) ([]osrmRoute, error) {
	coords := coord(from.Lng) + "," + coord(from.Lat) + ";" + coord(to.Lng) + "," + coord(to.Lat)
	q := url.Values{
		"alternatives": {"true"},
		"overview":     {"full"},
		"geometries":   {"geojson"},
		"steps":        {"true"},
	}
	endpoint := strings.TrimRight(c.baseURL, "/") + "/" + coords + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("osrm request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}

	// OSRM reports NoRoute and friends as a JSON body on a 4xx.
	var out osrmResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("%w: osrm status %d", ErrUpstream, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	if out.Code != "Ok" {
		msg := out.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return nil, fmt.Errorf("%w: OSRM error: %s", ErrUpstream, msg)
	}
	if len(out.Routes) == 0 {
		return nil, fmt.Errorf("%w: no routes found between these locations", ErrUpstream)
	}
	return out.Routes, nil
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
