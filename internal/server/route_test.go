package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unfoldindia/unfold/internal/config"
	"github.com/unfoldindia/unfold/internal/route"
)

const osrmOneRoute = `{
	"code": "Ok",
	"routes": [{
		"distance": 240000, "duration": 14400,
		"geometry": {"type": "LineString", "coordinates": [[77.2, 28.6], [78.0, 27.2]]},
		"legs": [{"steps": [
			{"distance": 240000, "duration": 14400, "name": "Yamuna Expressway", "maneuver": {"type": "depart", "location": [77.2, 28.6]}}
		]}]
	}]
}`

// withMaps points the server's planner at a fake Nominatim/OSRM pair.
func (e *testEnv) withMaps(t *testing.T, nominatim string, osrmStatus int, osrm string) {
	t.Helper()
	maps := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search":
			w.Write([]byte(nominatim))
		case strings.HasPrefix(r.URL.Path, "/route/v1/driving/"):
			w.WriteHeader(osrmStatus)
			w.Write([]byte(osrm))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(maps.Close)

	e.srv.planner = route.NewPlanner(config.RouteConfig{
		NominatimURL: maps.URL + "/search",
		OSRMURL:      maps.URL + "/route/v1/driving",
		UserAgent:    "UnfoldIndia/test",
		Timeout:      5 * time.Second,
	}, nil, nil)
}

func TestRoutePlan(t *testing.T) {
	env := newTestEnv(t, "")
	env.withMaps(t, `[]`, http.StatusOK, osrmOneRoute)

	w := env.do(t, http.MethodPost, "/api/route", "user-1", `{"origin":"Delhi","destination":"Agra","mode":"night"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var plan route.Plan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plan))
	assert.Equal(t, "success", plan.Status)
	require.Len(t, plan.Routes, 1)
	assert.Equal(t, "Recommended Route", plan.Routes[0].Name)
	assert.Equal(t, "Yamuna Expressway", plan.Routes[0].RoadSummary)
	assert.Equal(t, 240.0, plan.Routes[0].DurationMinutes)
	assert.Equal(t, route.Coordinate{Lat: 27.1767, Lng: 78.0081}, plan.DestinationCoords)
}

func TestRouteErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		nominatim  string
		osrmStatus int
		osrm       string
		want       int
		contains   string
	}{
		{name: "bad json", body: `{`, want: http.StatusBadRequest},
		{name: "missing origin", body: `{"destination":"Agra"}`, want: http.StatusUnprocessableEntity},
		{name: "bad mode", body: `{"origin":"Delhi","destination":"Agra","mode":"dusk"}`, want: http.StatusUnprocessableEntity},
		{
			name:     "unknown place",
			body:     `{"origin":"Atlantis","destination":"Agra"}`,
			want:     http.StatusUnprocessableEntity,
			contains: "could not geocode 'Atlantis'",
		},
		{
			name:       "no route",
			body:       `{"origin":"Delhi","destination":"Leh"}`,
			osrmStatus: http.StatusBadRequest,
			osrm:       `{"code":"NoRoute","message":"Impossible route between points"}`,
			want:       http.StatusBadGateway,
			contains:   "Impossible route",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nominatim, status, osrm := tt.nominatim, tt.osrmStatus, tt.osrm
			if nominatim == "" {
				nominatim = `[]`
			}
			if status == 0 {
				status, osrm = http.StatusOK, osrmOneRoute
			}
			env := newTestEnv(t, "")
			env.withMaps(t, nominatim, status, osrm)

			w := env.do(t, http.MethodPost, "/api/route", "user-1", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			if tt.contains != "" {
				assert.Contains(t, w.Body.String(), tt.contains)
			}
		})
	}
}

func TestRouteNotConfigured(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodPost, "/api/route", "user-1", `{"origin":"Delhi","destination":"Agra"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
