package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/unfoldindia/unfold/internal/metrics"
)

// ErrPlaceNotFound means the geocoder had no match for a place name.
var ErrPlaceNotFound = errors.New("place not found")

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Common destinations, so most requests never reach Nominatim.
var seedPlaces = map[string]Coordinate{
	"delhi":              {28.6139, 77.2090},
	"new delhi":          {28.6139, 77.2090},
	"mumbai":             {19.0760, 72.8777},
	"bangalore":          {12.9716, 77.5946},
	"bengaluru":          {12.9716, 77.5946},
	"chennai":            {13.0827, 80.2707},
	"kolkata":            {22.5726, 88.3639},
	"hyderabad":          {17.3850, 78.4867},
	"pune":               {18.5204, 73.8567},
	"jaipur":             {26.9124, 75.7873},
	"ahmedabad":          {23.0225, 72.5714},
	"lucknow":            {26.8467, 80.9462},
	"agra":               {27.1767, 78.0081},
	"varanasi":           {25.3176, 82.9739},
	"goa":                {15.2993, 74.1240},
	"udaipur":            {24.5854, 73.7125},
	"jodhpur":            {26.2389, 73.0243},
	"amritsar":           {31.6340, 74.8723},
	"shimla":             {31.1048, 77.1734},
	"manali":             {32.2396, 77.1887},
	"rishikesh":          {30.0869, 78.2676},
	"haridwar":           {29.9457, 78.1642},
	"mysore":             {12.2958, 76.6394},
	"mysuru":             {12.2958, 76.6394},
	"kochi":              {9.9312, 76.2673},
	"thiruvananthapuram": {8.5241, 76.9366},
	"trivandrum":         {8.5241, 76.9366},
	"chandigarh":         {30.7333, 76.7794},
	"indore":             {22.7196, 75.8577},
	"bhopal":             {23.2599, 77.4126},
	"nagpur":             {21.1458, 79.0882},
	"surat":              {21.1702, 72.8311},
	"coimbatore":         {11.0168, 76.9558},
	"visakhapatnam":      {17.6868, 83.2185},
	"patna":              {25.6093, 85.1376},
	"ranchi":             {23.3441, 85.3096},
	"dehradun":           {30.3165, 78.0322},
	"guwahati":           {26.1445, 91.7362},
	"bhubaneswar":        {20.2961, 85.8245},
	"madurai":            {9.9252, 78.1198},
	"jaisalmer":          {26.9157, 70.9083},
	"pushkar":            {26.4900, 74.5513},
	"mathura":            {27.4924, 77.6737},
	"leh":                {34.1526, 77.5771},
	"srinagar":           {34.0837, 74.7973},
	"darjeeling":         {27.0360, 88.2627},
	"gangtok":            {27.3389, 88.6065},
	"ooty":               {11.4102, 76.6950},
	"kodaikanal":         {10.2381, 77.4892},
	"mount abu":          {24.5926, 72.7156},
	"nainital":           {29.3803, 79.4636},
	"mussoorie":          {30.4598, 78.0644},
}

// Geocoder resolves Indian place names. Answers are cached for the life
// of the process, and remote lookups are held to one per second to stay
// inside Nominatim's usage policy.
type Geocoder struct {
	http      *http.Client
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
	metrics   *metrics.Metrics

	mu    sync.RWMutex
	cache map[string]Coordinate
}

func newGeocoder(client *http.Client, baseURL, userAgent string, m *metrics.Metrics) *Geocoder {
	cache := make(map[string]Coordinate, len(seedPlaces))
	for k, v := range seedPlaces {
		cache[k] = v
	}
	return &Geocoder{
		http:      client,
		baseURL:   baseURL,
		userAgent: userAgent,
		limiter:   rate.NewLimiter(rate.Limit(1), 1),
		metrics:   m,
		cache:     cache,
	}
}

// Lookup returns the coordinate for a place name.
func (g *Geocoder) Lookup(ctx context.Context, place string) (Coordinate, error) {
	key := strings.ToLower(strings.TrimSpace(place))

	g.mu.RLock()
	c, ok := g.cache[key]
	g.mu.RUnlock()
	if ok {
		g.metrics.GeocodeLookups.WithLabelValues("cache").Inc()
		return c, nil
	}

	c, err := g.search(ctx, strings.TrimSpace(place))
	if err != nil {
		if errors.Is(err, ErrPlaceNotFound) {
			g.metrics.GeocodeLookups.WithLabelValues("not_found").Inc()
		}
		return Coordinate{}, err
	}
	g.metrics.GeocodeLookups.WithLabelValues("nominatim").Inc()

	g.mu.Lock()
	g.cache[key] = c
	g.mu.Unlock()
	return c, nil
}

func (g *Geocoder) search(ctx context.Context, place string) (Coordinate, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return Coordinate{}, err
	}

	q := url.Values{
		"q":            {place + ", India"},
		"format":       {"json"},
		"limit":        {"1"},
		"countrycodes": {"in"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Coordinate{}, fmt.Errorf("geocode request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.http.Do(req)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: geocode %q: %v", ErrUpstream, place, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Coordinate{}, fmt.Errorf("%w: geocode %q: nominatim status %d", ErrUpstream, place, resp.StatusCode)
	}

	var hits []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		return Coordinate{}, fmt.Errorf("%w: geocode %q: decode: %v", ErrUpstream, place, err)
	}
	if len(hits) == 0 {
		return Coordinate{}, fmt.Errorf("%w: could not geocode '%s', please check the city name", ErrPlaceNotFound, place)
	}

	lat, err := strconv.ParseFloat(hits[0].Lat, 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: geocode %q: bad lat: %v", ErrUpstream, place, err)
	}
	lng, err := strconv.ParseFloat(hits[0].Lon, 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: geocode %q: bad lon: %v", ErrUpstream, place, err)
	}
	return Coordinate{Lat: lat, Lng: lng}, nil
}
