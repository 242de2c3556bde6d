package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fieldops_backend/platform/config"
	"fieldops_backend/platform/logger"
)

const geocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// ErrNotFound is returned when a postal code cannot be resolved to
// coordinates. Callers must treat geocoding as best-effort: absence of
// coordinates is not fatal here, the caller decides whether it blocks.
var ErrNotFound = errors.New("postal code not found")

// Geocoder resolves postal codes to coordinates. Resolution order: the
// static in-region table first, then a paid external lookup when an API
// credential is configured. No retries; the scheduler owns retry policy.
type Geocoder struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

// NewGeocoder creates a geocoder. An empty API key disables the external
// fallback, leaving only the static table.
func NewGeocoder(cfg config.GeocodingConfig, log *logger.Logger) *Geocoder {
	return &Geocoder{
		apiKey:  cfg.GetGeocodingAPIKey(),
		baseURL: geocodeURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		log:     log,
	}
}

// Resolve maps a postal code to coordinates, or ErrNotFound.
func (g *Geocoder) Resolve(ctx context.Context, postalCode string) (Coordinates, error) {
	postalCode = strings.TrimSpace(postalCode)
	if postalCode == "" {
		return Coordinates{}, ErrNotFound
	}

	if coords, ok := lookupZip(postalCode); ok {
		return coords, nil
	}

	if g.apiKey == "" {
		return Coordinates{}, ErrNotFound
	}

	coords, err := g.resolveExternal(ctx, postalCode)
	if err != nil {
		g.log.ProviderError("geocoding", "resolve", err)
		return Coordinates{}, ErrNotFound
	}

	return coords, nil
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (g *Geocoder) resolveExternal(ctx context.Context, postalCode string) (Coordinates, error) {
	params := url.Values{}
	params.Add("address", postalCode)
	params.Add("components", "country:US")
	params.Add("key", g.apiKey)

	reqURL := fmt.Sprintf("%s?%s", g.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Coordinates{}, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Coordinates{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return Coordinates{}, fmt.Errorf("upstream api error: %d", resp.StatusCode)
	}

	var payload geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Coordinates{}, err
	}

	if payload.Status != "OK" || len(payload.Results) == 0 {
		return Coordinates{}, fmt.Errorf("no geocode match: %s", payload.Status)
	}

	loc := payload.Results[0].Geometry.Location
	return Coordinates{Lat: loc.Lat, Lng: loc.Lng}, nil
}
