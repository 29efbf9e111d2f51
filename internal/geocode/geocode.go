package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/example/ride-booking/internal/models"
	"github.com/example/ride-booking/internal/observability"
)

// Region constrains the first lookup attempt to disambiguate common
// place names. Viewbox is "minlon,minlat,maxlon,maxlat"; empty fields
// are omitted from the query.
type Region struct {
	CountryCodes string
	Viewbox      string
}

// Place is the first match for a free-text location name.
type Place struct {
	DisplayName string       `json:"display_name"`
	Coord       models.Coord `json:"coord"`
}

// Client resolves place names against a Nominatim-compatible endpoint.
// No caching and no rate-limit handling; the remote service's own
// tolerance is relied on.
type Client struct {
	Endpoint  string
	Region    Region
	UserAgent string
	Client    *http.Client
	Logger    *slog.Logger
}

func NewClient(endpoint string, region Region, logger *slog.Logger) *Client {
	return &Client{
		Endpoint:  endpoint,
		Region:    region,
		UserAgent: "ride-booking/1.0",
		Client:    &http.Client{Timeout: 5 * time.Second},
		Logger:    logger,
	}
}

// Lookup queries scoped to the configured region first and retries
// unscoped when that yields nothing. A nil Place with nil error means
// no result anywhere.
func (c *Client) Lookup(ctx context.Context, query string) (*Place, error) {
	place, err := c.search(ctx, query, true)
	if err != nil {
		// Scoped failure falls through to the unscoped attempt.
		c.Logger.Warn("scoped geocode failed", "query", query, "error", err)
		observability.GeocodeLookups.WithLabelValues("scoped", "error").Inc()
	} else if place != nil {
		observability.GeocodeLookups.WithLabelValues("scoped", "hit").Inc()
		return place, nil
	} else {
		observability.GeocodeLookups.WithLabelValues("scoped", "miss").Inc()
	}

	place, err = c.search(ctx, query, false)
	if err != nil {
		observability.GeocodeLookups.WithLabelValues("unscoped", "error").Inc()
		return nil, err
	}
	if place == nil {
		observability.GeocodeLookups.WithLabelValues("unscoped", "miss").Inc()
		return nil, nil
	}
	observability.GeocodeLookups.WithLabelValues("unscoped", "hit").Inc()
	return place, nil
}

func (c *Client) search(ctx context.Context, query string, scoped bool) (*Place, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	if scoped {
		if c.Region.CountryCodes != "" {
			params.Set("countrycodes", c.Region.CountryCodes)
		}
		if c.Region.Viewbox != "" {
			params.Set("viewbox", c.Region.Viewbox)
			params.Set("bounded", "1")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder status %d", resp.StatusCode)
	}

	// Nominatim encodes coordinates as strings.
	var out []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	lat, err := strconv.ParseFloat(out[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("bad lat %q: %w", out[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(out[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("bad lon %q: %w", out[0].Lon, err)
	}
	return &Place{DisplayName: out[0].DisplayName, Coord: models.Coord{Lat: lat, Lon: lon}}, nil
}
