package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rzbill/pricerelay/internal/record"
	"github.com/rzbill/pricerelay/pkg/log"
)

// Defaults for the geolocation lookup.
const (
	DefaultURL     = "http://ip-api.com/json"
	DefaultTimeout = 5 * time.Second
)

// maxBody caps how much of the response is read.
const maxBody = 64 << 10

// Options configures a lookup.
type Options struct {
	Enabled bool
	URL     string
	Timeout time.Duration
	// Client overrides the HTTP client; its Timeout is left untouched.
	Client *http.Client
}

type geoResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

// Lookup performs a single GET against the geolocation service. It does not retry.
func Lookup(ctx context.Context, opts Options) (record.Geo, error) {
	url := opts.URL
	if url == "" {
		url = DefaultURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return record.Geo{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return record.Geo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return record.Geo{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return record.Geo{}, err
	}
	var data geoResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return record.Geo{}, fmt.Errorf("decode geolocation: %w", err)
	}
	if data.Status != "" && data.Status != "success" {
		return record.Geo{}, fmt.Errorf("geolocation lookup failed: %s", data.Message)
	}
	if data.Lat == nil || data.Lon == nil {
		return record.Geo{}, errors.New("geolocation response missing lat/lon")
	}
	return record.Geo{Lat: data.Lat, Lon: data.Lon}, nil
}

// Resolve returns the lookup result, or the zero Geo when disabled or on any
// failure. It never blocks longer than the configured timeout.
func Resolve(ctx context.Context, opts Options, logger log.Logger) record.Geo {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if !opts.Enabled {
		logger.Debug("geolocation enrichment disabled")
		return record.Geo{}
	}
	start := time.Now()
	geo, err := Lookup(ctx, opts)
	if err != nil {
		logger.Warn("geolocation lookup failed, continuing without coordinates",
			log.Err(err), log.Dur("elapsed", time.Since(start)))
		return record.Geo{}
	}
	logger.Info("geolocation resolved", log.Any("lat", *geo.Lat), log.Any("lon", *geo.Lon))
	return geo
}
