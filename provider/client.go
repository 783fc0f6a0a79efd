// Package provider fetches racing data from the upstream provider and
// normalizes the payloads into internal shapes. Only the consumed fields are
// modelled; everything else in the wire format is ignored.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/raceflow/config"
)

// APIError carries the upstream HTTP status so the resilience layer can
// classify 4xx as non-retryable and 5xx as retryable.
type APIError struct {
	Status int
	URL    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider: %s returned %d", e.URL, e.Status)
}

// HTTPStatus implements the resilience status classifier.
func (e *APIError) HTTPStatus() int { return e.Status }

// Client talks to the external racing data provider.
type Client struct {
	baseURL string
	spacing time.Duration
	http    *http.Client
	log     *zap.Logger
}

// New creates a provider client with a bounded-timeout HTTP client.
func New(cfg *config.Config, log *zap.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConns:    10,
		MaxConnsPerHost: 4,
		IdleConnTimeout: 90 * time.Second,
	}
	return &Client{
		baseURL: cfg.ProviderBaseURL,
		spacing: cfg.BatchSpacing,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.ProviderTimeout,
		},
		log: log.Named("provider"),
	}
}

// Meetings fetches all meetings, with race summaries, for a date (YYYY-MM-DD).
func (c *Client) Meetings(ctx context.Context, date string) ([]Meeting, error) {
	var payload struct {
		Meetings []Meeting `json:"meetings"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/meetings?date_from=%s&date_to=%s", c.baseURL, date, date), &payload); err != nil {
		return nil, err
	}
	return payload.Meetings, nil
}

// Race fetches the full detail payload for a single race id, including
// entrants, pool totals, the money-tracker snapshot and results if available.
func (c *Client) Race(ctx context.Context, externalID string) (*RaceDetail, error) {
	var payload struct {
		Race RaceDetail `json:"race"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/events/%s?enc=json", c.baseURL, externalID), &payload); err != nil {
		return nil, err
	}
	if payload.Race.ID == "" {
		payload.Race.ID = externalID
	}
	return &payload.Race, nil
}

// Races fetches detail payloads for several race ids, pausing between calls so
// a batch does not hammer the provider. Failures are returned per id; one bad
// race never aborts the batch.
func (c *Client) Races(ctx context.Context, externalIDs []string) (map[string]*RaceDetail, map[string]error) {
	details := make(map[string]*RaceDetail, len(externalIDs))
	failures := make(map[string]error)

	for i, id := range externalIDs {
		if i > 0 && c.spacing > 0 {
			select {
			case <-ctx.Done():
				failures[id] = ctx.Err()
				continue
			case <-time.After(c.spacing):
			}
		}
		detail, err := c.Race(ctx, id)
		if err != nil {
			failures[id] = err
			continue
		}
		details[id] = detail
	}
	return details, failures
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("provider: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("provider: %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, URL: url}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("provider: decode %s: %w", url, err)
	}
	return nil
}
