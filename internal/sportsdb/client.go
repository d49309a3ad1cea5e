// Package sportsdb provides a client for TheSportsDB v1 JSON API: league
// and team lookups, per-day fixture listings, and single-event lookups used
// by settlement.
//
// The free tier rate-limits aggressively, so every request goes through a
// shared retry loop: transient failures (network errors, 5xx, 429) are
// retried with linear backoff, other 4xx responses are terminal.
package sportsdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lineboard/ouservice/internal/errs"
	"github.com/lineboard/ouservice/internal/logger"
	"github.com/lineboard/ouservice/internal/models"
)

// Client provides access to TheSportsDB API
type Client struct {
	baseURL        string
	apiKey         string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new TheSportsDB client. The API key is embedded in
// request paths per the v1 API scheme.
func NewClient(baseURL, apiKey string, timeout time.Duration, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		httpClient:     &http.Client{Timeout: timeout},
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// LookupLeague fetches details for a league by its TheSportsDB ID.
// Returns NotFoundError when the ID is unknown.
func (c *Client) LookupLeague(ctx context.Context, leagueID string) (*models.League, error) {
	var resp leaguesResponse
	endpoint := fmt.Sprintf("lookupleague.php?id=%s", url.QueryEscape(leagueID))
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if len(resp.Leagues) == 0 {
		return nil, &errs.NotFoundError{Kind: "league", ID: leagueID}
	}

	wl := resp.Leagues[0]
	return &models.League{
		Name:          wl.Name,
		ID:            wl.ID,
		Sport:         wl.Sport,
		AlternateName: wl.AlternateName,
		Country:       wl.Country,
		BadgeURL:      wl.Badge,
	}, nil
}

// LookupAllTeams fetches the team list for a league by its TheSportsDB ID.
// Returns NotFoundError when the league has no teams (unknown ID).
func (c *Client) LookupAllTeams(ctx context.Context, leagueID string) ([]models.Team, error) {
	var resp teamsResponse
	endpoint := fmt.Sprintf("lookup_all_teams.php?id=%s", url.QueryEscape(leagueID))
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if len(resp.Teams) == 0 {
		return nil, &errs.NotFoundError{Kind: "league teams", ID: leagueID}
	}

	teams := make([]models.Team, 0, len(resp.Teams))
	for _, wt := range resp.Teams {
		var alternates []string
		for _, alt := range strings.Split(wt.AlternateNames, ",") {
			if alt = strings.TrimSpace(alt); alt != "" {
				alternates = append(alternates, alt)
			}
		}
		teams = append(teams, models.Team{
			Name:           wt.Name,
			ID:             wt.ID,
			ShortName:      wt.ShortName,
			AlternateNames: alternates,
			BadgeURL:       wt.Badge,
			ESPNName:       wt.Name,
		})
	}
	return teams, nil
}

// EventsDay fetches the fixtures for one league on one day. A day without
// fixtures is not an error; the returned slice is empty.
func (c *Client) EventsDay(ctx context.Context, leagueID, date string) ([]WireEvent, error) {
	var resp eventsResponse
	endpoint := fmt.Sprintf("eventsday.php?d=%s&l=%s", url.QueryEscape(date), url.QueryEscape(leagueID))
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// LookupEvent fetches a single fixture by its TheSportsDB event ID.
// Returns NotFoundError when the ID is unknown.
func (c *Client) LookupEvent(ctx context.Context, eventID string) (*WireEvent, error) {
	var resp eventsResponse
	endpoint := fmt.Sprintf("lookupevent.php?id=%s", url.QueryEscape(eventID))
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if len(resp.Events) == 0 {
		return nil, &errs.NotFoundError{Kind: "event", ID: eventID}
	}
	return &resp.Events[0], nil
}

// get performs a GET request with retry logic and decodes the JSON body.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	fullURL := fmt.Sprintf("%s/%s/%s", c.baseURL, c.apiKey, endpoint)

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(c.retryDelayBase * time.Duration(i)):
			case <-ctx.Done():
				return &errs.UpstreamError{Service: "sportsdb", Err: ctx.Err()}
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return &errs.UpstreamError{Service: "sportsdb", Err: err}
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			logger.Warn("sportsdb request failed (attempt %d/%d): %v", i+1, c.maxRetries, err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("server returned %d", resp.StatusCode)
			logger.Warn("sportsdb returned %d (attempt %d/%d)", resp.StatusCode, i+1, c.maxRetries)
			continue
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return &errs.NotFoundError{Kind: "endpoint", ID: endpoint}
		case resp.StatusCode != http.StatusOK:
			resp.Body.Close()
			// Other 4xx are terminal: retrying a bad request cannot help.
			return &errs.UpstreamError{Service: "sportsdb", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return &errs.UpstreamError{Service: "sportsdb", Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}

	return &errs.UpstreamError{Service: "sportsdb", Err: fmt.Errorf("max retries exceeded: %w", lastErr)}
}
