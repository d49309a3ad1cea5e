// Package leagues fetches league and team metadata from the sports data
// provider, one league per requested name/ID pair. Per-league failures are
// isolated; a wrong ID does not abort the rest of the request.
package leagues

import (
	"context"
	"errors"

	"github.com/lineboard/ouservice/internal/errs"
	"github.com/lineboard/ouservice/internal/logger"
	"github.com/lineboard/ouservice/internal/models"
)

// MetadataSource is the slice of the sportsdb client the fetcher needs.
type MetadataSource interface {
	LookupLeague(ctx context.Context, leagueID string) (*models.League, error)
	LookupAllTeams(ctx context.Context, leagueID string) ([]models.Team, error)
}

// Fetcher retrieves league details and team lists.
type Fetcher struct {
	source MetadataSource
}

// NewFetcher creates a Fetcher backed by the given metadata source.
func NewFetcher(source MetadataSource) *Fetcher {
	return &Fetcher{source: source}
}

// Result maps league name to its details and teams.
type Result struct {
	Leagues map[string]models.LeagueTeams `json:"leagues"`
	Errors  []models.ItemError            `json:"errors"`
}

// Fetch resolves every requested league. Unknown IDs become per-league
// NotFound item errors. When every league fails with a non-NotFound upstream
// error the whole request fails, since nothing useful was fetched from a
// dead upstream; any partial success is returned with item errors instead.
func (f *Fetcher) Fetch(ctx context.Context, requested map[string]string) (*Result, error) {
	result := &Result{Leagues: make(map[string]models.LeagueTeams, len(requested))}

	var upstreamErr error
	upstreamFailures := 0
	for name, id := range requested {
		league, teams, err := f.fetchOne(ctx, name, id)
		if err != nil {
			var notFound *errs.NotFoundError
			if !errors.As(err, &notFound) {
				upstreamFailures++
				if upstreamErr == nil {
					upstreamErr = err
				}
			}
			result.Errors = append(result.Errors, models.ItemError{
				Scope: "league", ID: name, Message: err.Error(),
			})
			continue
		}
		result.Leagues[name] = models.LeagueTeams{League: *league, Teams: teams}
	}

	if upstreamFailures == len(requested) && upstreamFailures > 0 {
		return nil, upstreamErr
	}

	logger.Info("fetched %d/%d leagues", len(result.Leagues), len(requested))
	return result, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, name, id string) (*models.League, []models.Team, error) {
	league, err := f.source.LookupLeague(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	league.Name = name
	league.ESPNName = espnLeagueNames[name]

	teams, err := f.source.LookupAllTeams(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return league, teams, nil
}

// espnLeagueNames maps provider league names onto the names ESPN schedule
// pages use, which the scraper's matching relies on.
var espnLeagueNames = map[string]string{
	"English Premier League": "Premier League",
	"Uefa Champions League":  "Champions League",
	"Uefa Europa League":     "Europa League",
	"La Liga":                "La Liga",
	"Bundesliga":             "Bundesliga",
	"Serie A":                "Serie A",
	"NFL":                    "NFL",
	"NBA":                    "NBA",
	"MLB":                    "MLB",
	"NHL":                    "NHL",
}
