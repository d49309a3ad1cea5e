// Package events builds event and market records from upcoming fixtures.
// For every fixture in the requested window it emits the event plus the two
// standard markets offered on it: a moneyline and an over/under seeded with
// a per-sport default line.
package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lineboard/ouservice/internal/logger"
	"github.com/lineboard/ouservice/internal/models"
	"github.com/lineboard/ouservice/internal/sportsdb"
)

// Default over/under lines seeded on new markets until a scraped line
// replaces them.
var defaultLines = map[string]float64{
	"NFL":        29.5,
	"Baseball":   8.5,
	"Basketball": 215,
}

const defaultLine = 2.5

// FixtureSource is the slice of the sportsdb client the creator needs.
type FixtureSource interface {
	EventsDay(ctx context.Context, leagueID, date string) ([]sportsdb.WireEvent, error)
}

// Creator turns provider fixtures into events and markets.
type Creator struct {
	source FixtureSource
}

// NewCreator creates a Creator backed by the given fixture source.
func NewCreator(source FixtureSource) *Creator {
	return &Creator{source: source}
}

// Result is the outcome of one creation run.
type Result struct {
	Events  []models.Event     `json:"events"`
	Markets []models.Market    `json:"markets"`
	Errors  []models.ItemError `json:"errors"`
}

// Create fetches fixtures for every league over the window and derives
// events and markets. A league whose fetches fail is reported as an item
// error; the remaining leagues still produce output. No deduplication is
// performed — the service is stateless, callers dedupe on sportsdb_id.
func (c *Creator) Create(ctx context.Context, leagues map[string]string, daysToFetch int, startDate string) (*Result, error) {
	if daysToFetch <= 0 {
		daysToFetch = 7
	}
	start := time.Now()
	if startDate != "" {
		parsed, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			return nil, err
		}
		start = parsed
	}

	dates := make([]string, daysToFetch)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i).Format("2006-01-02")
	}

	result := &Result{}
	for leagueName, leagueID := range leagues {
		logger.Info("fetching fixtures for %s (%s)", leagueName, leagueID)
		fixtures, err := c.leagueFixtures(ctx, leagueID, dates)
		if err != nil {
			result.Errors = append(result.Errors, models.ItemError{
				Scope:   "league",
				ID:      leagueName,
				Message: err.Error(),
			})
			continue
		}
		for _, wire := range fixtures {
			event := mapEvent(wire)
			result.Events = append(result.Events, event)
			result.Markets = append(result.Markets, buildMarkets(event)...)
		}
	}

	logger.Info("created %d events and %d markets", len(result.Events), len(result.Markets))
	return result, nil
}

func (c *Creator) leagueFixtures(ctx context.Context, leagueID string, dates []string) ([]sportsdb.WireEvent, error) {
	var all []sportsdb.WireEvent
	for _, date := range dates {
		fixtures, err := c.source.EventsDay(ctx, leagueID, date)
		if err != nil {
			return nil, err
		}
		all = append(all, fixtures...)
	}
	return all, nil
}

// mapEvent converts a provider fixture into an event record.
func mapEvent(wire sportsdb.WireEvent) models.Event {
	sport := wire.Sport
	if sport == "American Football" {
		sport = "Football"
	}
	timestamp := wire.Timestamp
	if timestamp != "" && !strings.HasSuffix(timestamp, "Z") {
		timestamp += "Z"
	}

	return models.Event{
		ID:           uuid.New().String(),
		SportsDBID:   wire.ID,
		Sport:        sport,
		League:       wire.League,
		Participants: []string{wire.HomeTeam, wire.AwayTeam},
		Title:        wire.Name,
		Start:        timestamp,
		Status:       mapStatus(wire.Status),
		Location:     wire.Venue,
	}
}

// mapStatus maps provider status codes onto the event lifecycle.
func mapStatus(status string) models.EventStatus {
	switch status {
	case "NS", "Not Started":
		return models.EventFuture
	case "1H", "2H":
		return models.EventOngoing
	default:
		return models.EventCompleted
	}
}

// buildMarkets derives the standard market pair for an event. Markets
// reference the fixture's provider ID, not the generated _id: callers assign
// their own event IDs on ingest, and the provider ID is the only stable key
// across repeated creation runs.
func buildMarkets(event models.Event) []models.Market {
	line := lineFor(event)
	return []models.Market{
		{
			ID:      uuid.New().String(),
			EventID: event.SportsDBID,
			Type:    models.MarketMoneyline,
			Title:   event.Participants[0] + " Moneyline",
		},
		{
			ID:      uuid.New().String(),
			EventID: event.SportsDBID,
			Type:    models.MarketOverUnder,
			Title:   totalTitle(event.Sport),
			Line:    &line,
		},
	}
}

func lineFor(event models.Event) float64 {
	if event.League == "NFL" {
		return defaultLines["NFL"]
	}
	if line, ok := defaultLines[event.Sport]; ok {
		return line
	}
	return defaultLine
}

// totalTitle names the over/under market for a sport.
func totalTitle(sport string) string {
	switch strings.ToLower(sport) {
	case "football", "basketball", "rugby":
		return "Total Points"
	case "soccer", "hockey":
		return "Total Goals"
	case "baseball":
		return "Total Runs"
	case "tennis":
		return "Total Sets"
	default:
		return "Total Points"
	}
}
