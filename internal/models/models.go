// Package models defines the core domain entities for the over/under
// aggregation service: leagues and teams fetched from TheSportsDB, odds
// records produced by the scraper, and events and markets exchanged with the
// caller for settlement. Models that cross the HTTP boundary carry built-in
// validation.
//
// Terminology (matching the upstream data provider's naming):
//   - Event: a single fixture (game) identified by a TheSportsDB event ID.
//   - Market: a bet offered on an event, e.g. moneyline or over/under.
package models

import (
	"errors"
	"fmt"
)

// EventStatus describes the lifecycle of a fixture.
type EventStatus string

const (
	EventFuture    EventStatus = "future"
	EventOngoing   EventStatus = "ongoing"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// MarketType identifies how a market is settled.
type MarketType string

const (
	MarketMoneyline  MarketType = "moneyline"
	MarketOverUnder  MarketType = "over_under"
	MarketSpread     MarketType = "spread"
	MarketPlayerProp MarketType = "player_prop"
)

// Over/under outcomes. Moneyline outcomes are the winning participant's
// name, or OutcomeDraw when the scores are level.
const (
	OutcomeOver  = "over"
	OutcomeUnder = "under"
	OutcomePush  = "push"
	OutcomeDraw  = "draw"
)

// League holds the metadata TheSportsDB exposes for a league.
type League struct {
	Name          string `json:"name"`
	ID            string `json:"id"`
	Sport         string `json:"sport"`
	AlternateName string `json:"alternate_name,omitempty"`
	Country       string `json:"country,omitempty"`
	BadgeURL      string `json:"badge_url,omitempty"`
	ESPNName      string `json:"espns_name,omitempty"`
}

// Team belongs to exactly one league. Alternate and short names feed the
// scraper's team-name matching.
type Team struct {
	Name           string   `json:"name"`
	ID             string   `json:"id"`
	ShortName      string   `json:"short_name,omitempty"`
	AlternateNames []string `json:"alternate_names,omitempty"`
	BadgeURL       string   `json:"badge_url,omitempty"`
	ESPNName       string   `json:"espns_name,omitempty"`
}

// LeagueTeams groups a league's details with its team list, keyed by league
// name in fetch responses and scrape requests.
type LeagueTeams struct {
	League League `json:"league"`
	Teams  []Team `json:"teams"`
}

// OddsRecord is one scraped over/under line. Participants are ordered
// away, home as the schedule pages list them. Records are returned to the
// caller, never persisted here.
type OddsRecord struct {
	League       string    `json:"league"`
	Participants [2]string `json:"participants"`
	Line         float64   `json:"line"`
	Date         string    `json:"date,omitempty"`
	Time         string    `json:"time,omitempty"`
	Source       string    `json:"source"`
}

// Validate checks a scraped record before it is returned.
func (r *OddsRecord) Validate() error {
	if r.League == "" {
		return errors.New("record league must not be empty")
	}
	if r.Participants[0] == "" || r.Participants[1] == "" {
		return errors.New("record must name both participants")
	}
	if r.Line <= 0 {
		return errors.New("record line must be positive")
	}
	if r.Source == "" {
		return errors.New("record source must not be empty")
	}
	return nil
}

// Event is a fixture. Created by the event creator or passed in by the
// caller for settlement; this service only ever reads it.
type Event struct {
	ID           string      `json:"_id"`
	SportsDBID   string      `json:"sportsdb_id"`
	Sport        string      `json:"sport,omitempty"`
	League       string      `json:"league,omitempty"`
	Participants []string    `json:"participants"`
	Title        string      `json:"title,omitempty"`
	Start        string      `json:"start,omitempty"`
	Status       EventStatus `json:"status,omitempty"`
	Location     string      `json:"location,omitempty"`
	IsSettled    bool        `json:"is_settled"`
}

// Validate checks the fields settlement depends on.
func (e *Event) Validate() error {
	if e.ID == "" {
		return errors.New("event _id must not be empty")
	}
	if e.SportsDBID == "" {
		return errors.New("event sportsdb_id must not be empty")
	}
	if len(e.Participants) != 2 {
		return fmt.Errorf("event must have exactly 2 participants, got %d", len(e.Participants))
	}
	return nil
}

// Home and Away return the event participants in provider order
// (home first, away second).
func (e *Event) Home() string { return e.Participants[0] }
func (e *Event) Away() string { return e.Participants[1] }

// Market is a bet definition referencing an event. Settlement produces a
// derived outcome; the market itself is never mutated.
type Market struct {
	ID      string     `json:"_id"`
	EventID string     `json:"event_id"`
	Type    MarketType `json:"type"`
	Title   string     `json:"title,omitempty"`
	Line    *float64   `json:"line,omitempty"`
}

// Validate checks the fields settlement depends on.
func (m *Market) Validate() error {
	if m.ID == "" {
		return errors.New("market _id must not be empty")
	}
	if m.EventID == "" {
		return errors.New("market event_id must not be empty")
	}
	if m.Type == "" {
		return errors.New("market type must not be empty")
	}
	return nil
}

// Score is a final score fetched from the upstream provider.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// String renders the score the way settlement results report it.
func (s Score) String() string {
	return fmt.Sprintf("%d-%d", s.Home, s.Away)
}

// Total is the combined score both sides produced.
func (s Score) Total() int {
	return s.Home + s.Away
}

// SettledMarket is the outcome computed for one market.
type SettledMarket struct {
	MarketID   string `json:"market_id"`
	EventID    string `json:"event_id"`
	Outcome    string `json:"outcome"`
	FinalScore string `json:"final_score"`
}

// ItemError reports a per-item failure inside a batch. Item errors never
// abort processing of the remaining items.
type ItemError struct {
	Scope   string `json:"scope"` // "source", "event", "market", "league"
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Scope, e.ID, e.Message)
}
