// Package settle computes market outcomes from final scores. For each
// unsettled event it asks the score provider for the final result, then
// evaluates every market referencing that event: moneyline by higher score,
// over/under against the stored line. Events without a final score are
// pending, not errors; unresolved references and unsupported market types
// are reported per item and never abort the batch.
package settle

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/lineboard/ouservice/internal/logger"
	"github.com/lineboard/ouservice/internal/models"
	"github.com/lineboard/ouservice/internal/sportsdb"
)

// ScoreSource is the slice of the sportsdb client settlement needs.
type ScoreSource interface {
	LookupEvent(ctx context.Context, eventID string) (*sportsdb.WireEvent, error)
}

// Settler settles markets against final scores.
type Settler struct {
	source ScoreSource
}

// New creates a Settler backed by the given score source.
func New(source ScoreSource) *Settler {
	return &Settler{source: source}
}

// Result is the outcome of one settlement run.
type Result struct {
	Settled []models.SettledMarket `json:"settled"`
	Pending []string               `json:"pending"`
	Errors  []models.ItemError     `json:"errors"`
}

// Settle fetches final scores for the unsettled events and evaluates the
// markets referencing them. The same finished-event input always yields the
// same settled outcomes.
func (s *Settler) Settle(ctx context.Context, events []models.Event, markets []models.Market) *Result {
	result := &Result{}

	scores := make(map[string]models.Score) // event _id -> final score
	eventByID := make(map[string]*models.Event, len(events))
	pending := make(map[string]bool)

	for i := range events {
		event := &events[i]
		if err := event.Validate(); err != nil {
			result.Errors = append(result.Errors, models.ItemError{
				Scope: "event", ID: event.ID, Message: err.Error(),
			})
			continue
		}
		eventByID[event.ID] = event

		score, state, err := s.finalScore(ctx, event)
		switch {
		case err != nil:
			result.Errors = append(result.Errors, models.ItemError{
				Scope: "event", ID: event.ID, Message: err.Error(),
			})
		case state == statePending:
			logger.Info("event %s (%s) has no final score yet", event.ID, event.SportsDBID)
			pending[event.ID] = true
			result.Pending = append(result.Pending, event.ID)
		default:
			scores[event.ID] = score
		}
	}

	for _, market := range markets {
		if err := market.Validate(); err != nil {
			result.Errors = append(result.Errors, models.ItemError{
				Scope: "market", ID: market.ID, Message: err.Error(),
			})
			continue
		}

		event, known := eventByID[market.EventID]
		if !known {
			result.Errors = append(result.Errors, models.ItemError{
				Scope:   "market",
				ID:      market.ID,
				Message: fmt.Sprintf("unresolved event reference %s", market.EventID),
			})
			continue
		}
		if pending[market.EventID] {
			continue
		}
		score, ok := scores[market.EventID]
		if !ok {
			// The event itself errored; its item error covers the market.
			continue
		}

		outcome, err := determineOutcome(market, event, score)
		if err != nil {
			result.Errors = append(result.Errors, models.ItemError{
				Scope: "market", ID: market.ID, Message: err.Error(),
			})
			continue
		}
		result.Settled = append(result.Settled, models.SettledMarket{
			MarketID:   market.ID,
			EventID:    market.EventID,
			Outcome:    outcome,
			FinalScore: score.String(),
		})
	}

	sort.Slice(result.Settled, func(i, j int) bool { return result.Settled[i].MarketID < result.Settled[j].MarketID })
	sort.Strings(result.Pending)
	sort.Slice(result.Errors, func(i, j int) bool { return result.Errors[i].ID < result.Errors[j].ID })

	logger.Info("settlement run: %d settled, %d pending, %d errors",
		len(result.Settled), len(result.Pending), len(result.Errors))
	return result
}

type scoreState int

const (
	stateFinal scoreState = iota
	statePending
)

// finalScore fetches the provider's record of the event and extracts the
// final score. Postponed, cancelled, or not-yet-finished events are
// pending, not errors.
func (s *Settler) finalScore(ctx context.Context, event *models.Event) (models.Score, scoreState, error) {
	wire, err := s.source.LookupEvent(ctx, event.SportsDBID)
	if err != nil {
		return models.Score{}, stateFinal, err
	}

	if wire.Postponed == "yes" || wire.Cancelled == "yes" || wire.Status == "POST" {
		return models.Score{}, statePending, nil
	}
	if wire.HomeScore == nil || wire.AwayScore == nil || *wire.HomeScore == "" || *wire.AwayScore == "" {
		return models.Score{}, statePending, nil
	}

	home, err := strconv.Atoi(*wire.HomeScore)
	if err != nil {
		return models.Score{}, stateFinal, fmt.Errorf("invalid home score %q: %w", *wire.HomeScore, err)
	}
	away, err := strconv.Atoi(*wire.AwayScore)
	if err != nil {
		return models.Score{}, stateFinal, fmt.Errorf("invalid away score %q: %w", *wire.AwayScore, err)
	}
	return models.Score{Home: home, Away: away}, stateFinal, nil
}

// determineOutcome evaluates a single market against a final score.
// Moneyline outcomes name the winning participant, or draw on level scores.
// Over/under compares the combined score to the stored line, pushing on an
// exact hit.
func determineOutcome(market models.Market, event *models.Event, score models.Score) (string, error) {
	switch market.Type {
	case models.MarketMoneyline:
		switch {
		case score.Home > score.Away:
			return event.Home(), nil
		case score.Away > score.Home:
			return event.Away(), nil
		default:
			return models.OutcomeDraw, nil
		}

	case models.MarketOverUnder:
		if market.Line == nil {
			return "", fmt.Errorf("no line provided for over/under market %s", market.ID)
		}
		total := float64(score.Total())
		switch {
		case total > *market.Line:
			return models.OutcomeOver, nil
		case total < *market.Line:
			return models.OutcomeUnder, nil
		default:
			return models.OutcomePush, nil
		}

	default:
		return "", fmt.Errorf("unsupported market type %q", market.Type)
	}
}
