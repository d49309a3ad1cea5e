package events

import (
	"context"
	"fmt"
	"testing"

	"github.com/lineboard/ouservice/internal/models"
	"github.com/lineboard/ouservice/internal/sportsdb"
)

// fakeFixtures serves canned fixtures keyed by league ID and date.
type fakeFixtures struct {
	fixtures map[string][]sportsdb.WireEvent // key: leagueID + "|" + date
	failing  map[string]bool                 // leagueIDs whose fetches fail
	calls    []string
}

func (f *fakeFixtures) EventsDay(_ context.Context, leagueID, date string) ([]sportsdb.WireEvent, error) {
	f.calls = append(f.calls, leagueID+"|"+date)
	if f.failing[leagueID] {
		return nil, fmt.Errorf("league %s: upstream unavailable", leagueID)
	}
	return f.fixtures[leagueID+"|"+date], nil
}

func nbaFixture(id string) sportsdb.WireEvent {
	return sportsdb.WireEvent{
		ID:        id,
		Sport:     "Basketball",
		League:    "NBA",
		HomeTeam:  "Boston Celtics",
		AwayTeam:  "New York Knicks",
		Name:      "Boston Celtics vs New York Knicks",
		Timestamp: "2026-08-27T23:30:00",
		Venue:     "TD Garden",
		Status:    "NS",
	}
}

func TestCreateBuildsEventAndMarketPair(t *testing.T) {
	source := &fakeFixtures{fixtures: map[string][]sportsdb.WireEvent{
		"4387|2026-08-27": {nbaFixture("s1")},
	}}
	creator := NewCreator(source)

	result, err := creator.Create(context.Background(), map[string]string{"NBA": "4387"}, 1, "2026-08-27")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("Expected no errors, got %v", result.Errors)
	}
	if len(result.Events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(result.Events))
	}

	event := result.Events[0]
	if event.ID == "" {
		t.Error("Expected a generated event ID")
	}
	if event.SportsDBID != "s1" {
		t.Errorf("Expected sportsdb id s1, got %s", event.SportsDBID)
	}
	if event.Home() != "Boston Celtics" || event.Away() != "New York Knicks" {
		t.Errorf("Unexpected participants: %v", event.Participants)
	}
	if event.Start != "2026-08-27T23:30:00Z" {
		t.Errorf("Expected UTC-suffixed timestamp, got %s", event.Start)
	}
	if event.Status != models.EventFuture {
		t.Errorf("Expected future status, got %s", event.Status)
	}

	if len(result.Markets) != 2 {
		t.Fatalf("Expected 2 markets, got %d", len(result.Markets))
	}
	moneyline, overUnder := result.Markets[0], result.Markets[1]
	if moneyline.Type != models.MarketMoneyline || moneyline.EventID != "s1" {
		t.Errorf("Unexpected moneyline market: %+v", moneyline)
	}
	if moneyline.Title != "Boston Celtics Moneyline" {
		t.Errorf("Unexpected moneyline title: %s", moneyline.Title)
	}
	if overUnder.Type != models.MarketOverUnder || overUnder.EventID != "s1" {
		t.Errorf("Unexpected over/under market: %+v", overUnder)
	}
	if overUnder.Title != "Total Points" {
		t.Errorf("Unexpected over/under title: %s", overUnder.Title)
	}
	if overUnder.Line == nil || *overUnder.Line != 215 {
		t.Errorf("Expected default basketball line 215, got %v", overUnder.Line)
	}
}

func TestMarketsReferenceProviderEventID(t *testing.T) {
	first := buildMarkets(mapEvent(nbaFixture("s1")))
	for _, m := range first {
		if m.EventID != "s1" {
			t.Errorf("Expected market to reference provider event ID s1, got %s", m.EventID)
		}
	}
	// Repeated runs mint fresh event _ids but the market reference stays
	// stable, so callers can dedupe and re-join on it.
	second := buildMarkets(mapEvent(nbaFixture("s1")))
	if first[0].EventID != second[0].EventID {
		t.Errorf("Expected stable references across runs, got %s and %s", first[0].EventID, second[0].EventID)
	}
}

func TestCreateFetchesWholeWindow(t *testing.T) {
	source := &fakeFixtures{fixtures: map[string][]sportsdb.WireEvent{}}
	creator := NewCreator(source)

	if _, err := creator.Create(context.Background(), map[string]string{"NBA": "4387"}, 3, "2026-08-27"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	want := []string{"4387|2026-08-27", "4387|2026-08-28", "4387|2026-08-29"}
	if len(source.calls) != len(want) {
		t.Fatalf("Expected %d calls, got %v", len(want), source.calls)
	}
	for i, call := range want {
		if source.calls[i] != call {
			t.Errorf("Call %d: expected %s, got %s", i, call, source.calls[i])
		}
	}
}

func TestCreateIsolatesLeagueFailures(t *testing.T) {
	source := &fakeFixtures{
		fixtures: map[string][]sportsdb.WireEvent{"4387|2026-08-27": {nbaFixture("s1")}},
		failing:  map[string]bool{"4391": true},
	}
	creator := NewCreator(source)

	result, err := creator.Create(context.Background(), map[string]string{"NBA": "4387", "NFL": "4391"}, 1, "2026-08-27")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(result.Events) != 1 {
		t.Errorf("Expected the healthy league's event, got %d", len(result.Events))
	}
	if len(result.Errors) != 1 || result.Errors[0].Scope != "league" || result.Errors[0].ID != "NFL" {
		t.Errorf("Expected NFL item error, got %v", result.Errors)
	}
}

func TestCreateRejectsBadStartDate(t *testing.T) {
	creator := NewCreator(&fakeFixtures{})
	if _, err := creator.Create(context.Background(), map[string]string{"NBA": "4387"}, 1, "27-08-2026"); err == nil {
		t.Error("Expected error for malformed start date")
	}
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		status string
		want   models.EventStatus
	}{
		{"NS", models.EventFuture},
		{"Not Started", models.EventFuture},
		{"1H", models.EventOngoing},
		{"2H", models.EventOngoing},
		{"FT", models.EventCompleted},
		{"Match Finished", models.EventCompleted},
		{"", models.EventCompleted},
	}
	for _, tt := range tests {
		if got := mapStatus(tt.status); got != tt.want {
			t.Errorf("mapStatus(%q) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestMapEventNormalizesSport(t *testing.T) {
	wire := nbaFixture("s1")
	wire.Sport = "American Football"
	if event := mapEvent(wire); event.Sport != "Football" {
		t.Errorf("Expected Football, got %s", event.Sport)
	}
}

func TestLineDefaults(t *testing.T) {
	tests := []struct {
		name  string
		event models.Event
		want  float64
	}{
		{"nfl league overrides sport", models.Event{League: "NFL", Sport: "Football"}, 29.5},
		{"baseball", models.Event{League: "MLB", Sport: "Baseball"}, 8.5},
		{"basketball", models.Event{League: "NBA", Sport: "Basketball"}, 215},
		{"fallback", models.Event{League: "EPL", Sport: "Soccer"}, 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lineFor(tt.event); got != tt.want {
				t.Errorf("lineFor = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestTotalTitle(t *testing.T) {
	tests := []struct {
		sport string
		want  string
	}{
		{"Basketball", "Total Points"},
		{"Football", "Total Points"},
		{"Soccer", "Total Goals"},
		{"Hockey", "Total Goals"},
		{"Baseball", "Total Runs"},
		{"Tennis", "Total Sets"},
		{"Darts", "Total Points"},
	}
	for _, tt := range tests {
		if got := totalTitle(tt.sport); got != tt.want {
			t.Errorf("totalTitle(%q) = %q, want %q", tt.sport, got, tt.want)
		}
	}
}
