package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lineboard/ouservice/internal/errs"
	"github.com/lineboard/ouservice/internal/events"
	"github.com/lineboard/ouservice/internal/leagues"
	"github.com/lineboard/ouservice/internal/models"
	"github.com/lineboard/ouservice/internal/settle"
)

type fakeFetcher struct {
	result *leagues.Result
	err    error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ map[string]string) (*leagues.Result, error) {
	return f.result, f.err
}

type fakeScraper struct {
	records  []models.OddsRecord
	itemErrs []models.ItemError
	leagues  map[string]models.LeagueTeams
}

func (f *fakeScraper) Scrape(_ context.Context, leagues map[string]models.LeagueTeams, _ []string) ([]models.OddsRecord, []models.ItemError) {
	f.leagues = leagues
	return f.records, f.itemErrs
}

type fakeCreator struct {
	result *events.Result
	err    error
}

func (f *fakeCreator) Create(_ context.Context, _ map[string]string, _ int, _ string) (*events.Result, error) {
	return f.result, f.err
}

type fakeSettler struct {
	result *settle.Result
}

func (f *fakeSettler) Settle(_ context.Context, _ []models.Event, _ []models.Market) *settle.Result {
	return f.result
}

type fakeListener struct {
	notified chan *settle.Result
}

func (f *fakeListener) SettlementCompleted(result *settle.Result) {
	f.notified <- result
}

func newTestRouter(h *Handler) http.Handler {
	return h.Router(5 * time.Second)
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(NewHandler(nil, nil, nil, nil, nil))
	rec := doRequest(t, router, http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("Expected healthy, got %s", body["status"])
	}
}

func TestFetchLeagues(t *testing.T) {
	fetcher := &fakeFetcher{result: &leagues.Result{
		Leagues: map[string]models.LeagueTeams{
			"NBA": {League: models.League{ID: "4387", Name: "NBA"}},
		},
	}}
	router := newTestRouter(NewHandler(fetcher, nil, nil, nil, nil))

	rec := doRequest(t, router, http.MethodPost, "/fetch-leagues", `{"leagues":{"NBA":"4387"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result leagues.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if _, ok := result.Leagues["NBA"]; !ok {
		t.Errorf("Expected NBA in response, got %s", rec.Body.String())
	}
}

func TestFetchLeaguesValidation(t *testing.T) {
	router := newTestRouter(NewHandler(&fakeFetcher{}, nil, nil, nil, nil))

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"empty leagues", `{"leagues":{}}`},
		{"missing leagues", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/fetch-leagues", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestFetchLeaguesUpstreamFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: &errs.UpstreamError{Service: "sportsdb", Err: context.DeadlineExceeded}}
	router := newTestRouter(NewHandler(fetcher, nil, nil, nil, nil))

	rec := doRequest(t, router, http.MethodPost, "/fetch-leagues", `{"leagues":{"NBA":"4387"}}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", rec.Code)
	}
}

func TestScrapeOverUnders(t *testing.T) {
	scraper := &fakeScraper{records: []models.OddsRecord{{
		League:       "NBA",
		Participants: [2]string{"Boston Celtics", "New York Knicks"},
		Line:         221.5,
		Source:       "https://example.com",
	}}}
	router := newTestRouter(NewHandler(nil, scraper, nil, nil, nil))

	body := `{
		"sources": ["https://example.com"],
		"leagues_data": {"NBA": {"teams": ["Boston Celtics", {"name": "New York Knicks", "short_name": "NYK"}]}}
	}`
	rec := doRequest(t, router, http.MethodPost, "/scrape-over-unders", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Both the bare-name and object team forms reach the scraper.
	teams := scraper.leagues["NBA"].Teams
	if len(teams) != 2 {
		t.Fatalf("Expected 2 teams passed through, got %d", len(teams))
	}
	if teams[0].Name != "Boston Celtics" || teams[1].ShortName != "NYK" {
		t.Errorf("Unexpected teams: %+v", teams)
	}

	var resp scrapeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(resp.Records) != 1 || resp.Records[0].Line != 221.5 {
		t.Errorf("Unexpected records: %+v", resp.Records)
	}
	if resp.Errors == nil {
		t.Error("Expected errors to encode as [], not null")
	}
}

func TestScrapeOverUndersValidation(t *testing.T) {
	router := newTestRouter(NewHandler(nil, &fakeScraper{}, nil, nil, nil))

	tests := []struct {
		name string
		body string
	}{
		{"no sources", `{"sources":[],"leagues_data":{"NBA":{"teams":["A"]}}}`},
		{"no leagues data", `{"sources":["https://example.com"],"leagues_data":{}}`},
		{"team without name", `{"sources":["https://example.com"],"leagues_data":{"NBA":{"teams":[{"short_name":"BOS"}]}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/scrape-over-unders", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateEvents(t *testing.T) {
	creator := &fakeCreator{result: &events.Result{
		Events:  []models.Event{{ID: "e1", SportsDBID: "s1", Participants: []string{"A", "B"}}},
		Markets: []models.Market{{ID: "m1", EventID: "e1", Type: models.MarketMoneyline}},
	}}
	router := newTestRouter(NewHandler(nil, nil, creator, nil, nil))

	rec := doRequest(t, router, http.MethodPost, "/create-events", `{"leagues":{"NBA":"4387"},"days_to_fetch":2,"start_date":"2026-08-27"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result events.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(result.Events) != 1 || len(result.Markets) != 1 {
		t.Errorf("Unexpected result: %+v", result)
	}
}

func TestCreateEventsValidation(t *testing.T) {
	router := newTestRouter(NewHandler(nil, nil, &fakeCreator{}, nil, nil))

	tests := []struct {
		name string
		body string
	}{
		{"no leagues", `{"leagues":{}}`},
		{"bad start date", `{"leagues":{"NBA":"4387"},"start_date":"27-08-2026"}`},
		{"negative days", `{"leagues":{"NBA":"4387"},"days_to_fetch":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/create-events", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestSettleMarkets(t *testing.T) {
	settler := &fakeSettler{result: &settle.Result{
		Settled: []models.SettledMarket{{MarketID: "m1", EventID: "e1", Outcome: "A", FinalScore: "110-100"}},
	}}
	listener := &fakeListener{notified: make(chan *settle.Result, 1)}
	router := newTestRouter(NewHandler(nil, nil, nil, settler, listener))

	body := `{
		"unsettled_events": [{"_id":"e1","sportsdb_id":"s1","participants":["A","B"]}],
		"markets": [{"_id":"m1","event_id":"e1","type":"moneyline"}]
	}`
	rec := doRequest(t, router, http.MethodPost, "/settle-markets", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result settle.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(result.Settled) != 1 || result.Settled[0].Outcome != "A" {
		t.Errorf("Unexpected result: %+v", result)
	}
	select {
	case notified := <-listener.notified:
		if len(notified.Settled) != 1 {
			t.Errorf("Unexpected notification payload: %+v", notified)
		}
	case <-time.After(2 * time.Second):
		t.Error("Expected listener to be notified")
	}
}

// slowListener blocks until released, standing in for a notifier stuck in
// delivery retries.
type slowListener struct {
	started chan struct{}
	release chan struct{}
}

func (l *slowListener) SettlementCompleted(_ *settle.Result) {
	close(l.started)
	<-l.release
}

func TestSettleMarketsRespondsBeforeNotification(t *testing.T) {
	listener := &slowListener{started: make(chan struct{}), release: make(chan struct{})}
	defer close(listener.release)
	router := newTestRouter(NewHandler(nil, nil, nil, &fakeSettler{result: &settle.Result{
		Settled: []models.SettledMarket{{MarketID: "m1", EventID: "e1", Outcome: "A", FinalScore: "1-0"}},
	}}, listener))

	body := `{
		"unsettled_events": [{"_id":"e1","sportsdb_id":"s1","participants":["A","B"]}],
		"markets": [{"_id":"m1","event_id":"e1","type":"moneyline"}]
	}`
	rec := doRequest(t, router, http.MethodPost, "/settle-markets", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 while the listener is still blocked, got %d", rec.Code)
	}
	select {
	case <-listener.started:
	case <-time.After(2 * time.Second):
		t.Error("Expected notification to start")
	}
}

func TestSettleMarketsValidation(t *testing.T) {
	router := newTestRouter(NewHandler(nil, nil, nil, &fakeSettler{}, nil))

	rec := doRequest(t, router, http.MethodPost, "/settle-markets", `{"unsettled_events":[],"markets":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}
