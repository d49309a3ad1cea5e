// Package server exposes the service over HTTP: a liveness endpoint plus
// one POST endpoint per operation (fetch-leagues, scrape-over-unders,
// create-events, settle-markets). Handlers validate the request body, call
// the operation synchronously, and map error kinds onto status codes;
// per-item failures ride inside the response body, not the status.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/lineboard/ouservice/internal/errs"
	"github.com/lineboard/ouservice/internal/events"
	"github.com/lineboard/ouservice/internal/leagues"
	"github.com/lineboard/ouservice/internal/logger"
	"github.com/lineboard/ouservice/internal/models"
	"github.com/lineboard/ouservice/internal/settle"
)

// LeagueFetcher fetches league details and team lists.
type LeagueFetcher interface {
	Fetch(ctx context.Context, requested map[string]string) (*leagues.Result, error)
}

// OddsScraper scrapes over/under records from source pages.
type OddsScraper interface {
	Scrape(ctx context.Context, leagues map[string]models.LeagueTeams, sources []string) ([]models.OddsRecord, []models.ItemError)
}

// EventCreator builds events and markets from upcoming fixtures.
type EventCreator interface {
	Create(ctx context.Context, leagues map[string]string, daysToFetch int, startDate string) (*events.Result, error)
}

// MarketSettler settles markets against final scores.
type MarketSettler interface {
	Settle(ctx context.Context, events []models.Event, markets []models.Market) *settle.Result
}

// SettlementListener is notified after a settlement run. Optional.
type SettlementListener interface {
	SettlementCompleted(result *settle.Result)
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	fetcher  LeagueFetcher
	scraper  OddsScraper
	creator  EventCreator
	settler  MarketSettler
	listener SettlementListener
}

// NewHandler creates a new handler. listener may be nil.
func NewHandler(fetcher LeagueFetcher, scraper OddsScraper, creator EventCreator, settler MarketSettler, listener SettlementListener) *Handler {
	return &Handler{
		fetcher:  fetcher,
		scraper:  scraper,
		creator:  creator,
		settler:  settler,
		listener: listener,
	}
}

// Router builds the chi router with the service routes and middleware.
func (h *Handler) Router(requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)
	r.Post("/fetch-leagues", h.FetchLeagues)
	r.Post("/scrape-over-unders", h.ScrapeOverUnders)
	r.Post("/create-events", h.CreateEvents)
	r.Post("/settle-markets", h.SettleMarkets)

	return r
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "ouservice",
	})
}

type fetchLeaguesRequest struct {
	Leagues map[string]string `json:"leagues"`
}

// FetchLeagues resolves league names/IDs into league details and team lists.
func (h *Handler) FetchLeagues(w http.ResponseWriter, r *http.Request) {
	var req fetchLeaguesRequest
	if err := decodeBody(r, &req); err != nil {
		respondForError(w, err)
		return
	}
	if len(req.Leagues) == 0 {
		respondForError(w, errs.Validationf("leagues must not be empty"))
		return
	}

	result, err := h.fetcher.Fetch(r.Context(), req.Leagues)
	if err != nil {
		respondForError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type scrapeRequest struct {
	LeaguesData map[string]leagueTeamsBody `json:"leagues_data"`
	Sources     []string                   `json:"sources"`
}

type leagueTeamsBody struct {
	Teams []teamBody `json:"teams"`
}

// teamBody accepts either a bare team name or a team object, so callers can
// pass the raw output of /fetch-leagues or a plain name list.
type teamBody struct {
	models.Team
}

func (t *teamBody) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		t.Team = models.Team{Name: name}
		return nil
	}
	return json.Unmarshal(data, &t.Team)
}

type scrapeResponse struct {
	Records []models.OddsRecord `json:"records"`
	Errors  []models.ItemError  `json:"errors"`
}

// ScrapeOverUnders scrapes over/under lines from the requested sources.
func (h *Handler) ScrapeOverUnders(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := decodeBody(r, &req); err != nil {
		respondForError(w, err)
		return
	}
	if len(req.Sources) == 0 {
		respondForError(w, errs.Validationf("sources must not be empty"))
		return
	}
	if len(req.LeaguesData) == 0 {
		respondForError(w, errs.Validationf("leagues_data must not be empty"))
		return
	}

	leaguesData := make(map[string]models.LeagueTeams, len(req.LeaguesData))
	for name, body := range req.LeaguesData {
		teams := make([]models.Team, 0, len(body.Teams))
		for _, tb := range body.Teams {
			if tb.Name == "" {
				respondForError(w, errs.Validationf("league %s contains a team without a name", name))
				return
			}
			teams = append(teams, tb.Team)
		}
		leaguesData[name] = models.LeagueTeams{League: models.League{Name: name}, Teams: teams}
	}

	records, itemErrors := h.scraper.Scrape(r.Context(), leaguesData, req.Sources)
	respondJSON(w, http.StatusOK, scrapeResponse{
		Records: emptyIfNilRecords(records),
		Errors:  emptyIfNilErrors(itemErrors),
	})
}

type createEventsRequest struct {
	Leagues     map[string]string `json:"leagues"`
	DaysToFetch int               `json:"days_to_fetch"`
	StartDate   string            `json:"start_date"`
}

// CreateEvents builds events and markets from the provider's fixtures.
func (h *Handler) CreateEvents(w http.ResponseWriter, r *http.Request) {
	var req createEventsRequest
	if err := decodeBody(r, &req); err != nil {
		respondForError(w, err)
		return
	}
	if len(req.Leagues) == 0 {
		respondForError(w, errs.Validationf("leagues must not be empty"))
		return
	}
	if req.StartDate != "" {
		if _, err := time.Parse("2006-01-02", req.StartDate); err != nil {
			respondForError(w, errs.Validationf("start_date must be YYYY-MM-DD"))
			return
		}
	}
	if req.DaysToFetch < 0 {
		respondForError(w, errs.Validationf("days_to_fetch must not be negative"))
		return
	}

	result, err := h.creator.Create(r.Context(), req.Leagues, req.DaysToFetch, req.StartDate)
	if err != nil {
		respondForError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type settleRequest struct {
	UnsettledEvents []models.Event  `json:"unsettled_events"`
	Markets         []models.Market `json:"markets"`
}

// SettleMarkets settles the submitted markets against final scores.
func (h *Handler) SettleMarkets(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := decodeBody(r, &req); err != nil {
		respondForError(w, err)
		return
	}
	if len(req.UnsettledEvents) == 0 && len(req.Markets) == 0 {
		respondForError(w, errs.Validationf("unsettled_events and markets must not both be empty"))
		return
	}

	result := h.settler.Settle(r.Context(), req.UnsettledEvents, req.Markets)
	if h.listener != nil {
		// Notification is best-effort and retries internally; it must not
		// hold up the caller's response.
		go h.listener.SettlementCompleted(result)
	}
	respondJSON(w, http.StatusOK, result)
}

func decodeBody(r *http.Request, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return errs.Validationf("invalid request body: %v", err)
	}
	return nil
}

// respondForError maps error kinds onto HTTP status codes.
func respondForError(w http.ResponseWriter, err error) {
	var validation *errs.ValidationError
	var notFound *errs.NotFoundError
	var upstream *errs.UpstreamError

	switch {
	case errors.As(err, &validation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &notFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &upstream):
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"status":  "error",
		"message": message,
	})
}

func emptyIfNilRecords(records []models.OddsRecord) []models.OddsRecord {
	if records == nil {
		return []models.OddsRecord{}
	}
	return records
}

func emptyIfNilErrors(itemErrors []models.ItemError) []models.ItemError {
	if itemErrors == nil {
		return []models.ItemError{}
	}
	return itemErrors
}
