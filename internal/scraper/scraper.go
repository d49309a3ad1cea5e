// Package scraper implements the over/under scraping pipeline: fetch each
// source page, extract schedule rows, and resolve team names and lines into
// odds records. Sources are independent, so they fan out to a bounded worker
// pool and fail individually; one dead page never aborts a batch.
package scraper

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lineboard/ouservice/internal/fetch"
	"github.com/lineboard/ouservice/internal/logger"
	"github.com/lineboard/ouservice/internal/models"
)

// Scraper runs the scraping pipeline over a set of sources.
type Scraper struct {
	fetcher        fetch.Fetcher
	pattern        LineParser
	model          LineParser // nil when model parsing is disabled
	maxConcurrency int
	perSourceLimit time.Duration
}

// New creates a Scraper. model may be nil; pattern parsing then stands alone.
func New(fetcher fetch.Fetcher, pattern, model LineParser, maxConcurrency int, perSourceLimit time.Duration) *Scraper {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Scraper{
		fetcher:        fetcher,
		pattern:        pattern,
		model:          model,
		maxConcurrency: maxConcurrency,
		perSourceLimit: perSourceLimit,
	}
}

type sourceResult struct {
	source  string
	records []models.OddsRecord
	err     error
}

// Scrape fetches and parses every source. Records from all sources are
// merged and sorted by source URL then participants; failed sources are
// reported in the returned item errors.
func (s *Scraper) Scrape(ctx context.Context, leagues map[string]models.LeagueTeams, sources []string) ([]models.OddsRecord, []models.ItemError) {
	matcher := NewTeamMatcher(leagues)

	jobs := make(chan string)
	results := make(chan sourceResult, len(sources))

	var wg sync.WaitGroup
	for i := 0; i < s.maxConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for src := range jobs {
				records, err := s.scrapeOne(ctx, src, matcher)
				results <- sourceResult{source: src, records: records, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, src := range sources {
			select {
			case jobs <- src:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var records []models.OddsRecord
	var itemErrors []models.ItemError
	for res := range results {
		if res.err != nil {
			logger.Warn("source %s failed: %v", res.source, res.err)
			itemErrors = append(itemErrors, models.ItemError{
				Scope:   "source",
				ID:      res.source,
				Message: res.err.Error(),
			})
			continue
		}
		records = append(records, res.records...)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Source != records[j].Source {
			return records[i].Source < records[j].Source
		}
		return records[i].Participants[0] < records[j].Participants[0]
	})
	sort.Slice(itemErrors, func(i, j int) bool { return itemErrors[i].ID < itemErrors[j].ID })

	return records, itemErrors
}

// scrapeOne fetches a single source and runs the parser chain: the
// deterministic pattern parser first, then the model parser when the
// patterns found nothing and a model is configured.
func (s *Scraper) scrapeOne(ctx context.Context, source string, matcher *TeamMatcher) ([]models.OddsRecord, error) {
	srcCtx, cancel := context.WithTimeout(ctx, s.perSourceLimit)
	defer cancel()

	html, err := s.fetcher.Fetch(srcCtx, source)
	if err != nil {
		return nil, err
	}
	page := Page{URL: source, HTML: html}

	records, err := s.pattern.Parse(srcCtx, page, matcher)
	if err == nil {
		return s.validated(records), nil
	}
	if s.model == nil {
		return nil, err
	}

	logger.Debug("pattern parse of %s found nothing, delegating to model", source)
	records, merr := s.model.Parse(srcCtx, page, matcher)
	if merr != nil {
		return nil, merr
	}
	return s.validated(records), nil
}

// validated drops records that fail model validation. The parsers only emit
// matched teams, so drops here are rare and logged.
func (s *Scraper) validated(records []models.OddsRecord) []models.OddsRecord {
	out := records[:0]
	for _, r := range records {
		if err := r.Validate(); err != nil {
			logger.Warn("dropping invalid record from %s: %v", r.Source, err)
			continue
		}
		out = append(out, r)
	}
	return out
}
