// Package fetch provides the two interchangeable page-fetch strategies used
// by the scraper: a plain HTTP client for static pages and a headless
// Chrome fetcher (chromedp) for schedule pages that only render their
// content from JavaScript.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/lineboard/ouservice/internal/errs"
	"github.com/lineboard/ouservice/internal/logger"
)

// Fetcher retrieves the rendered HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// HTTPFetcher fetches pages with a plain HTTP GET.
type HTTPFetcher struct {
	httpClient *http.Client
	userAgent  string
}

// NewHTTPFetcher creates a plain HTTP fetcher with a per-request timeout.
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
	}
}

// Fetch retrieves the page body. Non-2xx responses are upstream errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &errs.UpstreamError{Service: "source", Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", &errs.UpstreamError{Service: "source", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &errs.UpstreamError{Service: "source", Err: fmt.Errorf("status %d from %s", resp.StatusCode, pageURL)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", &errs.UpstreamError{Service: "source", Err: fmt.Errorf("read body: %w", err)}
	}
	return string(body), nil
}

// BrowserFetcher renders pages in headless Chrome and returns the resulting
// DOM. Each fetch runs in its own browser context so a hung page cannot
// poison later fetches.
type BrowserFetcher struct {
	timeout   time.Duration
	userAgent string
}

// NewBrowserFetcher creates a chromedp-backed fetcher.
func NewBrowserFetcher(timeout time.Duration, userAgent string) *BrowserFetcher {
	return &BrowserFetcher{timeout: timeout, userAgent: userAgent}
}

// Fetch navigates to the page, waits for the body to be ready, and returns
// the rendered HTML.
func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.UserAgent(f.userAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, f.timeout)
	defer cancelRun()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", &errs.UpstreamError{Service: "browser", Err: fmt.Errorf("render %s: %w", pageURL, err)}
	}
	return html, nil
}

// Picker chooses a fetch strategy per source: hosts known to require
// JavaScript rendering go straight to the browser, everything else is
// fetched plainly first with a browser fallback when the document looks
// like an empty client-side shell.
type Picker struct {
	plain        Fetcher
	browser      Fetcher
	dynamicHosts map[string]bool
}

// NewPicker builds a Picker. browser may be nil, in which case every source
// is fetched with the plain strategy.
func NewPicker(plain, browser Fetcher, dynamicHosts []string) *Picker {
	hosts := make(map[string]bool, len(dynamicHosts))
	for _, h := range dynamicHosts {
		hosts[strings.ToLower(h)] = true
	}
	return &Picker{plain: plain, browser: browser, dynamicHosts: hosts}
}

// Fetch retrieves the page using the strategy appropriate for its host.
func (p *Picker) Fetch(ctx context.Context, pageURL string) (string, error) {
	if p.browser != nil && p.isDynamic(pageURL) {
		return p.browser.Fetch(ctx, pageURL)
	}

	html, err := p.plain.Fetch(ctx, pageURL)
	if err == nil && !looksLikeShell(html) {
		return html, nil
	}
	if p.browser == nil {
		return html, err
	}

	if err != nil {
		logger.Debug("plain fetch of %s failed, retrying with browser: %v", pageURL, err)
	} else {
		logger.Debug("document from %s looks script-rendered, refetching with browser", pageURL)
	}
	return p.browser.Fetch(ctx, pageURL)
}

func (p *Picker) isDynamic(pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	return p.dynamicHosts[strings.ToLower(u.Hostname())]
}

// looksLikeShell reports whether a document carries almost no text outside
// its markup, the signature of a client-side rendered page.
func looksLikeShell(html string) bool {
	text := stripTags(html)
	return len(strings.Fields(text)) < 20
}

// stripTags removes markup, script and style content, leaving visible text.
func stripTags(html string) string {
	var b strings.Builder
	depth := 0
	skip := false
	for i := 0; i < len(html); i++ {
		switch html[i] {
		case '<':
			depth++
			if foldHasPrefix(html[i:], "<script") || foldHasPrefix(html[i:], "<style") {
				skip = true
			} else if foldHasPrefix(html[i:], "</script") || foldHasPrefix(html[i:], "</style") {
				skip = false
			}
		case '>':
			if depth > 0 {
				depth--
			}
			b.WriteByte(' ')
		default:
			if depth == 0 && !skip {
				b.WriteByte(html[i])
			}
		}
	}
	return b.String()
}

// foldHasPrefix reports whether s starts with prefix, ASCII
// case-insensitively. Tag names are matched in place; lowercasing the whole
// document would shift byte offsets on multi-byte case pairs.
func foldHasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
