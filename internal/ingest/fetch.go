package ingest

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"
)

const defaultUserAgent = "sidekick/1.0 (+https://github.com/sidekick-cli/sidekick)"

// Page is the extracted text of one fetched URL.
type Page struct {
	URL   string
	Title string
	Text  string
}

// FetcherConfig configures the web fetcher. Zero values select defaults.
type FetcherConfig struct {
	UserAgent   string
	Timeout     time.Duration
	Parallelism int
	Delay       time.Duration
}

// Fetcher downloads pages and extracts their readable text. Extraction
// first tries readability; pages it cannot handle fall back to a plain
// DOM text dump.
type Fetcher struct {
	collector *colly.Collector
	logger    *slog.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetcherConfig, logger *slog.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 2
	}

	c := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(cfg.Timeout)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
	}); err != nil {
		return nil, fmt.Errorf("configuring rate limit: %w", err)
	}

	return &Fetcher{collector: c, logger: logger}, nil
}

// Fetch downloads a single URL and returns its readable text.
func (f *Fetcher) Fetch(rawURL string) (*Page, error) {
	var page *Page
	var extractErr error

	c := f.collector.Clone()
	c.OnResponse(func(r *colly.Response) {
		pageURL := r.Request.URL

		article, err := readability.FromReader(bytes.NewReader(r.Body), pageURL)
		if err == nil && strings.TrimSpace(article.TextContent) != "" {
			page = &Page{
				URL:   pageURL.String(),
				Title: article.Title,
				Text:  strings.TrimSpace(article.TextContent),
			}
			return
		}
		if err != nil {
			f.logger.Debug("readability extraction failed, falling back to DOM text",
				"url", pageURL.String(), "error", err)
		}

		page, extractErr = extractPlainText(r.Body, pageURL.String())
	})

	var fetchErr error
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(rawURL); err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, fetchErr)
	}
	if extractErr != nil {
		return nil, extractErr
	}
	if page == nil || page.Text == "" {
		return nil, fmt.Errorf("no readable text at %s", rawURL)
	}
	return page, nil
}

// extractPlainText pulls the title and body text straight out of the DOM.
func extractPlainText(body []byte, pageURL string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML from %s: %w", pageURL, err)
	}
	doc.Find("script, style, noscript").Remove()

	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	return &Page{
		URL:   pageURL,
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Text:  text,
	}, nil
}
