package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/solosuccess/competitor-intel/internal/models"
	"golang.org/x/time/rate"
)

const (
	maxContentLength = 10000
	maxLinks         = 50
	maxImages        = 20
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Options configures the web scraper
type Options struct {
	UserAgent string
	Headers   map[string]string
	Timeout   time.Duration
	// MinDelay is the minimum gap between two requests made by this scraper
	MinDelay time.Duration
}

// ScrapeError identifies the URL a scrape failed for
type ScrapeError struct {
	URL string
	Err error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("failed to scrape %s: %v", e.URL, e.Err)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// FailedURL returns the URL carried by a scrape error, if any
func FailedURL(err error) (string, bool) {
	var scrapeErr *ScrapeError
	if errors.As(err, &scrapeErr) {
		return scrapeErr.URL, true
	}
	return "", false
}

// WebScraper fetches competitor pages and extracts a comparable snapshot.
// All requests go through one politeness gate, so concurrent callers queue.
type WebScraper struct {
	client  *resty.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// Ensure WebScraper implements Scraper
var _ Scraper = (*WebScraper)(nil)

// NewWebScraper creates a new web scraper
func NewWebScraper(opts Options) *WebScraper {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	limit := rate.Inf
	if opts.MinDelay > 0 {
		limit = rate.Every(opts.MinDelay)
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeaders(opts.Headers)

	return &WebScraper{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
}

// Scrape fetches a single URL and returns its snapshot
func (s *WebScraper) Scrape(ctx context.Context, url string) (*models.ScrapedContent, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &ScrapeError{URL: url, Err: err}
	}

	start := time.Now()
	resp, err := s.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		logrus.Errorf("Error scraping %s: %v", url, err)
		return nil, &ScrapeError{URL: url, Err: err}
	}

	logrus.WithFields(logrus.Fields{
		"url":         url,
		"status_code": resp.StatusCode(),
		"duration_ms": time.Since(start).Milliseconds(),
		"bytes":       len(resp.Body()),
	}).Debug("Fetched competitor page")

	if resp.IsError() {
		return nil, &ScrapeError{URL: url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode())}
	}

	content, err := Parse(bytes.NewReader(resp.Body()), url, s.now())
	if err != nil {
		return nil, &ScrapeError{URL: url, Err: err}
	}

	return content, nil
}

// ScrapeAll scrapes each URL in turn; failed URLs are logged and skipped
func (s *WebScraper) ScrapeAll(ctx context.Context, urls []string) []*models.ScrapedContent {
	var results []*models.ScrapedContent

	for _, url := range urls {
		content, err := s.Scrape(ctx, url)
		if err != nil {
			logrus.Warnf("Failed to scrape %s: %v", url, err)
			continue
		}
		results = append(results, content)
	}

	return results
}

// Parse extracts a snapshot from an HTML document
func Parse(r io.Reader, pageURL string, scrapedAt time.Time) (*models.ScrapedContent, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = metaContent(doc, `meta[property="og:title"]`)
	}

	description := metaContent(doc, `meta[name="description"]`)
	if description == "" {
		description = metaContent(doc, `meta[property="og:description"]`)
	}

	// Page chrome is dropped before both the text and the links are read
	doc.Find("script, style, nav, header, footer, aside").Remove()
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if strings.HasPrefix(href, "http") || strings.HasPrefix(href, "/") {
			links = append(links, href)
		}
	})

	var images []string
	doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		if src, _ := sel.Attr("src"); src != "" {
			images = append(images, src)
		}
	})

	return &models.ScrapedContent{
		URL:         pageURL,
		Title:       title,
		Description: description,
		Content:     truncate(text, maxContentLength),
		Links:       dedupe(links, maxLinks),
		Images:      dedupe(images, maxImages),
		Metadata: models.ScrapeMetadata{
			ScrapedAt:   scrapedAt.UTC(),
			ContentHash: ContentHash(text),
		},
	}, nil
}

// ContentHash is a 32-bit rolling hash (h = h*31 + c over UTF-16 code units)
// rendered in base 36.
func ContentHash(content string) string {
	var hash int32
	for _, unit := range utf16.Encode([]rune(content)) {
		hash = hash*31 + int32(unit)
	}
	return strconv.FormatInt(int64(hash), 36)
}

func metaContent(doc *goquery.Document, selector string) string {
	value, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(value)
}

// truncate keeps the first max UTF-16 code units of s, the unit stored snapshots
// have always been measured in. A surrogate pair split by the cut is dropped whole.
func truncate(s string, max int) string {
	units := utf16.Encode([]rune(s))
	if len(units) <= max {
		return s
	}
	cut := units[:max]
	if last := rune(cut[len(cut)-1]); last >= 0xD800 && last < 0xDC00 {
		cut = cut[:len(cut)-1]
	}
	return string(utf16.Decode(cut))
}

func dedupe(values []string, limit int) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
		if len(result) == limit {
			break
		}
	}
	return result
}
