package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/H3199/duunikanban/internal/model"
)

const (
	itewikiBaseURL   = "https://www.itewiki.fi"
	itewikiSearch    = "/search_results/posts"
	itewikiUserAgent = "DuunikanbanBot/1.0"
)

// ItewikiScraper reads job postings from the itewiki.fi job board: listing
// pages yield detail URLs, each detail page carries a JSON-LD JobPosting.
type ItewikiScraper struct {
	baseURL string
	pages   int
	client  *http.Client
	limiter *rate.Limiter
}

// NewItewikiScraper returns a scraper over the first pages listing pages.
// baseURL may be empty for the live site; limiter may be nil for one
// request per second.
func NewItewikiScraper(baseURL string, pages int, limiter *rate.Limiter) *ItewikiScraper {
	if baseURL == "" {
		baseURL = itewikiBaseURL
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(1), 1)
	}
	return &ItewikiScraper{
		baseURL: strings.TrimRight(baseURL, "/"),
		pages:   pages,
		client:  &http.Client{Timeout: httpTimeout},
		limiter: limiter,
	}
}

// Scrape walks the listing pages and returns one record per detail page
// that carries a JobPosting. Detail pages without one are skipped; any
// HTTP failure aborts the run.
func (s *ItewikiScraper) Scrape(ctx context.Context) ([]model.Record, error) {
	seen := make(map[string]bool)
	var records []model.Record

	for page := 1; page <= s.pages; page++ {
		urls, err := s.jobURLs(ctx, page)
		if err != nil {
			return records, fmt.Errorf("listing page %d: %w", page, err)
		}
		for _, u := range urls {
			if seen[u] {
				continue
			}
			seen[u] = true

			rec, ok, err := s.scrapeJob(ctx, u)
			if err != nil {
				return records, fmt.Errorf("job %s: %w", u, err)
			}
			if !ok {
				slog.Debug("no JobPosting on page", "url", u)
				continue
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

func (s *ItewikiScraper) jobURLs(ctx context.Context, page int) ([]string, error) {
	params := url.Values{}
	params.Set("formType", "job_search")
	params.Set("sorting", "job")
	params.Set("isActive", "1")
	params.Set("pageSize", "50")
	params.Set("page", strconv.Itoa(page))

	doc, err := s.get(ctx, s.baseURL+itewikiSearch+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var urls []string
	dupe := make(map[string]bool)
	doc.Find("a[href*='rekryilmoitus']").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || !strings.HasPrefix(href, "/") {
			return
		}
		u := s.baseURL + href
		if !dupe[u] {
			dupe[u] = true
			urls = append(urls, u)
		}
	})
	return urls, nil
}

func (s *ItewikiScraper) scrapeJob(ctx context.Context, pageURL string) (model.Record, bool, error) {
	doc, err := s.get(ctx, pageURL)
	if err != nil {
		return model.Record{}, false, err
	}

	jp, ok := extractJobPosting(doc)
	if !ok {
		return model.Record{}, false, nil
	}

	link := jp.URL
	if link == "" {
		link = pageURL
	}
	return model.Record{
		ExternalID:  ItewikiID(pageURL),
		Title:       jp.Title,
		Company:     jp.HiringOrganization.Name,
		URL:         link,
		Description: htmlText(jp.Description),
		Country:     jp.country(),
		PostedAt:    jp.DatePosted,
	}, true, nil
}

// ItewikiID derives a stable external id from a posting URL.
func ItewikiID(pageURL string) string {
	return "itewiki:" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(pageURL)).String()
}

func (s *ItewikiScraper) get(ctx context.Context, u string) (*goquery.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", itewikiUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &UpstreamError{Source: "itewiki", StatusCode: resp.StatusCode, Body: string(body)}
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ─── JSON-LD ─────────────────────────────────────────────────────────────────

type jobPosting struct {
	Type               string `json:"@type"`
	Title              string `json:"title"`
	URL                string `json:"url"`
	Description        string `json:"description"`
	DatePosted         string `json:"datePosted"`
	HiringOrganization struct {
		Name string `json:"name"`
	} `json:"hiringOrganization"`
	JobLocation json.RawMessage `json:"jobLocation"`
}

type jobLocation struct {
	Address struct {
		AddressCountry json.RawMessage `json:"addressCountry"`
	} `json:"address"`
}

// country reads jobLocation.address.addressCountry, which may be a string
// or a Country object, under a single location or a list.
func (jp jobPosting) country() string {
	if len(jp.JobLocation) == 0 {
		return ""
	}
	var loc jobLocation
	if err := json.Unmarshal(jp.JobLocation, &loc); err != nil {
		var locs []jobLocation
		if err := json.Unmarshal(jp.JobLocation, &locs); err != nil || len(locs) == 0 {
			return ""
		}
		loc = locs[0]
	}
	raw := loc.Address.AddressCountry
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return name
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Name
	}
	return ""
}

// extractJobPosting returns the first application/ld+json block, unwrapping
// a top-level list, when it is a JobPosting.
func extractJobPosting(doc *goquery.Document) (jobPosting, bool) {
	script := doc.Find(`script[type="application/ld+json"]`).First()
	if script.Length() == 0 {
		return jobPosting{}, false
	}
	raw := []byte(strings.TrimSpace(script.Text()))

	var jp jobPosting
	if err := json.Unmarshal(raw, &jp); err != nil {
		var list []jobPosting
		if err := json.Unmarshal(raw, &list); err != nil || len(list) == 0 {
			return jobPosting{}, false
		}
		jp = list[0]
	}
	if jp.Type != "JobPosting" {
		return jobPosting{}, false
	}
	return jp, true
}

// htmlText flattens an HTML fragment to its text content.
func htmlText(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return fragment
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return strings.TrimSpace(doc.Text())
}
