package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/H3199/duunikanban/internal/model"
)

const (
	theirStackBaseURL = "https://api.theirstack.com"
	theirStackLimit   = 25
	httpTimeout       = 15 * time.Second
	maxErrorBody      = 512
)

// UpstreamError reports a non-success response from an external source.
// The whole run for that source is aborted; the next scheduled run retries.
type UpstreamError struct {
	Source     string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Source, e.StatusCode, e.Body)
}

// SearchQuery is the body of POST /v1/jobs/search. Only the filters the
// sources use are modelled.
type SearchQuery struct {
	Page                     int      `json:"page"`
	Limit                    int      `json:"limit"`
	Remote                   *bool    `json:"remote,omitempty"`
	JobCountryCodeOr         []string `json:"job_country_code_or,omitempty"`
	PostedAtMaxAgeDays       int      `json:"posted_at_max_age_days"`
	JobDescriptionPatternOr  []string `json:"job_description_pattern_or,omitempty"`
	JobDescriptionPatternNot []string `json:"job_description_pattern_not,omitempty"`
	JobTitleOr               []string `json:"job_title_or,omitempty"`
	JobTitleNot              []string `json:"job_title_not,omitempty"`
}

// Posting mirrors the fields of one TheirStack job that ingestion reads.
type Posting struct {
	ID          json.Number `json:"id"`
	JobTitle    string      `json:"job_title"`
	URL         string      `json:"url"`
	Company     string      `json:"company"`
	Description string      `json:"description"`
	Country     string      `json:"country"`
	CountryCode string      `json:"country_code"`
	Latitude    *float64    `json:"latitude"`
	Longitude   *float64    `json:"longitude"`
	Remote      bool        `json:"remote"`
	Hybrid      bool        `json:"hybrid"`
	DatePosted  string      `json:"date_posted"`
}

// Record maps p to an ingestion record.
func (p Posting) Record() model.Record {
	return model.Record{
		ExternalID:  p.ID.String(),
		Title:       p.JobTitle,
		Company:     p.Company,
		URL:         p.URL,
		Description: p.Description,
		Country:     p.Country,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		Remote:      p.Remote,
		Hybrid:      p.Hybrid,
		PostedAt:    p.DatePosted,
	}
}

type searchResponse struct {
	Data []Posting `json:"data"`
}

type creditBalance struct {
	APICredits     int `json:"api_credits"`
	UsedAPICredits int `json:"used_api_credits"`
}

// TheirStackFetcher calls the TheirStack job search API.
type TheirStackFetcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewTheirStackFetcher constructs a fetcher with a shared HTTP client.
// baseURL may be empty for the public API.
func NewTheirStackFetcher(apiKey, baseURL string) *TheirStackFetcher {
	if baseURL == "" {
		baseURL = theirStackBaseURL
	}
	return &TheirStackFetcher{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

// Search runs one query and returns the postings on its first page.
func (f *TheirStackFetcher) Search(ctx context.Context, q SearchQuery) ([]Posting, error) {
	if q.Limit == 0 {
		q.Limit = theirStackLimit
	}
	payload, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	var resp searchResponse
	if err := f.do(ctx, http.MethodPost, "/v1/jobs/search", payload, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Credits returns the remaining API credits, never below zero.
func (f *TheirStackFetcher) Credits(ctx context.Context) (int, error) {
	var bal creditBalance
	if err := f.do(ctx, http.MethodGet, "/v0/billing/credit-balance", nil, &bal); err != nil {
		return 0, err
	}
	return max(bal.APICredits-bal.UsedAPICredits, 0), nil
}

func (f *TheirStackFetcher) do(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, f.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("theirstack %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{Source: "theirstack", StatusCode: resp.StatusCode, Body: truncate(string(raw), maxErrorBody)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("json decode: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…(" + strconv.Itoa(len(s)-n) + " more bytes)"
}
