package scraper

import (
	"context"
	"fmt"

	"github.com/H3199/duunikanban/internal/config"
	"github.com/H3199/duunikanban/internal/model"
)

// searchKeywords narrow TheirStack searches to infrastructure roles.
var (
	descriptionKeywords = []string{"devops", "kubernetes", "cassandra", "linux"}
	titleKeywords       = []string{"devops", "site reliability", "infrastructure", "platform", "system", "administrator", "dba"}
)

// Batch is the eligible output of one source fetch.
type Batch struct {
	Records  []model.Record
	Fetched  int
	Rejected map[string]int // by reason
}

// Source produces eligible records for one region.
type Source interface {
	Name() string
	Region() model.Region
	Fetch(ctx context.Context) (Batch, error)
}

// searcher is the part of TheirStackFetcher a source needs.
type searcher interface {
	Search(ctx context.Context, q SearchQuery) ([]Posting, error)
}

// TheirStackSource runs one TheirStack query and filters the results.
type TheirStackSource struct {
	name   string
	region model.Region
	api    searcher
	query  SearchQuery
	filter Filter
}

// NewFISource searches Finnish postings and keeps remote, hybrid or nearby ones.
func NewFISource(api searcher, maxAgeDays int, home *Point, radiusKM float64) *TheirStackSource {
	return &TheirStackSource{
		name:   "fi",
		region: model.RegionFI,
		api:    api,
		query: SearchQuery{
			JobCountryCodeOr:        []string{"FI"},
			PostedAtMaxAgeDays:      maxAgeDays,
			JobDescriptionPatternOr: descriptionKeywords,
			JobTitleOr:              titleKeywords,
		},
		filter: NewFIFilter(home, radiusKM),
	}
}

// NewEMEASource searches remote EMEA postings and keeps English ones without
// dealbreakers.
func NewEMEASource(api searcher, maxAgeDays int) *TheirStackSource {
	remote := true
	return &TheirStackSource{
		name:   "emea",
		region: model.RegionEMEA,
		api:    api,
		query: SearchQuery{
			Remote:                   &remote,
			JobCountryCodeOr:         EMEACountries,
			JobDescriptionPatternNot: DefaultDealbreakers,
			PostedAtMaxAgeDays:       maxAgeDays,
			JobDescriptionPatternOr:  descriptionKeywords,
			JobTitleOr:               titleKeywords,
			JobTitleNot:              []string{"architect"},
		},
		filter: NewEMEAFilter(nil, nil),
	}
}

// Name implements Source.
func (s *TheirStackSource) Name() string { return s.name }

// Region implements Source.
func (s *TheirStackSource) Region() model.Region { return s.region }

// Fetch implements Source.
func (s *TheirStackSource) Fetch(ctx context.Context) (Batch, error) {
	postings, err := s.api.Search(ctx, s.query)
	if err != nil {
		return Batch{}, err
	}

	b := Batch{Fetched: len(postings), Rejected: make(map[string]int)}
	for _, p := range postings {
		kept, reason, ok := s.filter.Apply(p)
		if !ok {
			b.Rejected[reason]++
			continue
		}
		b.Records = append(b.Records, kept.Record())
	}
	return b, nil
}

// ItewikiSource scrapes itewiki.fi. Postings are Finnish IT jobs and pass
// without further filtering.
type ItewikiSource struct {
	scraper *ItewikiScraper
}

// NewItewikiSource wraps s.
func NewItewikiSource(s *ItewikiScraper) *ItewikiSource { return &ItewikiSource{scraper: s} }

// Name implements Source.
func (s *ItewikiSource) Name() string { return "itewiki" }

// Region implements Source.
func (s *ItewikiSource) Region() model.Region { return model.RegionFI }

// Fetch implements Source.
func (s *ItewikiSource) Fetch(ctx context.Context) (Batch, error) {
	recs, err := s.scraper.Scrape(ctx)
	if err != nil {
		return Batch{}, err
	}
	return Batch{Records: recs, Fetched: len(recs), Rejected: map[string]int{}}, nil
}

// SourcesFromConfig builds the sources named in cfg.Sources. TheirStack
// sources are skipped, with an error listing them, when no API key is set.
func SourcesFromConfig(cfg *config.Config, api *TheirStackFetcher) ([]Source, error) {
	var home *Point
	if cfg.HomeLat != nil && cfg.HomeLon != nil {
		home = &Point{Lat: *cfg.HomeLat, Lon: *cfg.HomeLon}
	}

	var (
		out     []Source
		skipped []string
	)
	for _, name := range cfg.Sources {
		switch name {
		case "fi", "emea":
			if cfg.TheirStackAPIKey == "" {
				skipped = append(skipped, name)
				continue
			}
			if name == "fi" {
				out = append(out, NewFISource(api, cfg.MaxAgeDays, home, cfg.RadiusKM))
			} else {
				out = append(out, NewEMEASource(api, cfg.MaxAgeDays))
			}
		case "itewiki":
			out = append(out, NewItewikiSource(NewItewikiScraper("", cfg.ItewikiPages, nil)))
		default:
			return nil, fmt.Errorf("unknown source %q", name)
		}
	}
	if len(skipped) > 0 {
		return out, fmt.Errorf("THEIRSTACK_API_KEY not set, skipping sources %v", skipped)
	}
	return out, nil
}
