package scraper

import (
	"slices"
	"strings"
)

// EMEACountries is the allow-list of ISO country codes for the EMEA source.
var EMEACountries = []string{
	"DE", "DK", "FI", "SE", "NO", "EE", "LV", "LT", "NL", "BE", "PL", "CZ", "SK",
	"HU", "AT", "CH", "IE", "GB", "FR", "ES", "PT", "IT", "RO", "BG", "HR", "SI",
}

// remoteHints mark a Finnish posting as remote-friendly even when the source
// flags say otherwise.
var remoteHints = []string{
	"remote", "hybrid", "hybridi", "hybridimahdollisuus", "joustava",
	"etätyö", "etänä", "etätyönä", "etätyömahdollisuus",
}

// Rejection reasons, used as metric labels.
const (
	ReasonDealbreaker = "dealbreaker"
	ReasonCountry     = "country"
	ReasonLanguage    = "language"
	ReasonLocation    = "location"
)

// Filter decides whether a posting is eligible. It may adjust the posting
// (for example by setting Remote from description hints) and returns the
// rejection reason when it is not eligible.
type Filter interface {
	Apply(p Posting) (Posting, string, bool)
}

// FIFilter keeps remote or hybrid postings, and on-site postings within
// RadiusKM of Home. Without a Home only remote or hybrid postings pass.
type FIFilter struct {
	Home     *Point
	RadiusKM float64
	hints    *PhraseMatcher
}

// NewFIFilter returns an FIFilter using the built-in remote hints.
func NewFIFilter(home *Point, radiusKM float64) *FIFilter {
	return &FIFilter{Home: home, RadiusKM: radiusKM, hints: NewPhraseMatcher(remoteHints)}
}

// Apply implements Filter.
func (f *FIFilter) Apply(p Posting) (Posting, string, bool) {
	if !p.Remote && !p.Hybrid && f.hints.Contains(p.Description) {
		p.Remote = true
	}
	if p.Remote || p.Hybrid {
		return p, "", true
	}
	if f.Home != nil && p.Latitude != nil && p.Longitude != nil {
		if HaversineKM(*f.Home, Point{Lat: *p.Latitude, Lon: *p.Longitude}) <= f.RadiusKM {
			return p, "", true
		}
	}
	return p, ReasonLocation, false
}

// EMEAFilter keeps English postings from allowed countries that contain
// no dealbreaker phrase.
type EMEAFilter struct {
	countries    []string
	dealbreakers *PhraseMatcher
}

// NewEMEAFilter returns an EMEAFilter. Nil arguments select the defaults.
func NewEMEAFilter(countries, dealbreakers []string) *EMEAFilter {
	if countries == nil {
		countries = EMEACountries
	}
	if dealbreakers == nil {
		dealbreakers = DefaultDealbreakers
	}
	return &EMEAFilter{countries: countries, dealbreakers: NewPhraseMatcher(dealbreakers)}
}

// Apply implements Filter. A posting without a country code passes the
// country check since the search query already restricted countries.
func (f *EMEAFilter) Apply(p Posting) (Posting, string, bool) {
	if cc := strings.ToUpper(p.CountryCode); cc != "" && !slices.Contains(f.countries, cc) {
		return p, ReasonCountry, false
	}
	if f.dealbreakers.Contains(p.JobTitle, p.Description) {
		return p, ReasonDealbreaker, false
	}
	if !IsEnglish(p.Description) {
		return p, ReasonLanguage, false
	}
	return p, "", true
}
