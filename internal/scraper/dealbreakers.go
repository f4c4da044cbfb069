// Package scraper fetches postings from external sources, applies the
// eligibility filters and hands the survivors to the reconciler.
package scraper

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// DefaultDealbreakers are phrases that disqualify a remote EMEA posting:
// country-locked remote, on-site or hybrid requirements, and language
// requirements other than English.
var DefaultDealbreakers = []string{
	"unpaid",
	"internship",
	"must be uk based",
	"based in the uk",
	"uk-based",
	"must be in the uk",
	"uk only",
	"must live in the uk",
	"candidates must be in the uk",
	"work in the uk",
	"based in london",
	"must be located in london",
	"must be located in germany",
	"german citizens only",
	"must be based in germany",
	"must be based in france",
	"france only",
	"must be based in spain",
	"spain only",
	"must be based in italy",
	"must be located in italy",
	"based in poland",
	"based in netherlands",
	"must be based in netherlands",
	"based in belgium",
	"onsite only",
	"on-site only",
	"must relocate",
	"relocation required",
	"must be within commuting distance",
	"office based",
	"not a remote role",
	"remote within germany",
	"remote within uk",
	"remote within ireland",
	"remote in france",
	"remote in spain",
	"remote in poland",
	"remote within switzerland",
	"remote within austria",
	"remote within italy",
	"remote within eu only",
	"not available outside",
	"not open to remote workers abroad",
	"eligible to work in germany only",
	"eligible to work in uk only",
	"eligible to work in france only",
	"eligible to work in spain only",
	"eligible to work in italy only",
	"hybrid working",
	"fluent in german",
	"native german speaker",
	"german language required",
	"must speak german",
	"excellent german skills",
	"proficient in german",
	"german speaking",
	"bilingual in german",
	"german native",
	"german level",
	"spanish level",
	"french level",
	"italian level",
	"russian",
	"on-site",
	"must already be domiciled",
	"hybrid role",
	"hybrid work",
	"uk resident",
	"location: hybrid",
	"polish",
	"hybrid within",
}

// PhraseMatcher finds any of a fixed set of phrases in one pass over the
// text. Matching is case-insensitive. Safe for concurrent use.
type PhraseMatcher struct {
	phrases []string

	mu      sync.Mutex // ahocorasick.Matcher keeps per-call state
	matcher *ahocorasick.Matcher
}

// NewPhraseMatcher compiles phrases. Empty phrases are ignored.
func NewPhraseMatcher(phrases []string) *PhraseMatcher {
	m := &PhraseMatcher{}
	for _, p := range phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			m.phrases = append(m.phrases, p)
		}
	}
	if len(m.phrases) > 0 {
		m.matcher = ahocorasick.NewStringMatcher(m.phrases)
	}
	return m
}

// Phrases returns the compiled phrase list.
func (m *PhraseMatcher) Phrases() []string { return m.phrases }

// Find returns the phrases present in any of texts.
func (m *PhraseMatcher) Find(texts ...string) []string {
	if m.matcher == nil {
		return nil
	}
	m.mu.Lock()
	hits := m.matcher.Match([]byte(strings.ToLower(strings.Join(texts, " "))))
	m.mu.Unlock()
	if len(hits) == 0 {
		return nil
	}
	out := make([]string, 0, len(hits))
	for _, i := range hits {
		out = append(out, m.phrases[i])
	}
	return out
}

// Contains reports whether any phrase occurs in texts.
func (m *PhraseMatcher) Contains(texts ...string) bool {
	return len(m.Find(texts...)) > 0
}
