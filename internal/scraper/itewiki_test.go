package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const listingHTML = `<html><body>
<a href="/rekryilmoitus/1-devops">DevOps</a>
<a href="/rekryilmoitus/1-devops">DevOps again</a>
<a href="/rekryilmoitus/2-dba">DBA</a>
<a href="https://elsewhere.example/rekryilmoitus/3">external</a>
<a href="/blogi/4">blog</a>
</body></html>`

const devopsHTML = `<html><head>
<script type="application/ld+json">
{"@type":"JobPosting","title":"DevOps Engineer","url":"https://www.itewiki.fi/rekryilmoitus/1-devops",
 "description":"<p>Kubernetes &amp; Linux</p>","datePosted":"2025-05-01",
 "hiringOrganization":{"name":"Firma Oy"},
 "jobLocation":{"address":{"addressCountry":"FI"}}}
</script></head><body></body></html>`

const dbaHTML = `<html><head>
<script type="application/ld+json">
[{"@type":"JobPosting","title":"DBA","description":"Cassandra",
  "hiringOrganization":{"name":"Data Oy"},
  "jobLocation":[{"address":{"addressCountry":{"@type":"Country","name":"Finland"}}}]}]
</script></head></html>`

func itewikiServer(t *testing.T, detailStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search_results/posts", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			fmt.Fprint(w, "<html></html>")
			return
		}
		assert.Equal(t, "job_search", r.URL.Query().Get("formType"))
		fmt.Fprint(w, listingHTML)
	})
	mux.HandleFunc("/rekryilmoitus/1-devops", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(detailStatus)
		fmt.Fprint(w, devopsHTML)
	})
	mux.HandleFunc("/rekryilmoitus/2-dba", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, dbaHTML)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestItewikiScrape(t *testing.T) {
	srv := itewikiServer(t, http.StatusOK)
	s := NewItewikiScraper(srv.URL, 2, rate.NewLimiter(rate.Inf, 1))

	recs, err := s.Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)

	devops := recs[0]
	assert.Equal(t, "DevOps Engineer", devops.Title)
	assert.Equal(t, "Firma Oy", devops.Company)
	assert.Equal(t, "https://www.itewiki.fi/rekryilmoitus/1-devops", devops.URL)
	assert.Equal(t, "Kubernetes & Linux", devops.Description)
	assert.Equal(t, "FI", devops.Country)
	assert.Equal(t, ItewikiID(srv.URL+"/rekryilmoitus/1-devops"), devops.ExternalID)

	dba := recs[1]
	assert.Equal(t, "Finland", dba.Country)
	assert.Equal(t, srv.URL+"/rekryilmoitus/2-dba", dba.URL, "page URL is used when JSON-LD has none")
}

func TestItewikiScrape_DetailFailureAborts(t *testing.T) {
	srv := itewikiServer(t, http.StatusInternalServerError)
	s := NewItewikiScraper(srv.URL, 1, rate.NewLimiter(rate.Inf, 1))

	_, err := s.Scrape(context.Background())
	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "itewiki", ue.Source)
}

func TestItewikiID_Stable(t *testing.T) {
	a := ItewikiID("https://www.itewiki.fi/rekryilmoitus/1")
	assert.Equal(t, a, ItewikiID("https://www.itewiki.fi/rekryilmoitus/1"))
	assert.NotEqual(t, a, ItewikiID("https://www.itewiki.fi/rekryilmoitus/2"))
}
