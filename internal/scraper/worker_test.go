package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H3199/duunikanban/internal/config"
	"github.com/H3199/duunikanban/internal/events"
	"github.com/H3199/duunikanban/internal/ingest"
	"github.com/H3199/duunikanban/internal/metrics"
	"github.com/H3199/duunikanban/internal/model"
	"github.com/H3199/duunikanban/internal/store/sqlite"
)

type fakeSource struct {
	name  string
	batch Batch
	err   error
}

func (f *fakeSource) Name() string                         { return f.name }
func (f *fakeSource) Region() model.Region                 { return model.RegionEMEA }
func (f *fakeSource) Fetch(context.Context) (Batch, error) { return f.batch, f.err }

type fakeSearcher struct {
	postings []Posting
	got      SearchQuery
}

func (f *fakeSearcher) Search(_ context.Context, q SearchQuery) ([]Posting, error) {
	f.got = q
	return f.postings, nil
}

func newWorker(t *testing.T) (*Worker, *sqlite.Store, *metrics.Metrics, *miniredis.Miniredis) {
	t.Helper()
	s, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	m := metrics.New()
	w := NewWorker(ingest.NewReconciler(s, ingest.WithMetrics(m)), events.NewRedis(rdb), m)
	return w, s, m, mr
}

func TestWorker_Run(t *testing.T) {
	w, s, m, mr := newWorker(t)
	ctx := context.Background()

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()}).Subscribe(ctx, events.JobsIngested)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	src := &fakeSource{name: "emea", batch: Batch{
		Fetched: 4,
		Records: []model.Record{
			{ExternalID: "1", Title: "SRE", Company: "Acme", URL: "http://a"},
			{ExternalID: "2", Title: "DBA", Company: "Initech", URL: "http://b"},
			{ExternalID: "3", Company: "NoTitle", URL: "http://c"},
		},
		Rejected: map[string]int{ReasonLanguage: 1},
	}}

	res, err := w.Run(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, ingest.Result{Inserted: 2, Malformed: 1}, res)

	jobs, err := s.ListJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsFiltered.WithLabelValues("emea", ReasonLanguage)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceRuns.WithLabelValues("emea", "ok")))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var ev events.Ingested
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
	assert.Equal(t, "emea", ev.Source)
	assert.Equal(t, 2, ev.Inserted)
	assert.Equal(t, 1, ev.Malformed)
}

func TestWorker_FetchErrorWritesNothing(t *testing.T) {
	w, s, m, _ := newWorker(t)
	ctx := context.Background()

	src := &fakeSource{name: "fi", err: errors.New("upstream down")}
	_, err := w.Run(ctx, src)
	require.Error(t, err)

	jobs, err := s.ListJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceRuns.WithLabelValues("fi", "fetch_error")))
}

func TestWorker_RunAllContinuesAfterFailure(t *testing.T) {
	w, s, _, _ := newWorker(t)
	ctx := context.Background()

	w.RunAll(ctx, []Source{
		&fakeSource{name: "broken", err: errors.New("boom")},
		&fakeSource{name: "ok", batch: Batch{Records: []model.Record{
			{ExternalID: "1", Title: "SRE", Company: "Acme", URL: "http://a"},
		}}},
	})

	jobs, err := s.ListJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestTheirStackSource_Fetch(t *testing.T) {
	api := &fakeSearcher{postings: []Posting{
		{ID: "1", JobTitle: "SRE", Company: "Acme", URL: "http://a", Remote: true},
		{ID: "2", JobTitle: "DBA", Company: "Acme", URL: "http://b"},
	}}
	src := NewFISource(api, 7, nil, 50)

	b, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, b.Fetched)
	require.Len(t, b.Records, 1)
	assert.Equal(t, "1", b.Records[0].ExternalID)
	assert.Equal(t, map[string]int{ReasonLocation: 1}, b.Rejected)

	assert.Equal(t, []string{"FI"}, api.got.JobCountryCodeOr)
	assert.Equal(t, 7, api.got.PostedAtMaxAgeDays)
}

func TestSourcesFromConfig(t *testing.T) {
	cfg := &config.Config{Sources: []string{"fi", "emea", "itewiki"}, MaxAgeDays: 7, RadiusKM: 50, ItewikiPages: 1}

	srcs, err := SourcesFromConfig(cfg, nil)
	require.Error(t, err, "missing API key is reported")
	require.Len(t, srcs, 1)
	assert.Equal(t, "itewiki", srcs[0].Name())

	cfg.TheirStackAPIKey = "key"
	srcs, err = SourcesFromConfig(cfg, NewTheirStackFetcher("key", ""))
	require.NoError(t, err)
	names := make([]string, 0, len(srcs))
	for _, s := range srcs {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"fi", "emea", "itewiki"}, names)

	cfg.Sources = []string{"bogus"}
	_, err = SourcesFromConfig(cfg, nil)
	assert.Error(t, err)
}
