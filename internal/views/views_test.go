package views

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H3199/duunikanban/internal/model"
	"github.com/H3199/duunikanban/internal/store"
	"github.com/H3199/duunikanban/internal/store/sqlite"
)

var now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func entry(jobID string, st model.State, at time.Time) model.HistoryEntry {
	return model.HistoryEntry{JobID: jobID, State: st, At: at}
}

func ids(vs []JobView) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.ID
	}
	return out
}

func TestParseWindow(t *testing.T) {
	for s, want := range map[string]time.Duration{
		"":    0,
		"12h": 12 * time.Hour,
		"24h": 24 * time.Hour,
		"48h": 48 * time.Hour,
		"7d":  7 * 24 * time.Hour,
	} {
		got, err := ParseWindow(s)
		require.NoError(t, err, s)
		assert.Equal(t, Window(want), got, s)
	}

	_, err := ParseWindow("3d")
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestBuildList_WindowOnlyFiltersNew(t *testing.T) {
	old := now.Add(-30 * time.Hour)
	jobs := []model.Job{{ID: "new-old"}, {ID: "applied-old"}}
	latest := map[string]model.HistoryEntry{
		"new-old":     entry("new-old", model.StateNew, old),
		"applied-old": entry("applied-old", model.StateApplied, old),
	}

	w24, _ := ParseWindow("24h")
	assert.Equal(t, []string{"applied-old"}, ids(BuildList(jobs, latest, w24, now)))

	w48, _ := ParseWindow("48h")
	assert.ElementsMatch(t, []string{"new-old", "applied-old"}, ids(BuildList(jobs, latest, w48, now)))

	assert.Len(t, BuildList(jobs, latest, 0, now), 2)
}

func TestBuildList_WindowDropsNewWithoutTimestamp(t *testing.T) {
	jobs := []model.Job{{ID: "no-history"}, {ID: "saved-no-ts"}}
	latest := map[string]model.HistoryEntry{
		"saved-no-ts": {JobID: "saved-no-ts", State: model.StateSaved},
	}

	w, _ := ParseWindow("7d")
	assert.Equal(t, []string{"saved-no-ts"}, ids(BuildList(jobs, latest, w, now)))
}

func TestBuildList_Defaults(t *testing.T) {
	list := BuildList([]model.Job{{ID: "a"}}, nil, 0, now)
	require.Len(t, list, 1)
	assert.Equal(t, model.StateNew, list[0].State)
	assert.Equal(t, "", list[0].Notes)
	assert.Nil(t, list[0].UpdatedAt)
}

func TestBuildList_SortsNewestFirstNullsLast(t *testing.T) {
	jobs := []model.Job{{ID: "b"}, {ID: "null"}, {ID: "a"}, {ID: "newest"}}
	latest := map[string]model.HistoryEntry{
		"a":      entry("a", model.StateSaved, now.Add(-time.Hour)),
		"b":      entry("b", model.StateSaved, now.Add(-time.Hour)),
		"newest": entry("newest", model.StateSaved, now),
		"null":   {JobID: "null", State: model.StateSaved},
	}

	assert.Equal(t, []string{"newest", "a", "b", "null"}, ids(BuildList(jobs, latest, 0, now)))
}

func TestBuildDetail(t *testing.T) {
	applied := entry("j", model.StateApplied, now.Add(-time.Hour))
	latest := model.HistoryEntry{JobID: "j", State: model.StateApplied, Notes: "follow up", At: now}

	d := BuildDetail(model.Job{ID: "j"}, &latest, &applied)
	assert.Equal(t, model.StateApplied, d.State)
	assert.Equal(t, "follow up", d.Notes)
	require.NotNil(t, d.AppliedAt)
	assert.True(t, d.AppliedAt.Equal(applied.At))

	none := BuildDetail(model.Job{ID: "j"}, nil, nil)
	assert.Nil(t, none.AppliedAt)
	assert.Equal(t, model.StateNew, none.State)
}

func TestJobView_JSONUsesHistoryTimestamp(t *testing.T) {
	v := View(model.Job{ID: "j", Title: "SRE", UpdatedAt: now.Add(-time.Hour)},
		&model.HistoryEntry{State: model.StateSaved, At: now})

	b, err := json.Marshal(JobDetail{JobView: v})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "SRE", got["title"])
	assert.Equal(t, "saved", got["state"])
	assert.Equal(t, now.Format(time.RFC3339), got["updated_at"])
	assert.Nil(t, got["applied_at"])
}

func TestBuilder_AgainstStore(t *testing.T) {
	s, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	res, err := s.UpsertJob(ctx, model.JobFields{ExternalID: "42", Title: "SRE", Company: "Acme", URL: "http://x"},
		&model.Seed{State: model.StateNew, At: now.Add(-30 * time.Hour)})
	require.NoError(t, err)

	b := NewBuilder(s)
	b.now = func() time.Time { return now }

	w24, _ := ParseWindow("24h")
	list, err := b.List(ctx, w24)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = store.Append(ctx, s, res.Job.ID, store.EntryInput{State: model.StateApplied, At: now.Add(-29 * time.Hour)})
	require.NoError(t, err)

	list, err = b.List(ctx, w24)
	require.NoError(t, err)
	require.Len(t, list, 1)

	d, err := b.Detail(ctx, res.Job.ID)
	require.NoError(t, err)
	require.NotNil(t, d.AppliedAt)
	assert.True(t, d.AppliedAt.Equal(now.Add(-29*time.Hour)))

	_, err = b.Detail(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
