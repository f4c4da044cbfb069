package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/H3199/duunikanban/internal/model"
)

func TestJobMerge_NoChange(t *testing.T) {
	j := model.NewJob("id-1", model.JobFields{
		ExternalID: "42", Title: "SRE", Company: "Acme", URL: "http://x", Region: model.RegionFI,
	}, time.Now())

	merged, changed := j.Merge(model.JobFields{
		ExternalID: "42", Title: "SRE", Company: "Acme", URL: "http://x", Region: model.RegionFI,
	})
	if changed {
		t.Error("Merge with identical fields reported a change")
	}
	if merged != j {
		t.Errorf("Merge returned %+v, want %+v", merged, j)
	}
}

func TestJobMerge_OverwritesDifferingFields(t *testing.T) {
	j := model.NewJob("id-1", model.JobFields{
		ExternalID: "42", Title: "SRE", Company: "Acme", URL: "http://x",
	}, time.Now())

	merged, changed := j.Merge(model.JobFields{
		ExternalID: "42", Title: "Senior SRE", Company: "Acme", URL: "http://x", Country: "Finland",
	})
	if !changed {
		t.Fatal("Merge should report a change")
	}
	if merged.Title != "Senior SRE" || merged.Country != "Finland" {
		t.Errorf("Merge = %+v, want updated title and country", merged)
	}
	if j.Title != "SRE" {
		t.Error("Merge must not modify the receiver")
	}
}

func TestJobMerge_BackfillsRegionOnly(t *testing.T) {
	j := model.Job{ID: "id-1", ExternalID: "42", Title: "SRE", Company: "Acme", URL: "http://x"}

	merged, changed := j.Merge(model.JobFields{
		ExternalID: "42", Title: "SRE", Company: "Acme", URL: "http://x", Region: model.RegionEMEA,
	})
	if !changed || merged.Region != model.RegionEMEA {
		t.Errorf("unset region should be backfilled, got %q (changed=%v)", merged.Region, changed)
	}

	again, changed := merged.Merge(model.JobFields{
		ExternalID: "42", Title: "SRE", Company: "Acme", URL: "http://x", Region: model.RegionFI,
	})
	if changed || again.Region != model.RegionEMEA {
		t.Errorf("a set region must not be overwritten, got %q (changed=%v)", again.Region, changed)
	}
}

func TestNewJob_DefaultsRegion(t *testing.T) {
	j := model.NewJob("id", model.JobFields{ExternalID: "1"}, time.Now())
	if j.Region != model.RegionUnspecified {
		t.Errorf("Region = %q, want unspecified", j.Region)
	}
}

func TestRecordNormalize(t *testing.T) {
	r := model.Record{ExternalID: " 42 ", Title: "\tSRE\n", Company: " Acme", URL: "http://x "}.Normalize()
	if r.ExternalID != "42" || r.Title != "SRE" || r.Company != "Acme" || r.URL != "http://x" {
		t.Errorf("Normalize() = %+v", r)
	}
}

func TestRecordUnmarshal_ExternalID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"external_id": "abc"}`, "abc"},
		{`{"external_id": 42}`, "42"},
		{`{"external_id": 4200000000123}`, "4200000000123"},
		{`{"external_id": null}`, ""},
		{`{}`, ""},
	}
	for _, c := range cases {
		var r model.Record
		if err := json.Unmarshal([]byte(c.in), &r); err != nil {
			t.Fatalf("Unmarshal(%s): %v", c.in, err)
		}
		if r.ExternalID != c.want {
			t.Errorf("Unmarshal(%s).ExternalID = %q, want %q", c.in, r.ExternalID, c.want)
		}
	}
}

func TestRecordUnmarshal_Rejects(t *testing.T) {
	for _, in := range []string{
		`{"external_id": true}`,
		`{"external_id": "44", "title": 7}`,
		`{"external_id": "44", "latitude": "north"}`,
	} {
		var r model.Record
		if err := json.Unmarshal([]byte(in), &r); err == nil {
			t.Errorf("Unmarshal(%s) = nil error, want failure", in)
		}
	}
}

func TestRecordUnmarshal_KeepsOtherFields(t *testing.T) {
	var r model.Record
	in := `{"external_id": 7, "title": "SRE", "company": "Acme", "url": "http://x", "latitude": 60.1, "remote": true}`
	if err := json.Unmarshal([]byte(in), &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if r.ExternalID != "7" || r.Title != "SRE" || r.Company != "Acme" || !r.Remote || r.Latitude == nil || *r.Latitude != 60.1 {
		t.Errorf("Unmarshal = %+v", r)
	}
}
