package model

import "time"

// Job is one distinct posting from one source. It carries no state; the
// current state is derived from the job's history.
type Job struct {
	ID          string    `json:"id"`
	ExternalID  string    `json:"external_id"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	Country     string    `json:"country"`
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	Remote      bool      `json:"remote"`
	Hybrid      bool      `json:"hybrid"`
	Region      Region    `json:"region"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// JobFields are the values one ingestion run supplies for a posting.
type JobFields struct {
	ExternalID  string
	Title       string
	Company     string
	URL         string
	Description string
	Country     string
	Latitude    *float64
	Longitude   *float64
	Remote      bool
	Hybrid      bool
	Region      Region
}

// NewJob builds the row inserted on first sight of an external id.
func NewJob(id string, f JobFields, now time.Time) Job {
	region := f.Region
	if region == "" {
		region = RegionUnspecified
	}
	return Job{
		ID:          id,
		ExternalID:  f.ExternalID,
		Title:       f.Title,
		Company:     f.Company,
		URL:         f.URL,
		Description: f.Description,
		Country:     f.Country,
		Latitude:    f.Latitude,
		Longitude:   f.Longitude,
		Remote:      f.Remote,
		Hybrid:      f.Hybrid,
		Region:      region,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Merge returns a copy of j with the mutable fields (title, company, url,
// description, country) taken from f wherever they differ, and the region
// backfilled when j has none. The receiver is not modified.
func (j Job) Merge(f JobFields) (Job, bool) {
	out := j
	changed := false

	set := func(dst *string, v string) {
		if *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&out.Title, f.Title)
	set(&out.Company, f.Company)
	set(&out.URL, f.URL)
	set(&out.Description, f.Description)
	set(&out.Country, f.Country)

	if out.Region == "" && f.Region != "" {
		out.Region = f.Region
		changed = true
	}
	return out, changed
}

// Seed is the history entry written together with a newly inserted job.
type Seed struct {
	State State
	Notes string
	At    time.Time
}
