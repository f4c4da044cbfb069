package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Record is one externally fetched posting, already mapped from the source's
// wire format. Defaulting happens here and nowhere else.
type Record struct {
	ExternalID  string   `json:"external_id" validate:"required"`
	Title       string   `json:"title" validate:"required"`
	Company     string   `json:"company" validate:"required"`
	URL         string   `json:"url" validate:"required"`
	Description string   `json:"description,omitempty"`
	Country     string   `json:"country,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
	Remote      bool     `json:"remote,omitempty"`
	Hybrid      bool     `json:"hybrid,omitempty"`
	PostedAt    string   `json:"posted_at,omitempty"`
}

// Normalize returns r with surrounding whitespace stripped from its text fields.
func (r Record) Normalize() Record {
	r.ExternalID = strings.TrimSpace(r.ExternalID)
	r.Title = strings.TrimSpace(r.Title)
	r.Company = strings.TrimSpace(r.Company)
	r.URL = strings.TrimSpace(r.URL)
	r.Description = strings.TrimSpace(r.Description)
	r.Country = strings.TrimSpace(r.Country)
	return r
}

// Fields converts r to the values stored for a job from the given region.
func (r Record) Fields(region Region) JobFields {
	return JobFields{
		ExternalID:  r.ExternalID,
		Title:       r.Title,
		Company:     r.Company,
		URL:         r.URL,
		Description: r.Description,
		Country:     r.Country,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		Remote:      r.Remote,
		Hybrid:      r.Hybrid,
		Region:      region,
	}
}

// UnmarshalJSON accepts external_id as a JSON string or number; sources
// disagree on which they send.
func (r *Record) UnmarshalJSON(b []byte) error {
	type plain Record
	aux := struct {
		ExternalID json.RawMessage `json:"external_id"`
		*plain
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	id, err := externalID(aux.ExternalID)
	if err != nil {
		return err
	}
	r.ExternalID = id
	return nil
}

func externalID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("external_id must be a string or number, got %s", raw)
	}
	return n.String(), nil
}
