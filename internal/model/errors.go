package model

import "errors"

// ErrNotFound is returned when a referenced job does not exist.
var ErrNotFound = errors.New("job not found")

// ErrMalformedRecord marks an ingestion record that is missing a required field.
var ErrMalformedRecord = errors.New("malformed record")
