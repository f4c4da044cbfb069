package model

import (
	"sort"
	"time"
)

// HistoryEntry is one immutable fact: at time At the job's tracked state
// became State with these Notes. Entries are never updated or deleted.
type HistoryEntry struct {
	ID      string    `json:"id"`
	JobID   string    `json:"job_id"`
	ActorID *string   `json:"user_id"`
	State   State     `json:"state"`
	Notes   string    `json:"notes"`
	At      time.Time `json:"timestamp"`
	Seq     int64     `json:"-"`
}

// After reports whether e was recorded after o. A zero At (missing or
// unparseable upstream) sorts before every valid timestamp; equal
// timestamps fall back to insertion order.
func (e HistoryEntry) After(o HistoryEntry) bool {
	switch {
	case e.At.IsZero() && !o.At.IsZero():
		return false
	case !e.At.IsZero() && o.At.IsZero():
		return true
	case !e.At.Equal(o.At):
		return e.At.After(o.At)
	}
	return e.Seq > o.Seq
}

// Latest returns the most recent entry, or nil for an empty history.
func Latest(entries []HistoryEntry) *HistoryEntry {
	var best *HistoryEntry
	for i := range entries {
		if best == nil || entries[i].After(*best) {
			best = &entries[i]
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// FirstWithState returns the earliest entry in the given state, or nil.
func FirstWithState(entries []HistoryEntry, st State) *HistoryEntry {
	var first *HistoryEntry
	for i := range entries {
		if entries[i].State != st {
			continue
		}
		if first == nil || first.After(entries[i]) {
			first = &entries[i]
		}
	}
	if first == nil {
		return nil
	}
	out := *first
	return &out
}

// NextTimestamp picks the write time for an entry following prev: now,
// truncated to microseconds (the precision Postgres keeps), and never
// earlier than prev so the latest entry is also the last one appended.
func NextTimestamp(prev *HistoryEntry, now time.Time) time.Time {
	at := now.UTC().Truncate(time.Microsecond)
	if prev != nil && at.Before(prev.At) {
		return prev.At
	}
	return at
}

// SortHistory orders entries oldest first, using the same rule as After.
func SortHistory(entries []HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[j].After(entries[i])
	})
}
