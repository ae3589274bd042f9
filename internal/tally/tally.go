// Package tally computes vote results. Pure computation, no I/O.
package tally

import (
	"sort"
	"time"

	"github.com/minjikim/nalmoa/internal/models"
)

// DateCount is the support one candidate date received.
type DateCount struct {
	Date   string   `json:"date"`
	Count  int      `json:"count"`
	Voters []string `json:"voters"`
}

// Result is the full tally for one vote.
type Result struct {
	Counts []DateCount `json:"counts"`
	// Leading holds every date tied at the maximum count, sorted
	// chronologically. Empty when no date received any support.
	Leading []string `json:"leading"`
}

// Count tallies responses against a vote's candidate dates. This is
// multi-select approval voting: a response counts toward every date it
// selected. Ties are preserved, never broken.
func Count(dates []string, responses []models.VoteResponse) Result {
	counts := make([]DateCount, len(dates))
	for i, date := range dates {
		counts[i] = DateCount{Date: date, Voters: []string{}}
	}

	index := make(map[string][]int, len(dates))
	for i, date := range dates {
		index[date] = append(index[date], i)
	}

	for _, response := range responses {
		for _, selected := range response.SelectedDates {
			for _, i := range index[selected] {
				counts[i].Count++
				counts[i].Voters = append(counts[i].Voters, response.Nickname)
			}
		}
	}

	maxCount := 0
	for _, c := range counts {
		if c.Count > maxCount {
			maxCount = c.Count
		}
	}

	leading := []string{}
	if maxCount > 0 {
		seen := make(map[string]bool)
		for _, c := range counts {
			if c.Count == maxCount && !seen[c.Date] {
				seen[c.Date] = true
				leading = append(leading, c.Date)
			}
		}
		sortChronologically(leading)
	}

	return Result{Counts: counts, Leading: leading}
}

// sortChronologically orders ISO 8601 date strings by the instant they
// represent. Unparseable values sort last, lexically.
func sortChronologically(dates []string) {
	sort.SliceStable(dates, func(i, j int) bool {
		ti, erri := parseDate(dates[i])
		tj, errj := parseDate(dates[j])
		if erri != nil || errj != nil {
			if erri == nil {
				return true
			}
			if errj == nil {
				return false
			}
			return dates[i] < dates[j]
		}
		return ti.Before(tj)
	})
}

// parseDate accepts full RFC 3339 timestamps and bare calendar dates; the
// calendar widget emits either depending on whether a time was picked.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
