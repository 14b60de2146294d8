package services

import (
	"sort"
	"strings"
	"time"

	"fleet-analytics/internal/models"
)

// Filter selects the current view. Nil date bounds and empty sets do not filter.
type Filter struct {
	Start        *time.Time `json:"start_date,omitempty"`
	End          *time.Time `json:"end_date,omitempty"`
	Companies    []string   `json:"companies,omitempty"`
	Destinations []string   `json:"destinations,omitempty"`
	Materials    []string   `json:"materials,omitempty"`
}

// Key identifies the selection: filters that select the same records have
// equal keys regardless of value order, case or duplicates.
func (f Filter) Key() string {
	var b strings.Builder
	for _, bound := range []*time.Time{f.Start, f.End} {
		if bound != nil {
			b.WriteString(models.TruncateDay(*bound).Format(models.DateLayout))
		}
		b.WriteByte('|')
	}
	for _, values := range [][]string{f.Companies, f.Destinations, f.Materials} {
		set := normalizedSet(values)
		keys := make([]string, 0, len(set))
		for k := range set {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(strings.Join(keys, ","))
		b.WriteByte('|')
	}
	return b.String()
}

// Reset returns the cleared filter for records: the full date span and no set filters
func (f Filter) Reset(records []models.EnrichedRecord) Filter {
	if len(records) == 0 {
		return Filter{}
	}
	first, last := records[0].DateOnly, records[0].DateOnly
	for _, r := range records[1:] {
		if r.DateOnly.Before(first) {
			first = r.DateOnly
		}
		if r.DateOnly.After(last) {
			last = r.DateOnly
		}
	}
	return Filter{Start: &first, End: &last}
}

// ApplyFilters returns the records matching every active dimension of f, in
// input order. The input slice is never modified.
func ApplyFilters(records []models.EnrichedRecord, f Filter) []models.EnrichedRecord {
	var start, end time.Time
	if f.Start != nil {
		start = models.TruncateDay(*f.Start)
	}
	if f.End != nil {
		end = models.TruncateDay(*f.End)
	}
	companies := normalizedSet(f.Companies)
	destinations := normalizedSet(f.Destinations)
	materials := normalizedSet(f.Materials)

	out := make([]models.EnrichedRecord, 0, len(records))
	for _, r := range records {
		if f.Start != nil && r.DateOnly.Before(start) {
			continue
		}
		if f.End != nil && r.DateOnly.After(end) {
			continue
		}
		if companies != nil && !companies[r.Company()] {
			continue
		}
		if destinations != nil && !destinations[r.Destination] {
			continue
		}
		if materials != nil && !materials[r.Material] {
			continue
		}
		out = append(out, r)
	}
	return out
}

// normalizedSet returns nil for an empty selection
func normalizedSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[models.NormalizeText(v)] = true
	}
	return set
}
