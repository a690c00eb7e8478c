// Package listview derives the ordered, filtered, paginated projection each
// console screen renders. Derivation is pure: the same records, query and
// evaluation time always produce the same output, so screens can re-derive
// on every state change without hidden coupling to fetch or mutation state.
package listview

import (
	"cmp"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateRange restricts records by their timestamp relative to evaluation time.
type DateRange string

const (
	RangeAny      DateRange = ""
	RangeUpcoming DateRange = "upcoming"
	RangeToday    DateRange = "today"
	RangePast     DateRange = "past"
)

// ParseDateRange validates a date range string.
func ParseDateRange(s string) (DateRange, error) {
	switch DateRange(s) {
	case RangeAny, RangeUpcoming, RangeToday, RangePast:
		return DateRange(s), nil
	}
	return "", fmt.Errorf("unknown date range: %q", s)
}

// Query is the filter/sort/page specification supplied by a screen.
type Query struct {
	Search  string
	Range   DateRange
	Sort    string
	Desc    bool
	Page    int
	PerPage int
}

// Comparator orders two records by one field. Negative means a before b.
type Comparator[T any] func(a, b T) int

// View declares how a record type is searched, sorted and date-filtered.
type View[T any] struct {
	// SearchText returns the string fields scanned by free-text search.
	SearchText func(T) []string
	// SortFields maps sortable field names to comparators.
	SortFields map[string]Comparator[T]
	// DateLike marks fields whose default sort direction is descending.
	DateLike map[string]bool
	// Date returns the timestamp used by date-range filtering; ok=false
	// means the record has none and matches only RangeAny.
	Date func(T) (t time.Time, ok bool)
}

// Page is one derived page of records.
type Page[T any] struct {
	Items   []T `json:"items"`
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// DefaultDesc reports the default sort direction when switching to field.
func (v View[T]) DefaultDesc(field string) bool {
	return v.DateLike[field]
}

// Derive applies the query to records: free-text search, extra categorical
// predicates (conjunction), date range, stable sort, then pagination. The
// input slice is never mutated.
func (v View[T]) Derive(records []T, q Query, now time.Time, predicates ...func(T) bool) Page[T] {
	matched := make([]T, 0, len(records))

	term := strings.ToLower(strings.TrimSpace(q.Search))

next:
	for _, rec := range records {
		if term != "" && !v.matchesSearch(rec, term) {
			continue
		}
		if !v.matchesRange(rec, q.Range, now) {
			continue
		}
		for _, pred := range predicates {
			if pred != nil && !pred(rec) {
				continue next
			}
		}
		matched = append(matched, rec)
	}

	if compare, ok := v.SortFields[q.Sort]; ok {
		sort.SliceStable(matched, func(i, j int) bool {
			c := compare(matched[i], matched[j])
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}

	return paginate(matched, q.Page, q.PerPage)
}

func (v View[T]) matchesSearch(rec T, term string) bool {
	if v.SearchText == nil {
		return false
	}
	for _, field := range v.SearchText(rec) {
		if field == "" {
			continue
		}
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func (v View[T]) matchesRange(rec T, r DateRange, now time.Time) bool {
	if r == RangeAny {
		return true
	}
	if v.Date == nil {
		return false
	}
	t, ok := v.Date(rec)
	if !ok {
		return false
	}

	switch r {
	case RangeUpcoming:
		return t.After(now)
	case RangePast:
		return t.Before(now)
	case RangeToday:
		// Compare calendar days in the caller's location; stored
		// timestamps may carry a different zone.
		y1, m1, d1 := t.In(now.Location()).Date()
		y2, m2, d2 := now.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	}
	return false
}

func paginate[T any](items []T, page, perPage int) Page[T] {
	total := len(items)
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		return Page[T]{Items: items, Total: total, Page: 1, PerPage: total}
	}

	start := (page - 1) * perPage
	if start >= total {
		return Page[T]{Items: []T{}, Total: total, Page: page, PerPage: perPage}
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return Page[T]{Items: items[start:end], Total: total, Page: page, PerPage: perPage}
}

// CompareStrings is a case-folded lexicographic comparator helper.
func CompareStrings(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// CompareTimes orders timestamps ascending.
func CompareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

// CompareNumbers orders numeric values ascending.
func CompareNumbers[N cmp.Ordered](a, b N) int {
	return cmp.Compare(a, b)
}
