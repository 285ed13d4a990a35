package traffic

import (
	"cmp"
	"slices"
)

// Bucket is one histogram entry.
type Bucket[K cmp.Ordered] struct {
	Key   K   `json:"key"`
	Count int `json:"count"`
}

// histogram is a frequency table that remembers first-seen key order so that
// ranking ties resolve to the key encountered first.
type histogram[K cmp.Ordered] struct {
	counts map[K]int
	order  []K
}

func newHistogram[K cmp.Ordered]() *histogram[K] {
	return &histogram[K]{counts: make(map[K]int)}
}

func (h *histogram[K]) add(key K) {
	if _, ok := h.counts[key]; !ok {
		h.order = append(h.order, key)
	}
	h.counts[key]++
}

func (h *histogram[K]) sum() int {
	total := 0
	for _, c := range h.counts {
		total += c
	}
	return total
}

// ranked returns up to n buckets by descending count; n <= 0 means all.
func (h *histogram[K]) ranked(n int) []Bucket[K] {
	buckets := h.buckets()
	slices.SortStableFunc(buckets, func(a, b Bucket[K]) int {
		return cmp.Compare(b.Count, a.Count)
	})
	if n > 0 && len(buckets) > n {
		buckets = buckets[:n]
	}
	return buckets
}

// sorted returns all buckets by ascending key.
func (h *histogram[K]) sorted() []Bucket[K] {
	buckets := h.buckets()
	slices.SortFunc(buckets, func(a, b Bucket[K]) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return buckets
}

// buckets returns all buckets in first-seen order.
func (h *histogram[K]) buckets() []Bucket[K] {
	out := make([]Bucket[K], 0, len(h.order))
	for _, k := range h.order {
		out = append(out, Bucket[K]{Key: k, Count: h.counts[k]})
	}
	return out
}
