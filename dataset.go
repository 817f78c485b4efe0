package main

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// splitSeed fixes the shuffle used by split so the same input always yields
// the same partitioning, run to run and machine to machine.
const splitSeed = 42

// LabelCount is one row of a label distribution table.
type LabelCount struct {
	Label int64
	Count int
}

// countLabels tallies records per label, ordered by label ascending. Counts
// always sum to len(records); an empty input yields an empty table.
func countLabels(records []Record) []LabelCount {
	counts := make(map[int64]int)
	for _, r := range records {
		counts[r.Label]++
	}

	table := make([]LabelCount, 0, len(counts))
	for label, count := range counts {
		table = append(table, LabelCount{Label: label, Count: count})
	}
	sort.Slice(table, func(i, j int) bool { return table[i].Label < table[j].Label })
	return table
}

// findThreshold returns the labels whose share of the record set is strictly
// below threshold, ascending. A label sitting exactly at the threshold is not
// low volume.
func findThreshold(records []Record, threshold float64) []int64 {
	if len(records) == 0 {
		return nil
	}

	total := float64(len(records))
	var labels []int64
	for _, lc := range countLabels(records) {
		if float64(lc.Count)/total < threshold {
			labels = append(labels, lc.Label)
		}
	}
	return labels
}

// updateLabel rewrites every record whose label is in oldLabels to newLabel.
// The slice is mutated in place and returned for call chaining; no records
// are added or removed.
func updateLabel(records []Record, oldLabels []int64, newLabel int64) []Record {
	old := make(map[int64]bool, len(oldLabels))
	for _, l := range oldLabels {
		old[l] = true
	}

	for i := range records {
		if old[records[i].Label] {
			records[i].Label = newLabel
		}
	}
	return records
}

// filterLabels returns the records whose label is in labels. The result is a
// fresh slice; the input is left untouched.
func filterLabels(records []Record, labels []int64) []Record {
	keep := make(map[int64]bool, len(labels))
	for _, l := range labels {
		keep[l] = true
	}

	var out []Record
	for _, r := range records {
		if keep[r.Label] {
			out = append(out, r)
		}
	}
	return out
}

// split partitions records into train and test sets, stratified by label.
// Each label's rows are shuffled with a fixed seed and divided so that both
// partitions keep the input's label proportions within rounding, and every
// label lands in both partitions. A label needs at least 2 records to be
// stratified; fewer is an error rather than a silently dropped class.
func split(records []Record, testFraction float64) ([]Record, []Record, error) {
	byLabel := make(map[int64][]int)
	for i, r := range records {
		byLabel[r.Label] = append(byLabel[r.Label], i)
	}

	labels := make([]int64, 0, len(byLabel))
	for label := range byLabel {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	rng := rand.New(rand.NewSource(splitSeed))

	var train, test []Record
	for _, label := range labels {
		indices := byLabel[label]
		n := len(indices)
		if n < 2 {
			return nil, nil, fmt.Errorf("label %d has %d record(s), need at least 2 to stratify", label, n)
		}

		rng.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })

		testN := int(math.Round(float64(n) * testFraction))
		if testN < 1 {
			testN = 1
		}
		if testN > n-1 {
			testN = n - 1
		}

		for _, idx := range indices[:testN] {
			test = append(test, records[idx])
		}
		for _, idx := range indices[testN:] {
			train = append(train, records[idx])
		}
	}

	return train, test, nil
}
