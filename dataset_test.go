package main

import (
	"reflect"
	"testing"
)

// fixtureRecords mirrors the canonical rebalancing fixture: three sparse
// classes of 2 rows each and two dominant classes of 6 rows each.
func fixtureRecords() []Record {
	texts := map[int64]string{0: "zero", 1: "one", 2: "two", 3: "three", 4: "four"}
	counts := map[int64]int{0: 2, 1: 2, 2: 2, 3: 6, 4: 6}

	var records []Record
	id := int64(1)
	for label := int64(0); label <= 4; label++ {
		for i := 0; i < counts[label]; i++ {
			records = append(records, Record{ID: id, Text: texts[label], Label: label})
			id++
		}
	}
	return records
}

func TestCountLabels(t *testing.T) {
	records := fixtureRecords()

	got := countLabels(records)
	want := []LabelCount{{0, 2}, {1, 2}, {2, 2}, {3, 6}, {4, 6}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("countLabels() = %v, want %v", got, want)
	}

	sum := 0
	for _, lc := range got {
		sum += lc.Count
	}
	if sum != len(records) {
		t.Errorf("counts sum to %d, want %d", sum, len(records))
	}

	// Idempotence: recomputing yields the identical table.
	again := countLabels(records)
	if !reflect.DeepEqual(got, again) {
		t.Errorf("countLabels() not idempotent: %v != %v", got, again)
	}
}

func TestCountLabelsEmpty(t *testing.T) {
	got := countLabels(nil)
	if len(got) != 0 {
		t.Errorf("countLabels(nil) = %v, want empty table", got)
	}
}

func TestCountLabelsOrderedByLabel(t *testing.T) {
	records := []Record{
		{ID: 1, Label: 9},
		{ID: 2, Label: 3},
		{ID: 3, Label: 9},
		{ID: 4, Label: 9},
		{ID: 5, Label: 5},
	}

	got := countLabels(records)
	want := []LabelCount{{3, 1}, {5, 1}, {9, 3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("countLabels() = %v, want %v (ordered by label, not frequency)", got, want)
	}
}

func TestFindThreshold(t *testing.T) {
	records := fixtureRecords()

	// Labels 0, 1 and 2 each hold 2/18 of the records; 3 and 4 hold 6/18.
	got := findThreshold(records, 0.3)
	want := []int64{0, 1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("findThreshold(records, 0.3) = %v, want %v", got, want)
	}
}

func TestFindThresholdExcludesExactShare(t *testing.T) {
	// Label 1 holds exactly 2/10 of the records. At the threshold is not
	// below it.
	records := make([]Record, 0, 10)
	for i := 0; i < 2; i++ {
		records = append(records, Record{ID: int64(i + 1), Label: 1})
	}
	for i := 0; i < 8; i++ {
		records = append(records, Record{ID: int64(i + 3), Label: 2})
	}

	if got := findThreshold(records, 0.2); len(got) != 0 {
		t.Errorf("findThreshold() = %v, want no labels at exactly the threshold", got)
	}
	if got := findThreshold(records, 0.21); !reflect.DeepEqual(got, []int64{1}) {
		t.Errorf("findThreshold() = %v, want [1]", got)
	}
}

func TestFindThresholdEmpty(t *testing.T) {
	if got := findThreshold(nil, 0.3); len(got) != 0 {
		t.Errorf("findThreshold(nil, 0.3) = %v, want empty", got)
	}
}

func TestUpdateLabel(t *testing.T) {
	records := fixtureRecords()

	updated := updateLabel(records, []int64{0, 1}, 99)

	if len(updated) != 18 {
		t.Fatalf("updateLabel() returned %d records, want 18", len(updated))
	}
	for _, r := range updated {
		switch r.Text {
		case "zero", "one":
			if r.Label != 99 {
				t.Errorf("record %d (%s) has label %d, want 99", r.ID, r.Text, r.Label)
			}
		case "two":
			if r.Label != 2 {
				t.Errorf("record %d has label %d, want 2", r.ID, r.Label)
			}
		case "three":
			if r.Label != 3 {
				t.Errorf("record %d has label %d, want 3", r.ID, r.Label)
			}
		case "four":
			if r.Label != 4 {
				t.Errorf("record %d has label %d, want 4", r.ID, r.Label)
			}
		}
	}

	// The remap mutates the caller's slice in place.
	if records[0].Label != 99 {
		t.Errorf("updateLabel() did not mutate in place: records[0].Label = %d", records[0].Label)
	}
}

func TestFilterLabels(t *testing.T) {
	records := fixtureRecords()

	got := filterLabels(records, []int64{2})
	if len(got) != 2 {
		t.Fatalf("filterLabels() returned %d records, want 2", len(got))
	}
	for _, r := range got {
		if r.Label != 2 || r.Text != "two" {
			t.Errorf("unexpected record %+v", r)
		}
	}

	// The input is left untouched.
	if len(records) != 18 {
		t.Errorf("filterLabels() mutated its input, len = %d", len(records))
	}
}

func TestSplit(t *testing.T) {
	records := fixtureRecords()

	train, test, err := split(records, 0.33)
	if err != nil {
		t.Fatalf("split() error: %v", err)
	}

	// Per label: the 2-row classes each put 1 row in test, the 6-row
	// classes each put round(6*0.33) = 2.
	if len(test) != 7 || len(train) != 11 {
		t.Errorf("split() sizes = %d/%d (train/test), want 11/7", len(train), len(test))
	}

	// Disjoint and exhaustive by row id.
	seen := make(map[int64]int)
	for _, r := range train {
		seen[r.ID]++
	}
	for _, r := range test {
		seen[r.ID]++
	}
	if len(seen) != len(records) {
		t.Errorf("partitions cover %d distinct ids, want %d", len(seen), len(records))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("record %d appears %d times across partitions", id, n)
		}
	}

	// Every label present in both partitions.
	trainCounts := countLabels(train)
	testCounts := countLabels(test)
	if len(trainCounts) != 5 || len(testCounts) != 5 {
		t.Errorf("label classes in partitions = %d/%d, want 5/5", len(trainCounts), len(testCounts))
	}

	wantTest := map[int64]int{0: 1, 1: 1, 2: 1, 3: 2, 4: 2}
	for _, lc := range testCounts {
		if lc.Count != wantTest[lc.Label] {
			t.Errorf("test partition has %d rows for label %d, want %d", lc.Count, lc.Label, wantTest[lc.Label])
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	train1, test1, err := split(fixtureRecords(), 0.1)
	if err != nil {
		t.Fatalf("split() error: %v", err)
	}
	train2, test2, err := split(fixtureRecords(), 0.1)
	if err != nil {
		t.Fatalf("split() error: %v", err)
	}

	if !reflect.DeepEqual(train1, train2) || !reflect.DeepEqual(test1, test2) {
		t.Error("split() is not deterministic for identical input")
	}
}

func TestSplitProportions(t *testing.T) {
	var records []Record
	id := int64(1)
	for i := 0; i < 100; i++ {
		records = append(records, Record{ID: id, Label: 1})
		id++
	}
	for i := 0; i < 50; i++ {
		records = append(records, Record{ID: id, Label: 2})
		id++
	}

	train, test, err := split(records, 0.1)
	if err != nil {
		t.Fatalf("split() error: %v", err)
	}

	wantTest := map[int64]int{1: 10, 2: 5}
	for _, lc := range countLabels(test) {
		if lc.Count != wantTest[lc.Label] {
			t.Errorf("test partition has %d rows for label %d, want %d", lc.Count, lc.Label, wantTest[lc.Label])
		}
	}
	if len(train) != 135 {
		t.Errorf("train partition has %d rows, want 135", len(train))
	}
}

func TestSplitSingleMemberClass(t *testing.T) {
	records := []Record{
		{ID: 1, Label: 1},
		{ID: 2, Label: 1},
		{ID: 3, Label: 2},
	}

	if _, _, err := split(records, 0.1); err == nil {
		t.Error("split() succeeded with a single-member class, want error")
	}
}
