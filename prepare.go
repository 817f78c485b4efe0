package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

const (
	// testSplit is the fraction of each dataset held out for evaluation.
	testSplit = 0.1

	// lowVolumeMinCount is the smallest class a stratified split can carry
	// through the pipeline. Labels with exactly this many records are kept.
	lowVolumeMinCount = 10

	primaryDatasetName   = "primary"
	lowVolumeDatasetName = "low-volume"
)

// preparer drives one dataset preparation batch.
type preparer struct {
	cfg *Config
	db  selector
	s3  objectPutter
}

// prepareDataset builds the training corpora for one batch id: the primary
// dataset over the training window, and, when enough under-represented
// classes have the volume to support it, a dedicated low volume dataset drawn
// from a longer history.
func (p *preparer) prepareDataset(ctx context.Context, batchID string) error {
	batch, err := parseBatchID(batchID)
	if err != nil {
		return err
	}

	start := windowStart(batch, p.cfg.TrainingPeriod)
	end := windowEnd(batch)

	log.Printf("Preparing dataset for batch ID %s", batchID)
	log.Printf("  Start date: %s", start.Format(time.RFC3339))
	log.Printf("  End date:   %s", end.Format(time.RFC3339))

	general, err := fetchTickets(ctx, p.db, start, end, p.cfg.GroupIDs)
	if err != nil {
		return err
	}
	if len(general) == 0 {
		log.Println("Warning: no ticket data found")
		return nil
	}
	ticketsFetchedTotal.WithLabelValues("primary").Add(float64(len(general)))

	labelCounts := countLabels(general)
	lowVolume := findThreshold(general, p.cfg.LowVolumeThreshold)

	largeEnough := 0
	for _, lc := range labelCounts {
		if containsLabel(lowVolume, lc.Label) && lc.Count >= lowVolumeMinCount {
			largeEnough++
		}
	}

	createLowVolume := largeEnough >= 2
	if !createLowVolume {
		log.Printf("Warning: not enough low volume labels with at least %d records to create a low volume dataset", lowVolumeMinCount)
	}

	log.Printf("The following labels have low volume (less than %.2f%% of total): %v", p.cfg.LowVolumeThreshold*100, lowVolume)
	log.Printf("Total records: %d", len(general))
	log.Printf("Label distribution:\n%s", formatLabelCounts(labelCounts))

	// The low volume dataset keeps the original labels, so carve its base
	// out of the record set before those labels are folded away.
	var lowVolumeBase []Record
	if createLowVolume {
		lowVolumeBase = filterLabels(general, lowVolume)
	}

	general = updateLabel(general, lowVolume, p.cfg.FallbackLabel)

	if err := p.emitDataset(ctx, primaryDatasetName, batchID, general); err != nil {
		return err
	}

	if !createLowVolume {
		log.Println("Skipping low volume dataset creation")
		return nil
	}

	log.Printf("Label distribution after reassigning low volume labels:\n%s", formatLabelCounts(countLabels(general)))

	lowVolStart := windowStart(batch, p.cfg.LowVolumePeriod)
	history, err := fetchTickets(ctx, p.db, lowVolStart, start, p.cfg.GroupIDs)
	if err != nil {
		return err
	}
	ticketsFetchedTotal.WithLabelValues("low_volume").Add(float64(len(history)))

	merged := append(lowVolumeBase, history...)
	if len(merged) == 0 {
		log.Println("Warning: no low volume ticket data found")
		return nil
	}

	log.Printf("Low volume records: %d", len(merged))
	log.Printf("Low volume label distribution:\n%s", formatLabelCounts(countLabels(merged)))

	merged = dropSparseLabels(merged, lowVolumeMinCount)
	if len(merged) == 0 {
		log.Println("Warning: no low volume labels left after dropping sparse labels")
		return nil
	}
	log.Printf("Low volume label distribution after dropping sparse labels:\n%s", formatLabelCounts(countLabels(merged)))

	return p.emitDataset(ctx, lowVolumeDatasetName, batchID, merged)
}

// emitDataset splits records and uploads the train and test partitions.
func (p *preparer) emitDataset(ctx context.Context, name, batchID string, records []Record) error {
	train, test, err := split(records, testSplit)
	if err != nil {
		return fmt.Errorf("failed to split %s dataset: %w", name, err)
	}

	log.Printf("%s training set size: %d", name, len(train))
	log.Printf("%s test set size: %d", name, len(test))
	log.Printf("%s training set label distribution:\n%s", name, formatLabelCounts(countLabels(train)))
	log.Printf("%s test set label distribution:\n%s", name, formatLabelCounts(countLabels(test)))

	trainKey := fmt.Sprintf("training/%s/%s/train/data.json", name, batchID)
	testKey := fmt.Sprintf("training/%s/%s/test/data.json", name, batchID)

	if err := writeDataset(ctx, p.s3, p.cfg.TargetBucket, trainKey, train); err != nil {
		return err
	}
	recordsWrittenTotal.WithLabelValues(name, "train").Add(float64(len(train)))

	if err := writeDataset(ctx, p.s3, p.cfg.TargetBucket, testKey, test); err != nil {
		return err
	}
	recordsWrittenTotal.WithLabelValues(name, "test").Add(float64(len(test)))
	datasetsWrittenTotal.WithLabelValues(name).Add(2)

	log.Printf("%s training set saved to s3://%s/%s", name, p.cfg.TargetBucket, trainKey)
	log.Printf("%s test set saved to s3://%s/%s", name, p.cfg.TargetBucket, testKey)
	return nil
}

// dropSparseLabels removes records whose label has fewer than minCount rows.
func dropSparseLabels(records []Record, minCount int) []Record {
	counts := make(map[int64]int)
	for _, r := range records {
		counts[r.Label]++
	}

	var out []Record
	for _, r := range records {
		if counts[r.Label] >= minCount {
			out = append(out, r)
		}
	}
	return out
}

func containsLabel(labels []int64, label int64) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

// formatLabelCounts renders a label distribution table for the logs.
func formatLabelCounts(counts []LabelCount) string {
	var b strings.Builder
	b.WriteString("Label  Count")
	for _, lc := range counts {
		fmt.Fprintf(&b, "\n%5d  %5d", lc.Label, lc.Count)
	}
	return b.String()
}
