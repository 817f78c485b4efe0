package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	ticketsFetchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prep_tickets_fetched_total",
			Help: "Count of ticket records fetched from the database",
		},
		[]string{"window"},
	)

	recordsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prep_records_written_total",
			Help: "Count of records written to the training bucket",
		},
		[]string{"dataset", "partition"},
	)

	datasetsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prep_datasets_written_total",
			Help: "Count of dataset partitions uploaded",
		},
		[]string{"dataset"},
	)

	primeRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prep_db_prime_retries_total",
			Help: "Count of retries waiting for the database to resume",
		},
	)

	runDurationSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "prep_run_duration_seconds",
			Help: "Wall clock duration of the dataset preparation run",
		},
	)
)

func initMetrics() {
	prometheus.MustRegister(ticketsFetchedTotal)
	prometheus.MustRegister(recordsWrittenTotal)
	prometheus.MustRegister(datasetsWrittenTotal)
	prometheus.MustRegister(primeRetriesTotal)
	prometheus.MustRegister(runDurationSeconds)
}

// pushMetrics ships the run's metrics to the Pushgateway. A batch job has
// nothing for Prometheus to scrape, so the final state is pushed once at the
// end of the run.
func pushMetrics(url, batchID string) error {
	if err := push.New(url, "ticket_dataset_prep").
		Grouping("batch_id", batchID).
		Gatherer(prometheus.DefaultGatherer).
		Push(); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
