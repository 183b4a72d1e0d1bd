package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle outcome metrics, labelled by cycle name so Scan/Reply/Summarize and
// the engagement refresh can be graphed independently.
var (
	CycleRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "birdwatch_cycle_runs_total",
		Help: "Completed cycle runs by outcome.",
	}, []string{"cycle", "outcome"})

	TicksSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "birdwatch_cycle_ticks_skipped_total",
		Help: "Ticks dropped because the previous run of the same cycle was still in flight.",
	}, []string{"cycle"})

	ItemsScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "birdwatch_items_scanned_total",
		Help: "New items admitted, scored and ingested by the scan cycle.",
	})

	ItemsReplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "birdwatch_items_replied_total",
		Help: "Items successfully replied to.",
	})

	ItemsSummarized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "birdwatch_items_summarized_total",
		Help: "Items covered by posted summaries.",
	})

	ItemErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "birdwatch_item_errors_total",
		Help: "Item-level errors contained within a cycle run.",
	}, []string{"cycle"})
)
