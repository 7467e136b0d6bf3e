// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mediaResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dvbboxes_media_resolutions_total",
		Help: "Media duration resolutions by outcome",
	}, []string{"result"}) // result=resolved|unknown|unavailable|repair_failed

	mediaDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dvbboxes_media_duration_seconds",
		Help:    "Resolved playout duration of media assets",
		Buckets: []float64{30, 60, 300, 900, 1800, 3600, 7200, 14400},
	})

	programQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dvbboxes_program_queries_total",
		Help: "Schedule reconciliation queries by outcome",
	}, []string{"result"}) // result=full|window|empty

	replicationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dvbboxes_replication_outcomes_total",
		Help: "Per-replica schedule writes by outcome",
	}, []string{"site", "result"}) // result=ok|partial|failed

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dvbboxes_notifications_total",
		Help: "Device refresh notifications by outcome",
	}, []string{"result"}) // result=ok|error

	listingsCompiled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dvbboxes_listings_compiled_total",
		Help: "Listing compilation attempts by outcome",
	}, []string{"result"}) // result=ok|rejected
)

// RecordMediaResolution counts a media resolution and observes the resolved
// duration when one was found.
func RecordMediaResolution(result string, duration float64) {
	mediaResolutions.WithLabelValues(result).Inc()
	if duration > 0 {
		mediaDuration.Observe(duration)
	}
}

// RecordProgramQuery counts a reconciliation query.
func RecordProgramQuery(result string) {
	programQueries.WithLabelValues(result).Inc()
}

// RecordReplication counts one replica write outcome.
func RecordReplication(site, result string) {
	replicationOutcomes.WithLabelValues(site, result).Inc()
}

// RecordNotification counts a device refresh notification.
func RecordNotification(result string) {
	notifications.WithLabelValues(result).Inc()
}

// RecordListingCompiled counts a listing compilation.
func RecordListingCompiled(result string) {
	listingsCompiled.WithLabelValues(result).Inc()
}
