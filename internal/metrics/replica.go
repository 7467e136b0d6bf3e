// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	replicaOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dvbboxes_replica_ops_total",
		Help: "Store operations issued against replicas by namespace, operation and result",
	}, []string{"namespace", "op", "result"}) // result=ok|miss|error

	replicaFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dvbboxes_replica_failures_total",
		Help: "Replica-level failures isolated during fan-out operations",
	}, []string{"site", "replica", "op"})
)

// Result labels shared by the store counters.
const (
	ResultOK    = "ok"
	ResultMiss  = "miss"
	ResultError = "error"
)

// RecordReplicaOp counts a single store call.
func RecordReplicaOp(namespace, op, result string) {
	replicaOps.WithLabelValues(namespace, op, result).Inc()
}

// RecordReplicaFailure counts a replica that was excluded from a fan-out
// operation because it could not be reached.
func RecordReplicaFailure(site, replica, op string) {
	replicaFailures.WithLabelValues(site, replica, op).Inc()
}
