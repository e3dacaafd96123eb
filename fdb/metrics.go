// Copyright 2024 The fdbclient Authors
// This file is part of fdbclient.
//
// fdbclient is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// fdbclient is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with fdbclient. If not, see <http://www.gnu.org/licenses/>.

package fdb

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the set of per-Database counters and histograms a caller can
// register with its own prometheus.Registerer. It plays the role the
// teacher's package-level DbCommitTotal/TxRetry counters play for its MDBX
// wrapper, just scoped to one Database instance instead of process-wide
// globals.
type Metrics struct {
	AttemptsTotal    prometheus.Counter
	CommitsTotal     prometheus.Counter
	RetriesTotal     prometheus.Counter
	ConflictsTotal   prometheus.Counter
	CommitLatency    prometheus.Histogram
	RangeChunksTotal prometheus.Counter
}

// NewMetrics builds a Metrics struct with namespace/subsystem labels, ready
// to be registered with a prometheus.Registerer. It is not registered by
// NewMetrics itself — callers decide whether and where to register it.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		AttemptsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fdb", Name: "attempts_total",
			Help: "Number of retry-loop handler invocations.",
		}),
		CommitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fdb", Name: "commits_total",
			Help: "Number of successful commits.",
		}),
		RetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fdb", Name: "retries_total",
			Help: "Number of retry-loop retries, across all causes.",
		}),
		ConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fdb", Name: "conflicts_total",
			Help: "Number of commits that failed with not-committed.",
		}),
		CommitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "fdb", Name: "commit_latency_seconds",
			Help:    "Commit call latency.",
			Buckets: prometheus.DefBuckets,
		}),
		RangeChunksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fdb", Name: "range_chunks_total",
			Help: "Number of range-query chunk fetches issued.",
		}),
	}
}

// Register adds every collector in m to reg. Safe to call once per Metrics
// instance; registering the same Metrics with two registries is a caller
// error (prometheus.Registerer itself will report it).
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.AttemptsTotal, m.CommitsTotal, m.RetriesTotal,
		m.ConflictsTotal, m.CommitLatency, m.RangeChunksTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
