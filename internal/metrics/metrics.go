// Package metrics counts catalog batch work and writes it in the Prometheus
// text format for a node-exporter textfile collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "catalog"

// Metrics holds the counters of one CLI run on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	PublicationsIngested prometheus.Counter
	RawRecords           *prometheus.CounterVec // by kind
	RawAuthors           prometheus.Counter
	AuthorsCreated       prometheus.Counter
	AliasesAttached      prometheus.Counter
	ConflictsRecorded    prometheus.Counter
	MergeGroups          *prometheus.CounterVec // by merge set type
	Lookups              *prometheus.CounterVec // by outcome
}

// New creates and registers every counter.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PublicationsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publications_ingested_total",
			Help:      "Publications created by ingest, cited publications included.",
		}),
		RawRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "raw_records_total",
			Help:      "Raw source records stored, by source kind.",
		}, []string{"kind"}),
		RawAuthors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "raw_authors_total",
			Help:      "Raw author strings stored.",
		}),
		AuthorsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authors_created_total",
			Help:      "Canonical authors created by linkage.",
		}),
		AliasesAttached: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aliases_attached_total",
			Help:      "New author aliases attached by linkage.",
		}),
		ConflictsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_recorded_total",
			Help:      "Author groups left for curator review.",
		}),
		MergeGroups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_groups_total",
			Help:      "Candidate duplicate groups found, by merge set type.",
		}, []string{"type"}),
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "External lookups, by outcome kind.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.PublicationsIngested,
		m.RawRecords,
		m.RawAuthors,
		m.AuthorsCreated,
		m.AliasesAttached,
		m.ConflictsRecorded,
		m.MergeGroups,
		m.Lookups,
	)
	return m
}

// Registry returns the registry holding the counters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current values to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
