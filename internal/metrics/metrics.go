// Package metrics counts what searches and builds did and writes the counts
// in the Prometheus text format, suitable for the node exporter's textfile
// collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/standardbeagle/trigrep/internal/indexing"
	"github.com/standardbeagle/trigrep/internal/search"
)

// Metrics holds the collectors for one process. Each instance has its own
// registry so nothing leaks into the global default.
type Metrics struct {
	registry *prometheus.Registry

	SearchesTotal  *prometheus.CounterVec
	SearchDuration prometheus.Histogram
	ChunksScanned  prometheus.Counter
	PostingDecodes prometheus.Counter
	Candidates     prometheus.Counter
	FilesGrepped   *prometheus.CounterVec
	MatchesTotal   prometheus.Counter
	BuildsTotal    *prometheus.CounterVec
	BuildDuration  prometheus.Histogram
	DocumentsTotal prometheus.Counter
	FilesSkipped   *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trigrep_searches_total",
				Help: "Searches run, by result (ok, error).",
			},
			[]string{"result"},
		),
		SearchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "trigrep_search_duration_seconds",
				Help:    "Wall time of a search including grep.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		ChunksScanned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "trigrep_chunks_scanned_total",
				Help: "Index chunks scanned.",
			},
		),
		PostingDecodes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "trigrep_posting_decodes_total",
				Help: "Posting lists decoded.",
			},
		),
		Candidates: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "trigrep_candidates_total",
				Help: "Documents accepted by the trigram query.",
			},
		),
		FilesGrepped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trigrep_files_grepped_total",
				Help: "Candidate files handed to grep, by outcome (opened, skipped).",
			},
			[]string{"outcome"},
		),
		MatchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "trigrep_matches_total",
				Help: "Lines printed, or filenames in filter mode.",
			},
		),
		BuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trigrep_index_builds_total",
				Help: "Index builds run, by result (ok, error).",
			},
			[]string{"result"},
		),
		BuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "trigrep_index_build_duration_seconds",
				Help:    "Wall time of an index build.",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		DocumentsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "trigrep_documents_indexed_total",
				Help: "Documents written to an index.",
			},
		),
		FilesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trigrep_files_skipped_total",
				Help: "Files left out of an index, by reason.",
			},
			[]string{"reason"},
		),
	}

	m.registry.MustRegister(
		m.SearchesTotal,
		m.SearchDuration,
		m.ChunksScanned,
		m.PostingDecodes,
		m.Candidates,
		m.FilesGrepped,
		m.MatchesTotal,
		m.BuildsTotal,
		m.BuildDuration,
		m.DocumentsTotal,
		m.FilesSkipped,
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveSearch records one search.
func (m *Metrics) ObserveSearch(s search.Stats, err error) {
	m.SearchesTotal.WithLabelValues(result(err)).Inc()
	m.SearchDuration.Observe(s.Duration.Seconds())
	m.ChunksScanned.Add(float64(s.Chunks))
	m.PostingDecodes.Add(float64(s.Decodes))
	m.Candidates.Add(float64(s.Candidates))
	m.FilesGrepped.WithLabelValues("opened").Add(float64(s.FilesOpened))
	m.FilesGrepped.WithLabelValues("skipped").Add(float64(s.SkippedFiles))
	m.MatchesTotal.Add(float64(s.Matches))
}

// ObserveBuild records one index build.
func (m *Metrics) ObserveBuild(s indexing.Stats, err error) {
	m.BuildsTotal.WithLabelValues(result(err)).Inc()
	m.BuildDuration.Observe(s.Duration.Seconds())
	m.DocumentsTotal.Add(float64(s.Documents))
	m.FilesSkipped.WithLabelValues("excluded").Add(float64(s.Excluded))
	m.FilesSkipped.WithLabelValues("large").Add(float64(s.SkippedLarge))
	m.FilesSkipped.WithLabelValues("binary").Add(float64(s.SkippedBinary))
	m.FilesSkipped.WithLabelValues("unreadable").Add(float64(s.SkippedUnread))
	m.FilesSkipped.WithLabelValues("duplicate").Add(float64(s.Duplicates))
}

// WriteTextfile atomically writes every collector to path.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
