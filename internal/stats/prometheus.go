package stats

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector exposes a Collector to Prometheus as const metrics
// read at scrape time. Counter totals map to counters, set cardinalities
// to gauges, comparator uses to a labeled counter vector.
type MetricsCollector struct {
	source *Collector

	queries          *prometheus.Desc
	runQuery         *prometheus.Desc
	pluralRunQuery   *prometheus.Desc
	indexHits        *prometheus.Desc
	siftHits         *prometheus.Desc
	nonSingleFilters *prometheus.Desc
	comparatorUses   *prometheus.Desc

	uniqueOperations  *prometheus.Desc
	uniqueQueries     *prometheus.Desc
	uniqueFilterPaths *prometheus.Desc
	uniqueSorts       *prometheus.Desc
}

func NewMetricsCollector(source *Collector) *MetricsCollector {
	return &MetricsCollector{
		source: source,
		queries: prometheus.NewDesc("gqlrun_queries_total",
			"Queries accepted by the runner.", nil, nil),
		runQuery: prometheus.NewDesc("gqlrun_run_query_total",
			"Node-model queries executed.", nil, nil),
		pluralRunQuery: prometheus.NewDesc("gqlrun_run_query_plural_total",
			"Node-model queries returning result sets.", nil, nil),
		indexHits: prometheus.NewDesc("gqlrun_index_hits_total",
			"Node-model queries answered from an equality index.", nil, nil),
		siftHits: prometheus.NewDesc("gqlrun_sift_hits_total",
			"Node-model queries answered by linear scan.", nil, nil),
		nonSingleFilters: prometheus.NewDesc("gqlrun_non_single_filters_total",
			"Filters with more than one predicate.", nil, nil),
		comparatorUses: prometheus.NewDesc("gqlrun_comparator_uses_total",
			"Filter comparator occurrences.", []string{"comparator"}, nil),
		uniqueOperations: prometheus.NewDesc("gqlrun_unique_operations",
			"Distinct query text plus variables fingerprints seen.", nil, nil),
		uniqueQueries: prometheus.NewDesc("gqlrun_unique_queries",
			"Distinct query text fingerprints seen.", nil, nil),
		uniqueFilterPaths: prometheus.NewDesc("gqlrun_unique_filter_paths",
			"Distinct filter path sets seen.", nil, nil),
		uniqueSorts: prometheus.NewDesc("gqlrun_unique_sorts",
			"Distinct sort specifications seen.", nil, nil),
	}
}

func (m *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.queries
	ch <- m.runQuery
	ch <- m.pluralRunQuery
	ch <- m.indexHits
	ch <- m.siftHits
	ch <- m.nonSingleFilters
	ch <- m.comparatorUses
	ch <- m.uniqueOperations
	ch <- m.uniqueQueries
	ch <- m.uniqueFilterPaths
	ch <- m.uniqueSorts
}

func (m *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	s := m.source.Summary()
	if s == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(m.queries, prometheus.CounterValue, float64(s.TotalQueries))
	ch <- prometheus.MustNewConstMetric(m.runQuery, prometheus.CounterValue, float64(s.TotalRunQuery))
	ch <- prometheus.MustNewConstMetric(m.pluralRunQuery, prometheus.CounterValue, float64(s.TotalPluralRunQuery))
	ch <- prometheus.MustNewConstMetric(m.indexHits, prometheus.CounterValue, float64(s.TotalIndexHits))
	ch <- prometheus.MustNewConstMetric(m.siftHits, prometheus.CounterValue, float64(s.TotalSiftHits))
	ch <- prometheus.MustNewConstMetric(m.nonSingleFilters, prometheus.CounterValue, float64(s.TotalNonSingleFilters))
	for _, use := range s.ComparatorsUsed {
		ch <- prometheus.MustNewConstMetric(m.comparatorUses, prometheus.CounterValue, float64(use.Amount), use.Comparator)
	}
	ch <- prometheus.MustNewConstMetric(m.uniqueOperations, prometheus.GaugeValue, float64(s.UniqueOperations))
	ch <- prometheus.MustNewConstMetric(m.uniqueQueries, prometheus.GaugeValue, float64(s.UniqueQueries))
	ch <- prometheus.MustNewConstMetric(m.uniqueFilterPaths, prometheus.GaugeValue, float64(s.UniqueFilterPaths))
	ch <- prometheus.MustNewConstMetric(m.uniqueSorts, prometheus.GaugeValue, float64(s.UniqueSorts))
}
