package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsFile is written into the run directory in the Prometheus text
// format, ready for a node exporter textfile collector.
const MetricsFile = "metrics.prom"

// runMetrics holds the gauges of one run on a private registry, so several
// runs in one process never collide.
type runMetrics struct {
	registry *prometheus.Registry

	alignments     prometheus.Gauge
	primaryMembers prometheus.Gauge
	primaryCluster prometheus.Gauge
	matchedPairs   prometheus.Gauge
	edges          prometheus.Gauge
	peaks          prometheus.Gauge
	merges         prometheus.Gauge
	metaclusters   prometheus.Gauge
	labeledRanges  prometheus.Gauge
	stageDuration  *prometheus.GaugeVec
}

func newRunMetrics(runID string) *runMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"run_id": runID}, reg))
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{Name: "dpcstruct_" + name, Help: help})
	}

	return &runMetrics{
		registry:       reg,
		alignments:     gauge("alignments", "Alignments read from the input table"),
		primaryMembers: gauge("primary_members", "Alignments assigned to a primary cluster"),
		primaryCluster: gauge("primary_clusters", "Distinct primary clusters"),
		matchedPairs:   gauge("matched_pairs", "Close member pairs found by the distance stage"),
		edges:          gauge("edges", "Edges of the sparse distance graph"),
		peaks:          gauge("peaks", "Metacluster peaks before merging"),
		merges:         gauge("merges", "Metacluster merges"),
		metaclusters:   gauge("metaclusters", "Metaclusters after merging"),
		labeledRanges:  gauge("labeled_ranges", "Search ranges carrying a metacluster label"),
		stageDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dpcstruct_stage_duration_seconds",
			Help: "Wall time of each pipeline stage",
		}, []string{"stage"}),
	}
}

func (m *runMetrics) observe(result *PipelineResult) {
	m.alignments.Set(float64(result.Primary.Alignments))
	m.primaryMembers.Set(float64(result.Primary.Members))
	m.primaryCluster.Set(float64(result.Primary.Clusters))
	m.matchedPairs.Set(float64(result.Distance.MatchedPairs))
	m.edges.Set(float64(result.Distance.Edges))
	m.peaks.Set(float64(result.Classify.Peaks))
	m.merges.Set(float64(result.Classify.Merges))
	m.metaclusters.Set(float64(result.Classify.Metaclusters))
	m.labeledRanges.Set(float64(result.Traceback.Labeled))

	for stage, ms := range map[string]int64{
		"primary":   result.Primary.RuntimeMS,
		"distance":  result.Distance.RuntimeMS,
		"classify":  result.Classify.RuntimeMS,
		"traceback": result.Traceback.RuntimeMS,
	} {
		m.stageDuration.WithLabelValues(stage).Set(float64(ms) / 1000)
	}
}

func (m *runMetrics) write(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
