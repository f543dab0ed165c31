package metrics

// NewTestMetricsCollector creates a standalone collector so tests can build
// as many as they like without registration conflicts.
func NewTestMetricsCollector() *MetricsCollector {
	return NewStandaloneMetricsCollector()
}
