package ibmwas

import "github.com/telemetry-agent/internal/metrics"

// metricPrefix is the namespace root prepended to every metric name.
const metricPrefix = "ibm_was"

// metricCategories maps PMI stat category names to metric-name prefixes.
var metricCategories = map[string]string{
	"JVM Runtime":             "jvm",
	"JDBC Connection Pools":   "jdbc",
	"Servlet Session Manager": "servlet_session",
	"Thread Pools":            "thread_pools",
	"Web Applications":        "web_applications",
	"Object Pool":             "object_pool",
}

// nestedTags lists, per metric prefix, the tag key applied at each
// recursion depth while descending that category's subtree.
var nestedTags = map[string][]string{
	"jdbc":             {"provider", "dataSource"},
	"servlet_session":  {"web_application"},
	"thread_pools":     {"thread_pool"},
	"web_applications": {"war", "servlet"},
	"object_pool":      {"pool"},
}

// metricValueFields names the attribute carrying the value for each
// recognized leaf statistic element. An element type missing here is
// not a leaf metric.
var metricValueFields = map[string]string{
	"AverageStatistic":      "count",
	"BoundedRangeStatistic": "value",
	"CountStatistic":        "count",
	"DoubleStatistic":       "double",
	"RangeStatistic":        "value",
	"TimeStatistic":         "count",
}

// metricTypeMapping dispatches a leaf statistic element to a sample kind.
var metricTypeMapping = map[string]metrics.MetricType{
	"AverageStatistic":      metrics.Gauge,
	"BoundedRangeStatistic": metrics.Gauge,
	"CountStatistic":        metrics.MonotonicCount,
	"DoubleStatistic":       metrics.Rate,
	"RangeStatistic":        metrics.Gauge,
	"TimeStatistic":         metrics.Gauge,
}

// categoryFields holds the element names treated as interior category
// nodes during the recursive walk. Unknown element names are ignored,
// which keeps the walk forward-compatible with new PMI node types.
var categoryFields = map[string]bool{
	"Stat": true,
}
