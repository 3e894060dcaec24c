package ibmwas

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemetry-agent/internal/aggregator"
	"github.com/telemetry-agent/internal/collector"
	"github.com/telemetry-agent/pkg/config"
	"github.com/telemetry-agent/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init(config.ZapLogConfig{
		Level: "error", Format: "console", Path: os.TempDir(), MaxSize: 1,
	})
	os.Exit(m.Run())
}

func pmiDocument(requestCount int) string {
	return fmt.Sprintf(`<?xml version="1.0"?>
<PerformanceMonitor responseStatus="success">
  <Node name="N1">
    <Server name="S1">
      <Stat name="JVM Runtime">
        <CountStatistic name="requestCount" count="%d" unit="N/A"/>
        <BoundedRangeStatistic name="HeapSize" value="2048" unit="KILOBYTE"/>
      </Stat>
      <Stat name="JDBC Connection Pools">
        <Stat name="Derby JDBC Provider">
          <Stat name="jdbc/sample">
            <RangeStatistic name="PoolSize" value="5" unit="N/A"/>
          </Stat>
        </Stat>
      </Stat>
    </Server>
  </Node>
</PerformanceMonitor>`, requestCount)
}

func newTestCheck(t *testing.T, url string, instance config.Instance) (*Check, *aggregator.Aggregator) {
	t.Helper()
	agg := aggregator.New("host1")
	if instance == nil {
		instance = config.Instance{}
	}
	instance["servlet_url"] = url
	chk, err := NewCheck("ibm_was", instance, collector.Deps{Aggregator: agg, Hostname: "host1"})
	require.NoError(t, err)
	return chk.(*Check), agg
}

func findSeries(p aggregator.Payload, name string) *aggregator.Series {
	for i := range p.Series {
		if p.Series[i].Metric == name {
			return &p.Series[i]
		}
	}
	return nil
}

func TestJVMCountStatisticDualEmission(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, pmiDocument(100+30*(calls-1)))
	}))
	defer srv.Close()

	chk, agg := newTestCheck(t, srv.URL, nil)

	require.NoError(t, chk.Run())
	first := agg.Flush()

	// the gauge twin is emitted immediately, the monotonic count primes
	gauge := findSeries(first, "ibm_was.jvm.requestcount_gauge")
	require.NotNil(t, gauge)
	assert.Equal(t, "gauge", gauge.Type)
	assert.Equal(t, 100.0, gauge.Value)
	assert.Nil(t, findSeries(first, "ibm_was.jvm.requestcount"))

	require.NoError(t, chk.Run())
	second := agg.Flush()

	count := findSeries(second, "ibm_was.jvm.requestcount")
	require.NotNil(t, count)
	assert.Equal(t, "monotonic_count", count.Type)
	assert.Equal(t, 30.0, count.Value)

	gauge = findSeries(second, "ibm_was.jvm.requestcount_gauge")
	require.NotNil(t, gauge)
	assert.Equal(t, 130.0, gauge.Value)

	// both carry the node and server tags from the walk
	assert.ElementsMatch(t, []string{"node:N1", "server:S1"}, count.Tags)
	assert.ElementsMatch(t, []string{"node:N1", "server:S1"}, gauge.Tags)
}

func TestNestedTagsFollowRecursionDepth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pmiDocument(1))
	}))
	defer srv.Close()

	chk, agg := newTestCheck(t, srv.URL, nil)
	require.NoError(t, chk.Run())
	payload := agg.Flush()

	pool := findSeries(payload, "ibm_was.jdbc.poolsize")
	require.NotNil(t, pool)
	assert.Equal(t, "gauge", pool.Type)
	assert.ElementsMatch(t, []string{
		"node:N1", "server:S1",
		"provider:Derby JDBC Provider", "dataSource:jdbc/sample",
	}, pool.Tags)
}

func TestTranslationIsDeterministic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pmiDocument(1))
	}))
	defer srv.Close()

	chk1, agg1 := newTestCheck(t, srv.URL, nil)
	require.NoError(t, chk1.Run())
	chk2, agg2 := newTestCheck(t, srv.URL, nil)
	require.NoError(t, chk2.Run())

	strip := func(p aggregator.Payload) []aggregator.Series {
		out := make([]aggregator.Series, len(p.Series))
		for i, s := range p.Series {
			s.Timestamp = 0
			out[i] = s
		}
		return out
	}
	assert.Equal(t, strip(agg1.Flush()), strip(agg2.Flush()))
}

func TestCustomQueryUnitRemapsCountToGauge(t *testing.T) {
	doc := `<?xml version="1.0"?>
<PerformanceMonitor>
  <Node name="N1">
    <Server name="S1">
      <Stat name="Custom Category">
        <CountStatistic name="serviceTime" count="42" unit="MILLISECOND"/>
      </Stat>
      <Stat name="JDBC Connection Pools">
        <CountStatistic name="createCount" count="7" unit="MILLISECOND"/>
      </Stat>
    </Server>
  </Node>
</PerformanceMonitor>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, doc)
	}))
	defer srv.Close()

	chk, agg := newTestCheck(t, srv.URL, config.Instance{
		"custom_queries": []map[string]interface{}{
			{"stat": "Custom Category", "metric_prefix": "custom", "tag_keys": []string{}},
		},
		"custom_queries_units_gauge": []string{"MILLISECOND"},
	})

	require.NoError(t, chk.Run())
	payload := agg.Flush()

	// custom-extended prefix: remapped to gauge, emitted on first flush
	remapped := findSeries(payload, "ibm_was.custom.servicetime")
	require.NotNil(t, remapped)
	assert.Equal(t, "gauge", remapped.Type)
	assert.Equal(t, 42.0, remapped.Value)

	// built-in prefix with the same unit stays a monotonic count (primes,
	// absent from the first flush)
	assert.Nil(t, findSeries(payload, "ibm_was.jdbc.createcount"))
}

func TestCollectToggleDisablesCategory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pmiDocument(1))
	}))
	defer srv.Close()

	chk, agg := newTestCheck(t, srv.URL, config.Instance{"collect_jvm_stats": false})
	require.NoError(t, chk.Run())
	payload := agg.Flush()

	assert.Nil(t, findSeries(payload, "ibm_was.jvm.heapsize"))
	assert.NotNil(t, findSeries(payload, "ibm_was.jdbc.poolsize"))
}

func TestFetchFailureEmitsCriticalWithoutPanic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	chk, agg := newTestCheck(t, srv.URL, nil)
	require.Error(t, chk.Run())

	payload := agg.Flush()
	require.Len(t, payload.ServiceChecks, 1)
	assert.Equal(t, "critical", payload.ServiceChecks[0].Status)
	assert.Equal(t, "ibm_was.can_connect", payload.ServiceChecks[0].Check)

	connect := findSeries(payload, "ibm_was.can_connect")
	require.NotNil(t, connect)
	assert.Equal(t, 0.0, connect.Value)
}

func TestParseFailureEmitsCritical(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not XML <<<")
	}))
	defer srv.Close()

	chk, agg := newTestCheck(t, srv.URL, nil)
	require.Error(t, chk.Run())

	payload := agg.Flush()
	require.Len(t, payload.ServiceChecks, 1)
	assert.Equal(t, "critical", payload.ServiceChecks[0].Status)
}

func TestSuccessfulRunEmitsOKServiceCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pmiDocument(1))
	}))
	defer srv.Close()

	chk, agg := newTestCheck(t, srv.URL, config.Instance{"tags": []string{"env:test"}})
	require.NoError(t, chk.Run())

	payload := agg.Flush()
	require.Len(t, payload.ServiceChecks, 1)
	sc := payload.ServiceChecks[0]
	assert.Equal(t, "ok", sc.Status)
	assert.Contains(t, sc.Tags, "env:test")
	assert.Contains(t, sc.Tags, "url:"+srv.URL)
}

func TestMissingServletURLIsConstructionError(t *testing.T) {
	_, err := NewCheck("ibm_was", config.Instance{}, collector.Deps{Aggregator: aggregator.New("h")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "servlet_url")
}

func TestMalformedCustomQueryIsConstructionError(t *testing.T) {
	_, err := NewCheck("ibm_was", config.Instance{
		"servlet_url": "http://localhost:9999/wasPerfTool/servlet/perfservlet",
		"custom_queries": []map[string]interface{}{
			{"stat": "Custom Category"}, // metric_prefix missing
		},
	}, collector.Deps{Aggregator: aggregator.New("h")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metric_prefix")
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"requestCount", "ibm_was.jvm.requestcount"},
		{"Heap Size (MB)", "ibm_was.jvm.heap_size_mb"},
		{"Used  --  Memory", "ibm_was.jvm.used_memory"},
		{"PercentUsed", "ibm_was.jvm.percentused"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, normalize(tc.raw, "ibm_was.jvm"), "raw=%q", tc.raw)
	}
}

func TestMetricSamplesAreEquallyTaggedRegardlessOfSiblingOrder(t *testing.T) {
	// two sibling categories at the same depth must each use their own
	// node name for the depth-0 tag key
	doc := `<?xml version="1.0"?>
<PerformanceMonitor>
  <Node name="N1">
    <Server name="S1">
      <Stat name="Thread Pools">
        <Stat name="WebContainer">
          <RangeStatistic name="ActiveCount" value="3"/>
        </Stat>
        <Stat name="ORB.thread.pool">
          <RangeStatistic name="ActiveCount" value="9"/>
        </Stat>
      </Stat>
    </Server>
  </Node>
</PerformanceMonitor>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, doc)
	}))
	defer srv.Close()

	chk, agg := newTestCheck(t, srv.URL, nil)
	require.NoError(t, chk.Run())
	payload := agg.Flush()

	var tagged [][]string
	for _, s := range payload.Series {
		if s.Metric == "ibm_was.thread_pools.activecount" {
			tagged = append(tagged, s.Tags)
		}
	}
	require.Len(t, tagged, 2)
	assert.ElementsMatch(t, []string{"node:N1", "server:S1", "thread_pool:WebContainer"}, tagged[0])
	assert.ElementsMatch(t, []string{"node:N1", "server:S1", "thread_pool:ORB.thread.pool"}, tagged[1])
}
