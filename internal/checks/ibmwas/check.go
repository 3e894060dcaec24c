// Package ibmwas implements the WebSphere PMI servlet check: it fetches
// the XML statistics document, walks it per node, server and configured
// category, and translates every statistic leaf into tagged samples.
package ibmwas

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"

	"github.com/telemetry-agent/internal/aggregator"
	"github.com/telemetry-agent/internal/collector"
	"github.com/telemetry-agent/internal/metrics"
	"github.com/telemetry-agent/pkg/config"
	"github.com/telemetry-agent/pkg/logger"
)

const serviceCheckConnect = metricPrefix + ".can_connect"

func init() {
	collector.RegisterCheck("ibm_was", NewCheck)
}

type instanceOptions struct {
	ServletURL              string        `mapstructure:"servlet_url"`
	Username                string        `mapstructure:"username"`
	Password                string        `mapstructure:"password"`
	TLSVerify               *bool         `mapstructure:"tls_verify"`
	TLSCert                 string        `mapstructure:"tls_cert"`
	TLSPrivateKey           string        `mapstructure:"tls_private_key"`
	TLSCACert               string        `mapstructure:"tls_ca_cert"`
	Tags                    []string      `mapstructure:"tags"`
	CustomQueries           []CustomQuery `mapstructure:"custom_queries"`
	CustomQueriesUnitsGauge []string      `mapstructure:"custom_queries_units_gauge"`
}

// Check holds one configured PMI instance. All fields are immutable
// after construction.
type Check struct {
	name   string
	url    string
	client *http.Client

	username string
	password string

	customTags       []string
	serviceCheckTags []string

	metricCategories map[string]string
	nestedTags       map[string][]string
	collectStats     map[string]bool
	customStats      map[string]bool
	unitsGauge       map[string]bool

	agg *aggregator.Aggregator
}

// NewCheck builds a configured instance. Option decoding, custom-query
// validation and TLS material loading all happen here: a failure is
// fatal to this instance only, never to the agent.
func NewCheck(name string, instance config.Instance, deps collector.Deps) (collector.Check, error) {
	var opts instanceOptions
	if err := mapstructure.WeakDecode(map[string]interface{}(instance), &opts); err != nil {
		return nil, fmt.Errorf("decode instance options: %w", err)
	}
	if opts.ServletURL == "" {
		return nil, fmt.Errorf("please specify a servlet_url in the configuration")
	}

	c := &Check{
		name:             name,
		url:              opts.ServletURL,
		customTags:       opts.Tags,
		serviceCheckTags: append(append([]string{}, opts.Tags...), "url:"+opts.ServletURL),
		metricCategories: make(map[string]string, len(metricCategories)),
		nestedTags:       make(map[string][]string, len(nestedTags)),
		collectStats:     make(map[string]bool),
		customStats:      make(map[string]bool),
		unitsGauge:       make(map[string]bool, len(opts.CustomQueriesUnitsGauge)),
		username:         opts.Username,
		password:         opts.Password,
		agg:              deps.Aggregator,
	}

	for category, prefix := range metricCategories {
		c.metricCategories[category] = prefix
		if isAffirmative(instance["collect_"+prefix+"_stats"], true) {
			c.collectStats[category] = true
		}
	}
	for prefix, keys := range nestedTags {
		c.nestedTags[prefix] = keys
	}
	for _, unit := range opts.CustomQueriesUnitsGauge {
		c.unitsGauge[unit] = true
	}

	// custom queries extend the built-in categories, last write wins on
	// a category name collision, and force-enable their category
	for _, q := range opts.CustomQueries {
		if err := validateQuery(q); err != nil {
			return nil, err
		}
		c.metricCategories[q.Stat] = q.MetricPrefix
		c.nestedTags[q.MetricPrefix] = q.TagKeys
		c.customStats[q.MetricPrefix] = true
		c.collectStats[q.Stat] = true
	}

	client, err := newHTTPClient(opts)
	if err != nil {
		return nil, err
	}
	c.client = client

	return c, nil
}

func (c *Check) Name() string { return c.name }

// Run performs one collection cycle. Fetch and parse failures degrade
// to a CRITICAL service check and an error return; they never panic and
// the collector never propagates them past the batch boundary.
func (c *Check) Run() error {
	data, err := c.makeRequest()
	if err != nil {
		c.submitServiceChecks(metrics.ServiceCheckCritical, err.Error())
		logger.Warn("couldn't connect to servlet URL, please verify the address is reachable",
			zap.String("check", c.name), zap.String("url", c.url), zap.Error(err))
		return err
	}

	var root statNode
	if err := xml.Unmarshal(data, &root); err != nil {
		c.submitServiceChecks(metrics.ServiceCheckCritical, err.Error())
		logger.Error("unable to parse the XML response",
			zap.String("check", c.name), zap.Error(err))
		return fmt.Errorf("parse XML response: %w", err)
	}

	c.submitServiceChecks(metrics.ServiceCheckOK, "")

	// sorted iteration keeps the emitted sample sequence deterministic
	// for identical input documents
	categories := make([]string, 0, len(c.metricCategories))
	for category := range c.metricCategories {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, node := range childrenNamed(&root, "Node") {
		nodeTags := append(append([]string{}, c.customTags...), "node:"+node.Name)
		for _, server := range childrenNamed(&node, "Server") {
			serverTags := append([]string{"server:" + server.Name}, nodeTags...)

			for _, category := range categories {
				prefix := c.metricCategories[category]
				if !c.collectStats[category] {
					continue
				}
				logger.Debug("collecting stats", zap.String("check", c.name), zap.String("category", category))
				stats := findStat(&server, category)
				if stats == nil {
					logger.Warn("error finding stats in XML output",
						zap.String("check", c.name), zap.String("category", category))
					continue
				}
				c.processStats(stats, prefix, serverTags, 0)
			}
		}
	}
	return nil
}

func (c *Check) makeRequest() ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("servlet returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// submitServiceChecks reports connectivity both as a service check and
// as a 0/1 gauge, so dashboards without a service-check channel can
// still alert on it.
func (c *Check) submitServiceChecks(status metrics.ServiceCheckStatus, message string) {
	value := 0.0
	if status == metrics.ServiceCheckOK {
		value = 1.0
	}
	c.agg.AddSample(metrics.Sample{
		Name:  serviceCheckConnect,
		Value: value,
		Tags:  c.serviceCheckTags,
		Type:  metrics.Gauge,
	})
	c.agg.AddServiceCheck(metrics.ServiceCheck{
		Name:    serviceCheckConnect,
		Status:  status,
		Tags:    c.serviceCheckTags,
		Message: message,
	})
}

func newHTTPClient(opts instanceOptions) (*http.Client, error) {
	tlsConfig := &tls.Config{}

	if opts.TLSVerify != nil && !*opts.TLSVerify {
		tlsConfig.InsecureSkipVerify = true
	}
	if opts.TLSCACert != "" {
		pem, err := os.ReadFile(opts.TLSCACert)
		if err != nil {
			return nil, fmt.Errorf("read tls_ca_cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in tls_ca_cert %s", opts.TLSCACert)
		}
		tlsConfig.RootCAs = pool
	}
	if opts.TLSCert != "" && opts.TLSPrivateKey != "" {
		cert, err := tls.LoadX509KeyPair(opts.TLSCert, opts.TLSPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig
	return &http.Client{Transport: transport, Timeout: 10 * time.Second}, nil
}

// isAffirmative interprets the loosely-typed truthy values YAML and
// flags can produce for the collect_<prefix>_stats toggles.
func isAffirmative(v interface{}, missing bool) bool {
	if v == nil {
		return missing
	}
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1", "on":
			return true
		default:
			return false
		}
	default:
		if s, err := strconv.ParseBool(fmt.Sprintf("%v", v)); err == nil {
			return s
		}
		return missing
	}
}
