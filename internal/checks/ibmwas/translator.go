package ibmwas

import (
	"encoding/xml"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/telemetry-agent/internal/metrics"
	"github.com/telemetry-agent/pkg/logger"
)

// statNode is one node of the PMI statistics document. Children keeps
// document order; the element name decides whether a node is a leaf
// statistic, an interior category, or something to ignore.
type statNode struct {
	XMLName  xml.Name
	Name     string     `xml:"name,attr"`
	Unit     string     `xml:"unit,attr"`
	Count    string     `xml:"count,attr"`
	Value    string     `xml:"value,attr"`
	Double   string     `xml:"double,attr"`
	Children []statNode `xml:",any"`
}

func (n *statNode) attr(field string) string {
	switch field {
	case "count":
		return n.Count
	case "value":
		return n.Value
	case "double":
		return n.Double
	default:
		return ""
	}
}

// childrenNamed returns the direct children with the given element name.
func childrenNamed(n *statNode, name string) []statNode {
	var out []statNode
	for _, c := range n.Children {
		if c.XMLName.Local == name {
			out = append(out, c)
		}
	}
	return out
}

// findStat searches n's subtree for a Stat element whose trimmed name
// attribute matches. The PMI document carries at most one per server.
func findStat(n *statNode, name string) *statNode {
	for i := range n.Children {
		c := &n.Children[i]
		if c.XMLName.Local == "Stat" && strings.TrimSpace(c.Name) == name {
			return c
		}
		if found := findStat(c, name); found != nil {
			return found
		}
	}
	return nil
}

// processStats walks a category subtree depth-first, preserving child
// order. Leaf statistics are emitted with the current tag set; interior
// Stat nodes may extend the tag set with the tag key configured for
// this prefix at the current recursion depth before descending.
func (c *Check) processStats(node *statNode, prefix string, tags []string, depth int) {
	for i := range node.Children {
		child := &node.Children[i]
		tag := child.XMLName.Local
		switch {
		case metricValueFields[tag] != "":
			c.submitMetric(child, prefix, tags)
		case categoryFields[tag]:
			recursionTags := tags
			if tagList := c.nestedTags[prefix]; len(tagList) > depth {
				recursionTags = append(append([]string{}, tags...), tagList[depth]+":"+child.Name)
			}
			c.processStats(child, prefix, recursionTags, depth+1)
		}
	}
}

// submitMetric emits one sample for a leaf statistic, applying the
// count-to-gauge unit remap for custom categories and the dual gauge
// emission for the jvm prefix.
func (c *Check) submitMetric(child *statNode, prefix string, tags []string) {
	raw := child.attr(metricValueFields[child.XMLName.Local])
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		logger.Warn("unparseable statistic value",
			zap.String("check", c.name), zap.String("stat", child.Name), zap.String("raw", raw))
		return
	}

	name := normalize(child.Name, metricPrefix+"."+prefix)

	elem := child.XMLName.Local
	if c.unitsGauge[child.Unit] && c.customStats[prefix] && elem == "CountStatistic" {
		elem = "TimeStatistic"
	}

	c.agg.AddSample(metrics.Sample{
		Name:  name,
		Value: value,
		Tags:  tags,
		Type:  metricTypeMapping[elem],
	})

	// jvm counters are also useful as point-in-time values
	if prefix == "jvm" {
		c.agg.AddSample(metrics.Sample{
			Name:  name + "_gauge",
			Value: value,
			Tags:  tags,
			Type:  metrics.Gauge,
		})
	}
}

// normalize builds the final metric name: prefix, a dot, then the raw
// leaf name lowercased with runs of non-alphanumerics collapsed to a
// single underscore. Pure and locale-independent.
func normalize(rawName, prefix string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(rawName) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			if b.Len() > 0 {
				pendingSep = true
			}
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return prefix + "." + b.String()
}
