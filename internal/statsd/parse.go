package statsd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/telemetry-agent/internal/metrics"
)

var errUnsupportedType = errors.New("unsupported metric type")

// parseLine decodes one statsd line:
//
//	<name>:<value>|<type>[|@<sample_rate>][|#<tag1:val1>,<tag2>]
//
// Supported types: g (gauge), c (monotonic count), ms (rate). Counts
// are scaled by the inverse sample rate.
func parseLine(line string) (metrics.Sample, error) {
	var sample metrics.Sample

	nameAndValue, rest, found := strings.Cut(line, "|")
	if !found {
		return sample, fmt.Errorf("missing type separator")
	}
	name, rawValue, found := strings.Cut(nameAndValue, ":")
	if !found || name == "" || rawValue == "" {
		return sample, fmt.Errorf("missing name or value")
	}
	value, err := strconv.ParseFloat(rawValue, 64)
	if err != nil {
		return sample, fmt.Errorf("bad value %q: %w", rawValue, err)
	}

	fields := strings.Split(rest, "|")
	sampleRate := 1.0
	var tags []string
	for _, f := range fields[1:] {
		switch {
		case strings.HasPrefix(f, "@"):
			sampleRate, err = strconv.ParseFloat(f[1:], 64)
			if err != nil || sampleRate <= 0 || sampleRate > 1 {
				return sample, fmt.Errorf("bad sample rate %q", f)
			}
		case strings.HasPrefix(f, "#"):
			for _, tag := range strings.Split(f[1:], ",") {
				if tag != "" {
					tags = append(tags, tag)
				}
			}
		default:
			return sample, fmt.Errorf("unrecognized field %q", f)
		}
	}

	switch fields[0] {
	case "g":
		sample.Type = metrics.Gauge
	case "c":
		sample.Type = metrics.MonotonicCount
		value /= sampleRate
	case "ms":
		sample.Type = metrics.Rate
	case "h", "s", "d":
		return sample, errUnsupportedType
	default:
		return sample, fmt.Errorf("unknown metric type %q", fields[0])
	}

	sample.Name = name
	sample.Value = value
	sample.Tags = tags
	return sample, nil
}
