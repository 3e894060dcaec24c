package agent

import (
	"github.com/spf13/cobra"
)

func initAPIFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	apiPrefix := "api."

	f.String(
		apiPrefix+"bind_host",
		defaultCfg.API.BindHost,
		"-> Local API bind host")
	f.Int(
		apiPrefix+"port",
		defaultCfg.API.Port,
		"-> Local API port")

	statsdPrefix := "statsd."

	f.Bool(
		statsdPrefix+"enabled",
		defaultCfg.Statsd.Enabled,
		"-> Enable the statsd UDP listener")
	f.String(
		statsdPrefix+"bind_host",
		defaultCfg.Statsd.BindHost,
		"-> Statsd bind host")
	f.Int(
		statsdPrefix+"port",
		defaultCfg.Statsd.Port,
		"-> Statsd UDP port")
	f.Duration(
		statsdPrefix+"flush_interval",
		defaultCfg.Statsd.FlushInterval,
		"-> Statsd aggregator flush cadence")
	f.Int(
		statsdPrefix+"packet_buffer",
		defaultCfg.Statsd.PacketBuffer,
		"-> Statsd UDP read buffer size in bytes")
}
