package agent

import (
	"github.com/spf13/cobra"
)

func initAgentFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	prefix := "agent."

	f.String(
		prefix+"hostname",
		defaultCfg.Agent.Hostname,
		"-> Hostname override; resolved from the OS when empty")
	f.Duration(
		prefix+"min_collection_interval",
		defaultCfg.Agent.MinCollectionInterval,
		"-> Delay between collection cycles")
	f.Duration(
		prefix+"host_metadata_interval",
		defaultCfg.Agent.HostMetadataInterval,
		"-> Cadence of host metadata submission")
	f.StringSlice(
		prefix+"tags",
		defaultCfg.Agent.Tags,
		"-> Tags attached to every metric from this host")
}
