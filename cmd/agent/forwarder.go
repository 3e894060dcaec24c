package agent

import (
	"github.com/spf13/cobra"
)

func initForwarderFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	prefix := "forwarder."

	f.String(
		prefix+"endpoint",
		defaultCfg.Forwarder.Endpoint,
		"-> Intake endpoint URL")
	f.String(
		prefix+"api_key",
		defaultCfg.Forwarder.APIKey,
		"-> Intake API key")
	f.String(
		prefix+"site",
		defaultCfg.Forwarder.Site,
		"-> Intake site; rewrites the endpoint host when set")
	f.String(
		prefix+"proxy",
		defaultCfg.Forwarder.Proxy,
		"-> HTTP proxy for outbound requests")
	f.Duration(
		prefix+"flush_timeout",
		defaultCfg.Forwarder.FlushTimeout,
		"-> Timeout of one outbound HTTP request")
	f.Int(
		prefix+"queue_size",
		defaultCfg.Forwarder.QueueSize,
		"-> Pending transaction queue capacity")
	f.Int(
		prefix+"retries",
		defaultCfg.Forwarder.Retries,
		"-> Retries per transaction after the first attempt")
}
