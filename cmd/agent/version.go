package agent

import (
	"github.com/spf13/cobra"

	"github.com/telemetry-agent/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the agent version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.AgentVersion)
	},
}
