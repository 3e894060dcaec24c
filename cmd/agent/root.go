// Package agent holds the CLI surface: the root command that runs the
// agent plus the status and version subcommands.
package agent

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/telemetry-agent/internal/agent"
	"github.com/telemetry-agent/pkg/config"
	"github.com/telemetry-agent/pkg/logger"
)

var (
	cfgFile    string
	defaultCfg = config.NewDefaultConfig()
)

var rootCmd = &cobra.Command{
	Use:   "telemetry-agent",
	Short: "Host-resident telemetry agent: runs checks and forwards metrics to the intake",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithCli(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := runAgent(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return nil
	},
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to the agent configuration file")
	initAgentFlags(rootCmd)
	initForwarderFlags(rootCmd)
	initAPIFlags(rootCmd)
	initLogFlags(rootCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func runAgent(cfg *config.Config) error {
	if err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	return agent.Run(cfg)
}
