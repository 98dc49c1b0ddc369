// Package cli defines the wayfinder command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/softlight/wayfinder/internal/config"
	"github.com/softlight/wayfinder/internal/observability"
)

var (
	cfgFile  string
	logLevel string
	headless bool

	// cfg is populated by the root PersistentPreRunE and read by
	// subcommands.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:          "wayfinder",
	Short:        "Drives web applications task-by-task and records decision traces.",
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			observability.InitializeLogger(config.LogConfig{Level: "info"})
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Log.Level = logLevel
		}
		if cmd.Flags().Changed("headless") {
			loaded.Browser.Headless = headless
		}
		cfg = loaded

		observability.InitializeLogger(cfg.Log)
		observability.GetLogger().Debug("configuration loaded",
			zap.String("model", cfg.LLM.Model),
			zap.Int("max_steps", cfg.Run.MaxSteps))
		return nil
	},
}

func Execute() {
	defer observability.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		observability.Sync()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./wayfinder.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", true, "run the browser headless")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
