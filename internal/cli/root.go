// Package cli defines the Cobra commands of the tapestry binary.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rapturt9/interactive-worlds-sub000/internal/ai"
	aianthropic "github.com/rapturt9/interactive-worlds-sub000/internal/ai/anthropic"
	"github.com/rapturt9/interactive-worlds-sub000/internal/ai/dryrun"
	aiopenai "github.com/rapturt9/interactive-worlds-sub000/internal/ai/openai"
	"github.com/rapturt9/interactive-worlds-sub000/internal/config"
	debuglog "github.com/rapturt9/interactive-worlds-sub000/internal/log"
	"github.com/rapturt9/interactive-worlds-sub000/internal/storage"
	"github.com/rapturt9/interactive-worlds-sub000/internal/storage/gormdb"
	"github.com/rapturt9/interactive-worlds-sub000/internal/storage/memdb"
)

var (
	configPath string
	verbosity  int
	dryRun     bool
)

var rootCmd = &cobra.Command{
	Use:   "tapestry",
	Short: "Phase-driven interactive narrative sessions",
	Long: `Tapestry runs interactive text adventures as long-lived sessions that
advance through generation phases: world-building, character creation, then
open-ended gameplay turns. Each phase streams from a text model; canonical
state is snapshotted per turn and can be rolled back.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debuglog.SetLevel(debuglog.LevelFromInt(verbosity))
	},
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "tapestry.yaml", "config file path")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase debug output (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "use the offline vendor regardless of config")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dryRun {
		cfg.Vendor = "dryrun"
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.DBPath == "" {
		return memdb.NewDb(), nil
	}
	return gormdb.Open(cfg.DBPath)
}

func buildVendor(cfg *config.Config) (ai.Vendor, error) {
	switch cfg.Vendor {
	case "", "dryrun":
		return dryrun.NewClient(), nil
	case "openai":
		return aiopenai.NewClient()
	case "anthropic":
		return aianthropic.NewClient()
	}
	return nil, fmt.Errorf("unknown vendor %q", cfg.Vendor)
}
