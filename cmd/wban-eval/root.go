package main

import (
	"fmt"
	"strings"

	"github.com/snow-ghost/wban/core"
	"github.com/snow-ghost/wban/pkg/logging"
	"github.com/snow-ghost/wban/pkg/registry"
	"github.com/snow-ghost/wban/propagation"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries what every subcommand needs after PersistentPreRunE
type app struct {
	v      *viper.Viper
	logger *logging.Logger
	loader *registry.Loader
	doc    *registry.Document
}

// newRootCmd builds a fresh command tree; tests call it once per case.
func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), logger: logging.NewNop()}

	root := &cobra.Command{
		Use:           "wban-eval",
		Short:         "Evaluate WBAN sensor and hub placements.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "parameter file (default "+registry.DefaultConfigPath+")")
	root.PersistentFlags().Uint64("seed", 0, "seed for the shadowing source; unset draws from entropy")
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	for _, name := range []string{"config", "seed", "log-level"} {
		_ = a.v.BindPFlag(name, root.PersistentFlags().Lookup(name))
	}

	root.AddCommand(
		newScenariosCmd(a),
		newEvaluateCmd(a),
		newMetricsCmd(a),
		newInitCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	a.v.SetEnvPrefix("WBAN")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	logger, err := logging.NewLogger(logging.Config{
		Level:  a.v.GetString("log-level"),
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger

	a.loader = registry.NewLoader(a.v.GetString("config"))
	if cmd.Name() == "init" {
		return nil
	}

	doc, err := a.loader.Load()
	if err != nil {
		return err
	}
	a.doc = doc
	a.logger.LogConfigLoaded(a.loader.Path(), doc.ScenarioIDs())
	return nil
}

// shadowing honours --seed / WBAN_SEED
func (a *app) shadowing() core.Shadowing {
	if a.v.IsSet("seed") {
		return propagation.NewGaussianShadowing(a.v.GetUint64("seed"))
	}
	return propagation.NewEntropyShadowing()
}
