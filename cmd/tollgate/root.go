package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/tollgate/internal/cli"
	"github.com/aretw0/tollgate/internal/config"
	"github.com/aretw0/tollgate/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	v   *viper.Viper
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tollgate",
	Short: "Tollgate is a human-in-the-loop agent runtime",
	Long: `Tollgate runs tool-using agent conversations that stop before every tool call
until a human approves or rejects it. Conversations are checkpointed after every
step and can be resumed from any process sharing the same store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")

		var err error
		v, err = config.InitViper(configFile)
		if err != nil {
			return err
		}
		flagKeys := map[string]string{
			"log-level":  "log.level",
			"log-format": "log.format",
			"store":      "store.backend",
			"store-path": "store.path",
			"dsn":        "store.dsn",
			"model":      "model.provider",
			"tools":      "tools.file",
			"listen":     "server.listen",
		}
		for flag, key := range flagKeys {
			if f := cmd.Flags().Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return err
				}
			}
		}

		cfg, err = config.Load(v)
		return err
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Config file (default: ./tollgate.yaml or ./.tollgate/tollgate.yaml)")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "text", "Log format: text or json")
	pf.String("store", config.BackendMemory, "Checkpoint store: memory, file, redis, sqlite, postgres")
	pf.String("store-path", ".tollgate/sessions", "Directory for the file and sqlite stores")
	pf.String("dsn", "", "Database DSN for the sqlite and postgres stores")
	pf.String("model", config.ProviderRules, "Model provider: rules or openai")
	pf.String("tools", "tools.yaml", "Process tools definition file")
}

func newLogger() *slog.Logger {
	level := logging.ParseLevel(cfg.Log.Level)
	if cfg.Log.Format == "json" {
		return logging.NewJSON(level)
	}
	return logging.New(level)
}

// buildApp assembles the engine for commands that talk to conversations.
func buildApp(cmd *cobra.Command, logger *slog.Logger) (*cli.App, error) {
	app, err := cli.Build(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("error initializing tollgate: %w", err)
	}
	return app, nil
}
