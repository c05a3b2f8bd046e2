package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oncomatch/matchengine/internal/duckdb"
	"github.com/oncomatch/matchengine/internal/engine"
	"github.com/oncomatch/matchengine/internal/oncotree"
	"github.com/oncomatch/matchengine/internal/store"
)

// storeRetries is the total number of attempts per store operation.
const storeRetries = 3

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "matchengine",
		Short: "Match patient samples against clinical trial eligibility criteria",
		Long: `matchengine loads clinical, genomic and trial records into its store and
computes, for every patient sample, the trial treatment levels whose match
clauses the sample satisfies.`,
		Version:      fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.matchengine.yaml)")

	cmd.AddCommand(newLoadCmd())
	cmd.AddCommand(newMatchCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// initConfig wires viper: the config file, MATCHENGINE_* environment
// variables and defaults. A missing config file is only an error when it
// was named explicitly.
func initConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".matchengine")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("MATCHENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("store_uri", "matchengine.duckdb")
	viper.SetDefault("worker_count", 0)
	viper.SetDefault("match_method", engine.MethodGeneral)
	viper.SetDefault("log_level", "info")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// newLogger builds a console logger at the configured level.
func newLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		return nil, fmt.Errorf("parse log_level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// openStore opens the configured record store. The mem:// scheme selects
// the in-process store; anything else is a DuckDB database path.
func openStore() (store.Store, error) {
	uri := viper.GetString("store_uri")
	if uri == "mem" || strings.HasPrefix(uri, "mem://") {
		return store.NewMemory(), nil
	}
	s, err := duckdb.Open(strings.TrimPrefix(uri, "duckdb://"))
	if err != nil {
		return nil, err
	}
	return store.WithRetry(s, storeRetries), nil
}

// loadTumors loads the tumor taxonomy when one is configured. Without it,
// trial diagnoses match literally instead of expanding to descendants.
func loadTumors(logger *zap.Logger) (*oncotree.Tree, error) {
	path := viper.GetString("tumor_tree_path")
	if path == "" {
		logger.Warn("no tumor_tree_path configured, diagnoses match literally")
		return nil, nil
	}
	t, err := oncotree.Load(path)
	if err != nil {
		return nil, err
	}
	if parents := viper.GetStringSlice("liquid_parents"); len(parents) > 0 {
		t.SetLiquidParents(parents)
	}
	return t, nil
}
