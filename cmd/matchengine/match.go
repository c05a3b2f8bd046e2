package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/oncomatch/matchengine/internal/annotation"
	"github.com/oncomatch/matchengine/internal/engine"
	"github.com/oncomatch/matchengine/internal/export"
	"github.com/oncomatch/matchengine/internal/match"
)

func newMatchCmd() *cobra.Command {
	var (
		protocols []string
		outPath   string
		format    string
		daemon    bool
		interval  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Run the match engine over the stored records",
		Long: `Match evaluates every stored trial's match clauses against the clinical
and genomic collections, replaces the stored match records with the sorted
results and optionally writes them to a report file.`,
		Example: `  matchengine match
  matchengine match --protocols 16-010,17-251 --out matches.csv
  matchengine match --method annotated --out matches.json
  matchengine match --daemon --interval 24h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			tumors, err := loadTumors(logger)
			if err != nil {
				return err
			}

			eng := engine.New(st, tumors, engine.Config{
				Workers:     viper.GetInt("worker_count"),
				MatchMethod: viper.GetString("match_method"),
				Protocols:   protocols,
			})
			eng.SetLogger(logger)
			if endpoint := viper.GetString("annotation_endpoint"); endpoint != "" {
				client := annotation.NewClient(endpoint, viper.GetString("annotation_token"))
				client.SetLogger(logger)
				eng.SetAnnotationClient(client)
			}

			ctx := cmd.Context()
			if !daemon {
				return runOnce(ctx, eng, outPath, format)
			}

			logger.Info("daemon mode", zap.Duration("interval", interval))
			for {
				if err := runOnce(ctx, eng, outPath, format); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					logger.Error("match run failed", zap.Error(err))
				}
				timer := time.NewTimer(interval)
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil
				case <-timer.C:
				}
			}
		},
	}

	cmd.Flags().Int("workers", 0, "worker pool size (0 picks a default)")
	cmd.Flags().String("method", "", "match method: general or annotated")
	cmd.Flags().StringSliceVar(&protocols, "protocols", nil, "restrict the run to these protocol numbers")
	cmd.Flags().StringVar(&outPath, "out", "", "write the match report to this file ('-' for stdout)")
	cmd.Flags().StringVar(&format, "format", "", "report format: csv or json (default from file extension)")
	cmd.Flags().BoolVar(&daemon, "daemon", false, "keep running, repeating the match on an interval")
	cmd.Flags().DurationVar(&interval, "interval", 24*time.Hour, "delay between daemon runs")

	_ = viper.BindPFlag("worker_count", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("match_method", cmd.Flags().Lookup("method"))

	return cmd
}

func runOnce(ctx context.Context, eng *engine.Engine, outPath, format string) error {
	records, err := eng.Run(ctx)
	if err != nil {
		return err
	}
	if outPath == "" {
		return nil
	}
	return exportRecords(outPath, format, records)
}

// exportRecords writes the report to path. The format defaults by file
// extension, csv unless the path ends in .json.
func exportRecords(path, format string, records []*match.Record) error {
	if format == "" {
		if strings.EqualFold(filepath.Ext(path), ".json") {
			format = "json"
		} else {
			format = "csv"
		}
	}

	out := os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		out = f
	}

	var werr error
	switch format {
	case "csv":
		werr = export.WriteCSV(out, records)
	case "json":
		werr = export.WriteJSON(out, records)
	default:
		werr = fmt.Errorf("unknown report format %q", format)
	}

	if out != os.Stdout {
		if cerr := out.Close(); werr == nil {
			werr = cerr
		}
	}
	return werr
}
