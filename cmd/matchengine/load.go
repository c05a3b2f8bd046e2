package main

import (
	"github.com/spf13/cobra"

	"github.com/oncomatch/matchengine/internal/loader"
)

func newLoadCmd() *cobra.Command {
	var clinicalPath, genomicPath, trialsPath string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load clinical, genomic and trial records into the store",
		Long: `Load replaces the store's collections with the given files. Clinical and
genomic records are read from CSV or JSON, trials from YAML or JSON files
or a directory of them. Collections without a flag keep their contents.`,
		Example: `  matchengine load --clinical clinical.csv --genomic genomic.csv --trials trials/
  matchengine load --trials trials/ongoing.yml`,
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

			l := loader.New(st)
			l.SetLogger(logger)
			return l.Load(cmd.Context(), clinicalPath, genomicPath, trialsPath)
		},
	}

	cmd.Flags().StringVar(&clinicalPath, "clinical", "", "clinical records file (csv or json)")
	cmd.Flags().StringVar(&genomicPath, "genomic", "", "genomic records file (csv or json)")
	cmd.Flags().StringVar(&trialsPath, "trials", "", "trial file or directory (yaml or json)")

	return cmd
}
