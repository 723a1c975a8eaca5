package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &adviseOptions{}

	cmd := &cobra.Command{
		Use:   "advise [readings.csv]",
		Short: "Generate fertilizer advisories for a CSV of soil readings",
		Long: `Reads soil readings with the columns crop,nitrogen,phosphorus,potassium
and optionally temperature,humidity,rainfall (an empty cell means absent),
runs the recommendation engine on every row and writes one JSON line per row.

Reads standard input when no file is given or the file is "-".`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.input = args[0]
			}
			return runAdvise(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "out", "o", "", "write JSON lines to this file instead of stdout")
	cmd.PersistentFlags().StringVar(&opts.referenceFile, "reference", "", "YAML reference data replacing the built-in tables")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.Flags().IntVar(&opts.maxErrors, "max-errors", 10, "number of row errors listed in the summary")

	cmd.AddCommand(&cobra.Command{
		Use:   "crops",
		Short: "List crops with their own nutrient bands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := loadReference(opts.referenceFile)
			if err != nil {
				return err
			}
			for _, c := range ref.Bands.Crops() {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	})
	return cmd
}
