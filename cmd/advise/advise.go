package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"plantcare/internal/fertilizer"
	"plantcare/internal/services"
	"plantcare/pkg/logging"
	"plantcare/pkg/metrics"
)

type adviseOptions struct {
	input         string
	output        string
	referenceFile string
	logLevel      string
	maxErrors     int
}

func loadReference(path string) (*fertilizer.ReferenceData, error) {
	if path == "" {
		return fertilizer.DefaultReference()
	}
	return fertilizer.LoadReferenceFile(path)
}

func runAdvise(cmd *cobra.Command, opts *adviseOptions) error {
	ctx := cmd.Context()

	logger := logging.NewStructuredLogger("plantcare-advise", "1.0.0", logging.ParseLevel(opts.logLevel))
	logger.SetOutput(cmd.ErrOrStderr())
	defer logger.Sync()

	ref, err := loadReference(opts.referenceFile)
	if err != nil {
		return err
	}
	engine, err := fertilizer.NewEngine(ref)
	if err != nil {
		return err
	}

	in := cmd.InOrStdin()
	if opts.input != "" && opts.input != "-" {
		f, err := os.Open(opts.input)
		if err != nil {
			return fmt.Errorf("failed to open readings: %w", err)
		}
		defer f.Close()
		in = f
	}

	out := cmd.OutOrStdout()
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	m := metrics.NewCollectorWithRegistry("plantcare_advise", prometheus.NewRegistry())
	batch := services.NewAdvisoryBatchService(services.NewFertilizerService(engine, logger, m), logger)

	result, err := batch.Process(ctx, in, out)
	if err != nil {
		return err
	}

	printSummary(cmd.ErrOrStderr(), result, opts.maxErrors)
	return nil
}

func printSummary(w io.Writer, result *services.BatchResult, maxErrors int) {
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w, "ADVISORY BATCH COMPLETE")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Total Rows:      %d\n", result.TotalRows)
	fmt.Fprintf(w, "Successful Rows: %d\n", result.SuccessfulRows)
	fmt.Fprintf(w, "Failed Rows:     %d\n", result.FailedRows)
	fmt.Fprintf(w, "Duration:        %v\n", result.Duration)

	if len(result.Schedules) > 0 {
		fmt.Fprintln(w, "\nSchedules:")
		kinds := make([]string, 0, len(result.Schedules))
		for k := range result.Schedules {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(w, "  %-22s %d\n", k, result.Schedules[k])
		}
	}

	if len(result.Errors) > 0 {
		fmt.Fprintf(w, "\nErrors (%d):\n", len(result.Errors))
		for i, msg := range result.Errors {
			if i == maxErrors {
				fmt.Fprintf(w, "  ... and %d more errors\n", len(result.Errors)-maxErrors)
				break
			}
			fmt.Fprintf(w, "  - %s\n", msg)
		}
	}
}
