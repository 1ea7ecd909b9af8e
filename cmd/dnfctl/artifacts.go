package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"dnfcomposer/internal/stats"
	"dnfcomposer/pkg/dnfcomposer"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// newTrace returns nil when artifacts are disabled so that stepping runs
// without per-step bookkeeping.
func (c *cli) newTrace() *stats.Trace {
	if c.cfg.ArtifactsDir == "" {
		return nil
	}
	return &stats.Trace{}
}

// advance runs steps, recording every field's centroid into trace when it
// is not nil.
func advance(ctx context.Context, engine *dnfcomposer.Engine, steps int, trace *stats.Trace) error {
	if trace == nil {
		return engine.Run(ctx, steps)
	}
	for i := 0; i < steps; i++ {
		if err := engine.Run(ctx, 1); err != nil {
			return err
		}
		peaks := engine.PeakSummary()
		if len(trace.Fields) == 0 {
			for _, p := range peaks {
				trace.Fields = append(trace.Fields, p.Field)
			}
		}
		row := make([]float64, len(trace.Fields))
		for j := range row {
			row[j] = math.NaN()
		}
		for j, p := range peaks {
			if j < len(row) && p.Present {
				row[j] = p.Centroid
			}
		}
		trace.Record(row)
	}
	return nil
}

// saveArtifacts writes the run under the artifacts directory and indexes it.
// It returns the run directory, or "" when artifacts are disabled.
func (c *cli) saveArtifacts(engine *dnfcomposer.Engine, command string, trace *stats.Trace) (string, error) {
	if c.cfg.ArtifactsDir == "" {
		return "", nil
	}
	peaks := engine.PeakSummary()
	records := make([]stats.PeakRecord, 0, len(peaks))
	present := 0
	for _, p := range peaks {
		if p.Present {
			present++
		}
		records = append(records, stats.PeakRecord{
			Field:             p.Field,
			Present:           p.Present,
			Centroid:          p.Centroid,
			HighestActivation: p.HighestActivation,
			Width:             p.Width,
		})
	}

	cfg := stats.RunConfig{
		RunID:    engine.RunID(),
		Command:  command,
		Scenario: c.cfg.Scenario,
		Steps:    c.cfg.Steps,
		DeltaT:   c.cfg.DeltaT,
		Size:     c.cfg.Size,
		Position: c.cfg.Position,
		Seed:     c.cfg.Seed,
		Store:    c.cfg.Store,
	}
	if command == "train" || c.cfg.Scenario == scenarioCoupling {
		cfg.Scenario = scenarioCoupling
		cfg.TargetPosition = c.cfg.TargetPosition
		cfg.Rule = c.cfg.Rule
		cfg.LearningRate = c.cfg.LearningRate
		cfg.Scalar = c.cfg.Scalar
	}
	if command == "train" {
		cfg.Iterations = c.cfg.Iterations
	}

	artifacts := stats.RunArtifacts{
		Config:      cfg,
		FinalTime:   engine.Simulation().Time(),
		Peaks:       records,
		Activations: engine.FieldActivations(),
	}
	if trace != nil {
		artifacts.Trace = *trace
	}
	runDir, err := stats.WriteRunArtifacts(c.cfg.ArtifactsDir, artifacts)
	if err != nil {
		return "", fmt.Errorf("write run artifacts: %w", err)
	}
	err = stats.AppendRunIndex(c.cfg.ArtifactsDir, stats.RunIndexEntry{
		RunID:        cfg.RunID,
		Command:      command,
		Scenario:     cfg.Scenario,
		Steps:        cfg.Steps,
		FinalTime:    artifacts.FinalTime,
		Peaks:        present,
		CreatedAtUTC: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("index run: %w", err)
	}
	c.logger.Info("run artifacts written", "dir", runDir)
	return runDir, nil
}

func (c *cli) newRunsCmd() *cobra.Command {
	runs := &cobra.Command{
		Use:   "runs",
		Short: "List and export recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := c.artifactsDir()
			if err != nil {
				return err
			}
			index, err := stats.ListRunIndex(dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(index) == 0 {
				fmt.Fprintln(out, "no recorded runs")
				return nil
			}
			for _, entry := range index {
				created := entry.CreatedAtUTC
				if at, err := time.Parse(time.RFC3339, entry.CreatedAtUTC); err == nil {
					created = humanize.Time(at)
				}
				fmt.Fprintf(out, "%s\t%s\t%s\t%s steps\t%d peaks\t%s\n",
					entry.RunID, entry.Command, entry.Scenario, humanize.Comma(int64(entry.Steps)), entry.Peaks, created)
			}
			return nil
		},
	}

	var outDir string
	export := &cobra.Command{
		Use:   "export RUN_ID",
		Short: "Copy the artifacts of a run to another directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.artifactsDir()
			if err != nil {
				return err
			}
			dst, err := stats.ExportRunArtifacts(dir, args[0], outDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s\n", args[0], dst)
			return nil
		},
	}
	export.Flags().StringVar(&outDir, "out", "exports", "destination directory")

	runs.AddCommand(export)
	return runs
}

func (c *cli) artifactsDir() (string, error) {
	if c.cfg.ArtifactsDir == "" {
		return "", fmt.Errorf("no artifacts directory configured (set --artifacts-dir or DNF_ARTIFACTS_DIR)")
	}
	return c.cfg.ArtifactsDir, nil
}
