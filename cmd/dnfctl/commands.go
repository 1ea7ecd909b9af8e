package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"dnfcomposer/internal/stats"
	"dnfcomposer/internal/storage"
	"dnfcomposer/pkg/dnfcomposer"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

func addScenarioFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("steps", 100, "time steps per phase")
	f.Int("size", 100, "spatial size of every field")
	f.Float64("position", 22, "stimulus position of the (input) field")
	f.Float64("target-position", 50, "stimulus position of the target field")
	f.Uint64("seed", 0, "seed of the initial random coupling weights")
}

func (c *cli) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build a scenario, step it and report the peaks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			engine, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			switch c.cfg.Scenario {
			case scenarioCoupling:
				err = engine.BuildCoupledFields(c.cfg.couplingScenario())
			default:
				err = engine.BuildSelfExcitedField(c.cfg.fieldScenario())
			}
			if err != nil {
				return err
			}
			if err := engine.Init(); err != nil {
				return err
			}
			trace := c.newTrace()
			started := time.Now()
			if err := advance(ctx, engine, c.cfg.Steps, trace); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s: %s steps to t=%g in %s\n",
				engine.RunID(), humanize.Comma(int64(c.cfg.Steps)), engine.Simulation().Time(), time.Since(started).Round(time.Millisecond))
			printPeaks(out, engine.PeakSummary())
			return c.reportArtifacts(out, engine, "run", trace)
		},
	}
	cmd.Flags().String("scenario", scenarioField, "field|coupling")
	addScenarioFlags(cmd)
	return cmd
}

func (c *cli) newTrainCmd() *cobra.Command {
	var recall bool
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the coupling between two self-sustained fields",
		Long: `train settles the coupled-field scenario with both stimuli, removes them,
lets the peaks sustain themselves and trains the coupling on the normalized
field activations. The weights are written to the configured store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			engine, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			sc := c.cfg.couplingScenario()
			if err := engine.BuildCoupledFields(sc); err != nil {
				return err
			}
			if err := engine.Init(); err != nil {
				return err
			}
			trace := c.newTrace()
			if err := advance(ctx, engine, c.cfg.Steps, trace); err != nil {
				return err
			}
			for _, name := range []string{dnfcomposer.InputFieldName, dnfcomposer.TargetFieldName} {
				if err := engine.DetachStimulus(name); err != nil {
					return err
				}
			}
			if err := advance(ctx, engine, c.cfg.Steps, trace); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printPeaks(out, engine.PeakSummary())
			started := time.Now()
			err = engine.TrainFromFields(ctx, dnfcomposer.CouplingName, dnfcomposer.InputFieldName, dnfcomposer.TargetFieldName, c.cfg.Iterations)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "trained %q (%s) with %s iterations in %s\n",
				dnfcomposer.CouplingName, sc.Rule, humanize.Comma(int64(c.cfg.Iterations)), time.Since(started).Round(time.Millisecond))

			if !recall {
				return c.reportArtifacts(out, engine, "train", trace)
			}
			if err := engine.Init(); err != nil {
				return err
			}
			if err := engine.AttachStimulus(dnfcomposer.InputFieldName, sc.Field.StimulusSigma, sc.Field.StimulusAmplitude, sc.InputPosition); err != nil {
				return err
			}
			if err := advance(ctx, engine, c.cfg.Steps, trace); err != nil {
				return err
			}
			fmt.Fprintln(out, "recall with input stimulus only:")
			printPeaks(out, engine.PeakSummary())
			return c.reportArtifacts(out, engine, "train", trace)
		},
	}
	f := cmd.Flags()
	f.String("rule", "delta_krogh_hertz", "hebbian|delta_widrow_hoff|delta_krogh_hertz")
	f.Float64("learning-rate", 0.2, "learning rate of the coupling")
	f.Float64("scalar", 0.1, "output scale of the coupling")
	f.Int("iterations", 1000, "training presentations")
	f.BoolVar(&recall, "recall", false, "re-run with the input stimulus only after training")
	addScenarioFlags(cmd)
	return cmd
}

func (c *cli) newWeightsCmd() *cobra.Command {
	weights := &cobra.Command{
		Use:   "weights",
		Short: "Inspect the stored coupling weights",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored weight matrices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			engine, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			names, err := engine.ListWeights(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(out, "no stored weights")
				return nil
			}
			files, _ := engine.Store().(*storage.FileStore)
			for _, name := range names {
				if files == nil {
					fmt.Fprintln(out, name)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\n", name, fileSize(files, name))
			}
			return nil
		},
	}

	var full bool
	show := &cobra.Command{
		Use:   "show NAME",
		Short: "Summarize a stored weight matrix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			w, found, err := engine.LoadWeights(ctx, args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no stored weights named %q", args[0])
			}
			rows, cols := w.Dims()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d x %d (%s weights)\n", args[0], rows, cols, humanize.Comma(int64(rows*cols)))
			fmt.Fprintf(out, "min %s max %s mean %s\n",
				humanize.FtoaWithDigits(mat.Min(w), 6),
				humanize.FtoaWithDigits(mat.Max(w), 6),
				humanize.FtoaWithDigits(mat.Sum(w)/float64(rows*cols), 6))
			if full {
				fmt.Fprintf(out, "%v\n", mat.Formatted(w, mat.Squeeze()))
			}
			return nil
		},
	}
	show.Flags().BoolVar(&full, "full", false, "print every weight")

	del := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a stored weight matrix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			if err := engine.DeleteWeights(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}

	weights.AddCommand(list, show, del)
	return weights
}

func (c *cli) reportArtifacts(out io.Writer, engine *dnfcomposer.Engine, command string, trace *stats.Trace) error {
	runDir, err := c.saveArtifacts(engine, command, trace)
	if err != nil || runDir == "" {
		return err
	}
	_, err = fmt.Fprintf(out, "artifacts in %s\n", runDir)
	return err
}

func fileSize(store *storage.FileStore, name string) string {
	path, err := store.Path(name)
	if err != nil {
		return "?"
	}
	info, err := os.Stat(path)
	if err != nil {
		return "?"
	}
	return humanize.Bytes(uint64(info.Size()))
}

func printPeaks(out io.Writer, peaks []dnfcomposer.Peak) {
	for _, p := range peaks {
		if !p.Present {
			fmt.Fprintf(out, "  %-14s no peak (max activation %s)\n", p.Field, humanize.FtoaWithDigits(p.HighestActivation, 3))
			continue
		}
		fmt.Fprintf(out, "  %-14s peak at %.2f, width %d, max activation %s\n",
			p.Field, p.Centroid, p.Width, humanize.FtoaWithDigits(p.HighestActivation, 3))
	}
}
