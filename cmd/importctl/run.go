package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/stepimport/internal/core"
	"github.com/JonMunkholm/stepimport/internal/notify"
	"github.com/JonMunkholm/stepimport/internal/source"
)

type runOptions struct {
	entity    string
	mappings  []string
	perStep   int
	batchID   string
	startStep int
	noFinish  bool
	retryMax  time.Duration
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Import a CSV file step by step",
		Long: `Import a CSV file step by step.

Each step imports --per-step rows and records progress in the configured
progress store. When a run stops early the command prints the flags that
resume it from the failed step.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.entity, "entity", "", "Entity to import, see 'importctl importers' (required)")
	cmd.Flags().StringArrayVar(&opts.mappings, "map", nil, "Column=field mapping, repeatable (default: keep header names)")
	cmd.Flags().IntVar(&opts.perStep, "per-step", 0, "Rows per step (default: IMPORT_PER_STEP)")
	cmd.Flags().StringVar(&opts.batchID, "batch", "", "Batch id to resume (default: new batch)")
	cmd.Flags().IntVar(&opts.startStep, "start-step", 0, "First step to run when resuming")
	cmd.Flags().BoolVar(&opts.noFinish, "no-finish", false, "Keep progress counters after the last step")
	cmd.Flags().DurationVar(&opts.retryMax, "retry-max", time.Minute, "Give up retrying a failing step after this long")

	_ = cmd.MarkFlagRequired("entity")

	return cmd
}

func runImport(cmd *cobra.Command, path string, opts runOptions) error {
	ctx := cmd.Context()

	def, err := core.Lookup(opts.entity)
	if err != nil {
		return withCode(exitUsage, err)
	}
	mapping, err := core.ParseMappingPairs(opts.mappings)
	if err != nil {
		return withCode(exitUsage, err)
	}
	if opts.perStep < 0 || opts.startStep < 0 {
		return withCode(exitUsage, fmt.Errorf("--per-step and --start-step must not be negative"))
	}
	if opts.batchID == "" {
		if opts.startStep > 0 {
			return withCode(exitUsage, fmt.Errorf("--start-step needs the --batch being resumed"))
		}
		opts.batchID = source.NewBatchID()
	} else if _, err := uuid.Parse(opts.batchID); err != nil {
		return withCode(exitUsage, fmt.Errorf("invalid --batch: %w", err))
	}

	src, err := source.Open(path)
	if err != nil {
		return err
	}

	d, err := openDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	perStep := opts.perStep
	if perStep == 0 {
		perStep = d.cfg.Import.PerStep
	}

	importer := def.New(d.db)
	exec := core.NewExecutor(d.store, importer,
		core.WithCompletionHook(notify.Hook(opts.entity, d.notifiers...)))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "batch %s: %d rows, %d per step, %s policy\n",
		opts.batchID, src.RowCount(), perStep, importer.CountPolicy())

	sum, err := core.Drive(ctx, exec, core.Session{
		BatchID:    opts.batchID,
		Entity:     opts.entity,
		Source:     src,
		PerStep:    perStep,
		Mapping:    mapping,
		Permission: core.AllowAll,
	}, core.DriveOptions{
		StartStep:       opts.startStep,
		RetryMaxElapsed: opts.retryMax,
		SkipFinish:      opts.noFinish,
		OnStep: func(res core.StepResult) {
			fmt.Fprintf(out, "step %d: rows %d-%d accepted=%d rejected=%d %.1f%%\n",
				res.Step, res.Start, res.End, res.Accepted, res.Rejected, res.Percent)
		},
	})
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "resume with: --entity %s --batch %s --start-step %d\n",
			opts.entity, opts.batchID, opts.startStep+sum.Steps)
		if errors.Is(err, context.Canceled) {
			return withCode(exitInterrupted, err)
		}
		return err
	}

	fmt.Fprintf(out, "done: %d steps, %d accepted, %d rejected\n", sum.Steps, sum.Accepted, sum.Rejected)
	return nil
}
