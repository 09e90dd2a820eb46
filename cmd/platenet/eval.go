package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/swdee/go-platenet/train"
)

func newEvalCommand(a *app) *cobra.Command {

	var (
		checkpoint string
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Measure the accuracy of a checkpoint on the evaluation samples",
		RunE: func(cmd *cobra.Command, args []string) error {

			ctx := cmd.Context()

			if checkpoint == "" {
				checkpoint = a.cfg.Train.Checkpoint
			}

			c, err := a.classifier(checkpoint)

			if err != nil {
				return err
			}

			ds, err := a.loadDataset(ctx)

			if err != nil {
				return err
			}

			if !all {
				_, ds = ds.Split(a.cfg.Data.TrainCount)

				if ds == nil {
					return fmt.Errorf("no samples after the first %d, use --all", a.cfg.Data.TrainCount)
				}

				if a.cfg.Data.EvalCount > 0 {
					ds = ds.Head(a.cfg.Data.EvalCount)
				}
			}

			m, err := train.Evaluate(ctx, c, ds, a.cfg.Train.BatchSize)

			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "samples=%d accuracy=%f char-accuracy=%f decoded-accuracy=%f\n",
				m.Samples, m.Accuracy, m.CharAccuracy, m.DecodedAccuracy)

			return nil
		},
	}

	cmd.Flags().StringVar(&checkpoint, "checkpoint", "", "checkpoint to evaluate")
	cmd.Flags().BoolVar(&all, "all", false, "evaluate every sample in the manifest")

	return cmd
}
