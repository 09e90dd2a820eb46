package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/swdee/go-platenet/preprocess"
	"github.com/swdee/go-platenet/serve"
)

func newDecodeCommand(a *app) *cobra.Command {

	var checkpoint string

	cmd := &cobra.Command{
		Use:   "decode <image>...",
		Short: "Recognise the plates in image files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {

			if checkpoint != "" {
				a.cfg.Serve.Checkpoint = checkpoint
			}

			predictor, closer, err := a.newPredictor(cmd.Context())

			if err != nil {
				return err
			}

			defer closer()

			pre, err := a.newImageLoader(preprocess.ServingParams())

			if err != nil {
				return err
			}

			svc := serve.NewService(pre, predictor, a.cfg.Model.Height, a.cfg.Model.Width, nil)

			for _, path := range args {
				data, err := os.ReadFile(path)

				if err != nil {
					return err
				}

				res, err := svc.Recognize(cmd.Context(), data)

				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				conf := make([]string, len(res.Confidence))

				for i, c := range res.Confidence {
					conf[i] = fmt.Sprintf("%.2f", c)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t[%s]\n", path, res.Plate, strings.Join(conf, " "))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&checkpoint, "checkpoint", "", "checkpoint to decode with")

	return cmd
}
