package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/swdee/go-platenet/storage"
)

func newFetchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <s3://bucket/prefix> <dir>",
		Short: "Copy a data set or model from object storage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {

			copier, err := storage.NewS3Copier(cmd.Context(), a.cfg.Storage)

			if err != nil {
				return err
			}

			n, err := copier.CopyPrefix(cmd.Context(), args[0], args[1])

			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "copied %d files to %s\n", n, args[1])

			return nil
		},
	}
}
