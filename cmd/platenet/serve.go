package main

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"github.com/swdee/go-platenet/model"
	"github.com/swdee/go-platenet/preprocess"
	"github.com/swdee/go-platenet/serve"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve plate recognition over HTTP and optionally NATS",
		RunE: func(cmd *cobra.Command, args []string) error {

			ctx := cmd.Context()
			sc := a.cfg.Serve

			predictor, closer, err := a.newPredictor(ctx)

			if err != nil {
				return err
			}

			defer closer()

			pre, err := a.newImageLoader(preprocess.ServingParams())

			if err != nil {
				return err
			}

			metrics := serve.NewMetrics()
			svc := serve.NewService(pre, predictor, a.cfg.Model.Height, a.cfg.Model.Width, metrics)

			if sc.NATSURL != "" {
				nc, err := nats.Connect(sc.NATSURL, nats.Name("platenet"))

				if err != nil {
					return err
				}

				defer nc.Close()

				responder := serve.NewResponder(svc, metrics, sc.Timeout, a.log)

				if err := responder.Start(nc, sc.NATSSubject, sc.NATSQueue); err != nil {
					return err
				}

				defer responder.Stop()
			}

			router := serve.NewRouter(svc, metrics, a.log)

			return serve.NewServer(sc.Addr, router, a.log).Run(ctx)
		},
	}
}

// newPredictor returns the configured inference backend and its cleanup
func (a *app) newPredictor(ctx context.Context) (serve.Predictor, func() error, error) {

	sc := a.cfg.Serve

	if sc.Backend == "npu" {
		return newNPUPredictor(ctx, a)
	}

	c, err := model.LoadFile(sc.Checkpoint)

	if err != nil {
		return nil, nil, err
	}

	// the checkpoint carries its own topology
	a.cfg.Model = c.Config()

	pool, err := model.NewPool(c, sc.Sessions)

	if err != nil {
		return nil, nil, err
	}

	a.log.Infof("serving %s on %d cpu sessions", sc.Checkpoint, pool.Size())

	return pool, pool.Close, nil
}
