//go:build rknn

package main

import (
	"context"

	"github.com/swdee/go-platenet/npu"
	"github.com/swdee/go-platenet/serve"
)

// newNPUPredictor loads the RKNN model onto every NPU core of the platform
func newNPUPredictor(ctx context.Context, a *app) (serve.Predictor, func() error, error) {

	sc := a.cfg.Serve

	if sc.CPUCores != "" {
		ct, err := npu.ParseCoreType(sc.CPUCores)

		if err != nil {
			return nil, nil, err
		}

		if err := npu.SetCPUAffinityByPlatform(sc.Platform, ct); err != nil {
			return nil, nil, err
		}
	}

	pool, err := npu.NewPool(sc.RKNNModel, sc.Platform)

	if err != nil {
		return nil, nil, err
	}

	if ver, err := pool.Version(ctx); err == nil {
		a.log.Infof("serving %s on %s NPU, %s", sc.RKNNModel, sc.Platform, ver)
	}

	return pool, pool.Close, nil
}
