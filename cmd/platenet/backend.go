//go:build !rknn

package main

import (
	"context"
	"fmt"

	"github.com/swdee/go-platenet/serve"
)

// newNPUPredictor is unavailable without the rknn build tag
func newNPUPredictor(ctx context.Context, a *app) (serve.Predictor, func() error, error) {
	return nil, nil, fmt.Errorf("npu backend requires building with -tags rknn")
}
