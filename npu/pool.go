//go:build rknn

package npu

import (
	"context"
	"fmt"
	"strings"

	"github.com/swdee/go-platenet"
)

// Pool holds one Runtime per NPU core of the platform so concurrent
// requests run on separate cores
type Pool struct {
	runtimes *platenet.Pool[*Runtime]
}

// NewPool loads the model once per NPU core of the platform
func NewPool(modelFile, platform string) (*Pool, error) {

	cores, ok := platformCores[strings.ToLower(strings.TrimSpace(platform))]

	if !ok {
		return nil, fmt.Errorf("unknown platform: %s", platform)
	}

	runtimes, err := platenet.NewPool(len(cores), func(i int) (*Runtime, error) {
		return NewRuntime(modelFile, cores[i])
	})

	if err != nil {
		return nil, err
	}

	return &Pool{runtimes: runtimes}, nil
}

// Predict runs one image on a free NPU core
func (p *Pool) Predict(ctx context.Context, input []float64) (platenet.Prediction, error) {

	rt, err := p.runtimes.Get(ctx)

	if err != nil {
		return nil, err
	}

	defer p.runtimes.Return(rt)

	return rt.Predict(ctx, input)
}

// Version returns the RKNN API and driver versions of the loaded runtime
func (p *Pool) Version(ctx context.Context) (string, error) {

	rt, err := p.runtimes.Get(ctx)

	if err != nil {
		return "", err
	}

	defer p.runtimes.Return(rt)

	api, drv, err := rt.SDKVersion()

	if err != nil {
		return "", err
	}

	return fmt.Sprintf("rknn api %s driver %s", api, drv), nil
}

// Close releases every runtime
func (p *Pool) Close() error {
	p.runtimes.Close()
	return nil
}
