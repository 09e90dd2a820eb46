package main

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-platenet/config"
	"github.com/swdee/go-platenet/model"
	"github.com/swdee/go-platenet/preprocess"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {

	path := filepath.Join(t.TempDir(), "platenet.log")

	log, err := newLogger(config.LogConfig{Level: "info", File: path})
	require.NoError(t, err)

	log.Infow("started", "component", "test")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)

	_, err = newLogger(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestNewImageLoader(t *testing.T) {

	a := &app{cfg: config.Default()}
	a.cfg.Serve.Preprocessor = "draw"
	a.cfg.Model.Width = 60
	a.cfg.Model.Height = 20

	loader, err := a.newImageLoader(preprocess.DefaultParams())
	require.NoError(t, err)
	require.NotNil(t, loader)

	_, err = loader.Preprocess(nil)
	assert.Error(t, err)
}

func TestClassifierResume(t *testing.T) {

	small := model.Config{
		Height:  8,
		Width:   12,
		Filters: 2,
		Kernels: []int{3},
		Hidden:  8,
	}

	c, err := model.New(small)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "resume.ckpt")
	require.NoError(t, model.SaveFile(path, c))

	a := &app{cfg: config.Default(), log: zap.NewNop().Sugar()}
	a.cfg.Serve.Preprocessor = "draw"

	loaded, err := a.classifier(path)
	require.NoError(t, err)

	assert.Equal(t, small, loaded.Config())
	assert.Equal(t, small, a.cfg.Model)

	// images are sized for the resumed topology, not the configured one
	loader, err := a.newImageLoader(preprocess.DefaultParams())
	require.NoError(t, err)

	input, err := loader.Preprocess(solidImage(t))
	require.NoError(t, err)
	assert.Len(t, input, small.InputSize())

	// without a checkpoint the configured topology is kept
	a.cfg = config.Default()

	fresh, err := a.classifier("")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig(), fresh.Config())
}

// solidImage returns an encoded 40x10 gray PNG
func solidImage(t *testing.T) []byte {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, 40, 10))

	for i := range img.Pix {
		img.Pix[i] = 128
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return buf.Bytes()
}
