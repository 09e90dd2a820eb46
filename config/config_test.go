package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {

	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3900, cfg.Data.TrainCount)
	assert.Equal(t, 100, cfg.Data.EvalCount)
	assert.Equal(t, 20, cfg.Train.BatchSize)
	assert.Equal(t, 0.001, cfg.Train.LearnRate)
	assert.Equal(t, []int{5, 5, 3, 3}, cfg.Model.Kernels)
}

func TestLoadFile(t *testing.T) {

	path := filepath.Join(t.TempDir(), "platenet.yaml")

	err := os.WriteFile(path, []byte(`
model:
  height: 30
  width: 120
  filters: 16
  kernels: [5, 3]
  hidden: 64
train:
  epochs: 3
  batch_size: 10
  learn_rate: 0.01
  momentum: 0.9
serve:
  backend: cpu
  sessions: 2
  preprocessor: draw
  timeout: 2s
log:
  level: debug
`), 0o600)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Model.Filters)
	assert.Equal(t, []int{5, 3}, cfg.Model.Kernels)
	assert.Equal(t, 3, cfg.Train.Epochs)
	assert.Equal(t, "draw", cfg.Serve.Preprocessor)
	assert.Equal(t, 2*time.Second, cfg.Serve.Timeout)

	// unset keys keep their defaults
	assert.Equal(t, ":8080", cfg.Serve.Addr)
	assert.Equal(t, 3900, cfg.Data.TrainCount)
}

func TestLoadErrors(t *testing.T) {

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("serve:\n  backend: gpu\n"), 0o600))

	_, err = Load(path)
	assert.ErrorContains(t, err, "unknown backend")
}

func TestEnvOverrides(t *testing.T) {

	env := map[string]string{
		"PLATENET_TRAIN_EPOCHS":     "7",
		"PLATENET_TRAIN_LEARN_RATE": "0.05",
		"PLATENET_SERVE_ADDR":       ":9090",
		"PLATENET_NATS_URL":         "nats://localhost:4222",
		"PLATENET_DATA_URL":         "s3://plates/train",
		"PLATENET_S3_ENDPOINT":      "http://minio:9000",
	}

	cfg := Default()
	require.NoError(t, cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))

	assert.Equal(t, 7, cfg.Train.Epochs)
	assert.Equal(t, 0.05, cfg.Train.LearnRate)
	assert.Equal(t, ":9090", cfg.Serve.Addr)
	assert.Equal(t, "nats://localhost:4222", cfg.Serve.NATSURL)
	assert.Equal(t, "s3://plates/train", cfg.Data.URL)
	assert.Equal(t, "http://minio:9000", cfg.Storage.Endpoint)
	require.NoError(t, cfg.Validate())

	err := cfg.applyEnv(func(k string) (string, bool) {
		if k == "PLATENET_TRAIN_BATCH_SIZE" {
			return "twenty", true
		}
		return "", false
	})
	assert.ErrorContains(t, err, "PLATENET_TRAIN_BATCH_SIZE")
}

func TestLoadEnv(t *testing.T) {

	t.Setenv("PLATENET_SERVE_SESSIONS", "6")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Serve.Sessions)
}

func TestValidate(t *testing.T) {

	cfg := Default()
	cfg.Serve.Backend = "npu"
	assert.ErrorContains(t, cfg.Validate(), "rknn_model")

	cfg = Default()
	cfg.Data.URL = "/local/data"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Log.Level = "loud"
	assert.Error(t, cfg.Validate())
}
