package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/swdee/go-platenet/model"
	"github.com/swdee/go-platenet/storage"
	"github.com/swdee/go-platenet/train"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables overriding the file
const EnvPrefix = "PLATENET"

// Config is the complete application configuration
type Config struct {
	Model   model.Config    `yaml:"model"`
	Data    DataConfig      `yaml:"data"`
	Train   train.Params    `yaml:"train"`
	Serve   ServeConfig     `yaml:"serve"`
	Storage storage.Options `yaml:"storage"`
	Log     LogConfig       `yaml:"log"`
}

// DataConfig locates the training data
type DataConfig struct {
	// Manifest is the plate,filename label file
	Manifest string `yaml:"manifest"`
	// ImageDir holds the plate images named in the manifest
	ImageDir string `yaml:"image_dir"`
	// URL optionally names an s3:// prefix copied into ImageDir before
	// training
	URL string `yaml:"url"`
	// TrainCount is the number of leading samples used for training, the
	// rest are for evaluation
	TrainCount int `yaml:"train_count"`
	// EvalCount caps the evaluation samples, zero for all
	EvalCount int `yaml:"eval_count"`
	// Workers is the number of images decoded in parallel
	Workers int `yaml:"workers"`
}

// ServeConfig configures the recognition service
type ServeConfig struct {
	Addr string `yaml:"addr"`
	// Backend is cpu to run the checkpoint or npu for an RKNN model
	Backend string `yaml:"backend"`
	// Checkpoint is the trained model used by the cpu backend
	Checkpoint string `yaml:"checkpoint"`
	// Sessions is the number of concurrent cpu inference sessions
	Sessions int `yaml:"sessions"`
	// RKNNModel and Platform configure the npu backend
	RKNNModel string `yaml:"rknn_model"`
	Platform  string `yaml:"platform"`
	// CPUCores optionally pins the process to the fast, slow or all cluster
	CPUCores string `yaml:"cpu_cores"`
	// Preprocessor is gocv or draw
	Preprocessor string `yaml:"preprocessor"`
	// Timeout bounds a single recognition
	Timeout time.Duration `yaml:"timeout"`
	// NATS responder, disabled when URL is empty
	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`
	NATSQueue   string `yaml:"nats_queue"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `yaml:"level"`
	// File additionally writes JSON logs to the path when set
	File string `yaml:"file"`
}

// Default returns the configuration used when no file is given
func Default() *Config {

	tp := train.DefaultParams()
	tp.Checkpoint = "platenet.ckpt"

	return &Config{
		Model: model.DefaultConfig(),
		Data: DataConfig{
			Manifest:   "data/train.txt",
			ImageDir:   "data/plate_train",
			TrainCount: 3900,
			EvalCount:  100,
			Workers:    8,
		},
		Train: tp,
		Serve: ServeConfig{
			Addr:         ":8080",
			Backend:      "cpu",
			Checkpoint:   "platenet.ckpt",
			Sessions:     4,
			Platform:     "rk3588",
			Preprocessor: "gocv",
			Timeout:      5 * time.Second,
			NATSSubject:  "platenet.recognize",
			NATSQueue:    "platenet",
		},
		Storage: storage.Options{
			Workers: 8,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies a .env
// file and PLATENET_* environment variables, then validates.  An empty path
// skips the file.
func Load(path string) (*Config, error) {

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)

		if err != nil {
			return nil, fmt.Errorf("error reading config: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// lookupFunc matches os.LookupEnv
type lookupFunc func(key string) (string, bool)

// applyEnv applies environment variable overrides
func (c *Config) applyEnv(lookup lookupFunc) error {

	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + "_" + key); ok && v != "" {
			*dst = v
		}
	}

	var errs []error

	num := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + "_" + key); ok && v != "" {
			n, err := strconv.Atoi(v)

			if err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", EnvPrefix, key, err))
				return
			}

			*dst = n
		}
	}

	float := func(key string, dst *float64) {
		if v, ok := lookup(EnvPrefix + "_" + key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)

			if err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", EnvPrefix, key, err))
				return
			}

			*dst = f
		}
	}

	str("DATA_MANIFEST", &c.Data.Manifest)
	str("DATA_IMAGE_DIR", &c.Data.ImageDir)
	str("DATA_URL", &c.Data.URL)
	num("DATA_WORKERS", &c.Data.Workers)

	num("TRAIN_EPOCHS", &c.Train.Epochs)
	num("TRAIN_BATCH_SIZE", &c.Train.BatchSize)
	float("TRAIN_LEARN_RATE", &c.Train.LearnRate)
	str("TRAIN_CHECKPOINT", &c.Train.Checkpoint)

	str("SERVE_ADDR", &c.Serve.Addr)
	str("SERVE_BACKEND", &c.Serve.Backend)
	str("SERVE_CHECKPOINT", &c.Serve.Checkpoint)
	num("SERVE_SESSIONS", &c.Serve.Sessions)
	str("SERVE_RKNN_MODEL", &c.Serve.RKNNModel)
	str("SERVE_PLATFORM", &c.Serve.Platform)
	str("NATS_URL", &c.Serve.NATSURL)
	str("NATS_SUBJECT", &c.Serve.NATSSubject)

	str("S3_REGION", &c.Storage.Region)
	str("S3_ENDPOINT", &c.Storage.Endpoint)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)

	return errors.Join(errs...)
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {

	var errs []error

	if err := c.Model.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("model: %w", err))
	}

	if err := c.Train.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("train: %w", err))
	}

	if c.Data.TrainCount < 0 || c.Data.EvalCount < 0 {
		errs = append(errs, fmt.Errorf("data: sample counts must not be negative"))
	}

	switch c.Serve.Backend {
	case "cpu":
		if c.Serve.Sessions < 1 {
			errs = append(errs, fmt.Errorf("serve: sessions must be at least 1"))
		}
	case "npu":
		if c.Serve.RKNNModel == "" {
			errs = append(errs, fmt.Errorf("serve: rknn_model is required for the npu backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("serve: unknown backend %q", c.Serve.Backend))
	}

	switch c.Serve.Preprocessor {
	case "gocv", "draw":
	default:
		errs = append(errs, fmt.Errorf("serve: unknown preprocessor %q", c.Serve.Preprocessor))
	}

	if c.Data.URL != "" && !storage.IsURL(c.Data.URL) {
		errs = append(errs, fmt.Errorf("data: url %q is not an s3:// url", c.Data.URL))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log: unknown level %q", c.Log.Level))
	}

	return errors.Join(errs...)
}
