package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/swdee/go-platenet/config"
	"github.com/swdee/go-platenet/preprocess"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app holds the state shared by all subcommands
type app struct {
	cfgPath string
	cfg     *config.Config
	log     *zap.SugaredLogger
}

// Execute runs the command line until it completes or a signal arrives
func Execute() error {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "platenet",
		Short:         "Train and serve a nine character license plate recognizer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Usage()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "",
		"YAML configuration file")

	rootCmd.AddCommand(
		newTrainCommand(a),
		newEvalCommand(a),
		newServeCommand(a),
		newFetchCommand(a),
		newDecodeCommand(a),
	)

	return rootCmd.ExecuteContext(ctx)
}

// setup loads the configuration and builds the logger
func (a *app) setup() error {

	cfg, err := config.Load(a.cfgPath)

	if err != nil {
		return err
	}

	log, err := newLogger(cfg.Log)

	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log

	return nil
}

// newLogger returns a console logger, teed to a JSON file when configured
func newLogger(lc config.LogConfig) (*zap.SugaredLogger, error) {

	level, err := zapcore.ParseLevel(lc.Level)

	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	pe := zap.NewProductionEncoderConfig()
	pe.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(pe), zapcore.AddSync(os.Stdout), level),
	}

	if lc.File != "" {
		f, err := os.OpenFile(lc.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)

		if err != nil {
			return nil, fmt.Errorf("error opening log file: %w", err)
		}

		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(pe), zapcore.AddSync(f), level))
	}

	return zap.New(zapcore.NewTee(cores...)).Sugar(), nil
}

// imageLoader decodes images from bytes or files into model inputs
type imageLoader interface {
	Preprocess(data []byte) ([]float64, error)
	File(path string) ([]float64, error)
}

// newImageLoader returns the configured preprocessor sized for the model
func (a *app) newImageLoader(p preprocess.Params) (imageLoader, error) {

	p.Width = a.cfg.Model.Width
	p.Height = a.cfg.Model.Height

	if a.cfg.Serve.Preprocessor == "draw" {
		return preprocess.NewDrawPreprocessor(p)
	}

	return preprocess.NewPreprocessor(p)
}
