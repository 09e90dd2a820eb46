package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/swdee/go-platenet"
	"github.com/swdee/go-platenet/model"
	"github.com/swdee/go-platenet/preprocess"
	"github.com/swdee/go-platenet/storage"
	"github.com/swdee/go-platenet/train"
)

func newTrainCommand(a *app) *cobra.Command {

	var (
		resume string
		epochs int
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the plate classifier on the manifest data set",
		RunE: func(cmd *cobra.Command, args []string) error {

			ctx := cmd.Context()

			if epochs > 0 {
				a.cfg.Train.Epochs = epochs
			}

			// load first so the data set is sized for the resumed topology
			c, err := a.classifier(resume)

			if err != nil {
				return err
			}

			if err := a.fetchData(ctx); err != nil {
				return err
			}

			ds, err := a.loadDataset(ctx)

			if err != nil {
				return err
			}

			trainSet, evalSet := ds.Split(a.cfg.Data.TrainCount)

			if trainSet == nil {
				return fmt.Errorf("train_count %d leaves no training samples", a.cfg.Data.TrainCount)
			}

			if evalSet != nil && a.cfg.Data.EvalCount > 0 {
				evalSet = evalSet.Head(a.cfg.Data.EvalCount)
			}

			evalLen := 0

			if evalSet != nil {
				evalLen = evalSet.Len()
			}

			a.log.Infof("training on %d samples, evaluating on %d, %d parameters",
				trainSet.Len(), evalLen, c.Params().Count())

			trainer, err := train.NewTrainer(c, a.cfg.Train, a.log)

			if err != nil {
				return err
			}

			m, err := trainer.Fit(ctx, trainSet, evalSet)

			if err != nil {
				return err
			}

			a.log.Infof("finished training, loss=%f accuracy=%f", m.Loss, m.Accuracy)

			return nil
		},
	}

	cmd.Flags().StringVar(&resume, "resume", "", "checkpoint to continue training from")
	cmd.Flags().IntVar(&epochs, "epochs", 0, "override the configured number of epochs")

	return cmd
}

// classifier returns a new classifier or one loaded from a checkpoint, in
// which case the model config is replaced by the checkpoint's
func (a *app) classifier(checkpoint string) (*model.Classifier, error) {

	if checkpoint == "" {
		return model.New(a.cfg.Model)
	}

	c, err := model.LoadFile(checkpoint)

	if err != nil {
		return nil, err
	}

	// the checkpoint carries its own topology, inputs are sized from it
	a.cfg.Model = c.Config()

	a.log.Infof("loaded checkpoint %s", checkpoint)

	return c, nil
}

// fetchData copies the data set from object storage when a url is set
func (a *app) fetchData(ctx context.Context) error {

	if a.cfg.Data.URL == "" {
		return nil
	}

	copier, err := storage.NewS3Copier(ctx, a.cfg.Storage)

	if err != nil {
		return err
	}

	n, err := copier.CopyPrefix(ctx, a.cfg.Data.URL, a.cfg.Data.ImageDir)

	if err != nil {
		return err
	}

	a.log.Infof("copied %d files from %s to %s", n, a.cfg.Data.URL, a.cfg.Data.ImageDir)

	return nil
}

// loadDataset reads the manifest and decodes every image it names
func (a *app) loadDataset(ctx context.Context) (*train.Dataset, error) {

	samples, err := platenet.LoadManifest(a.cfg.Data.Manifest)

	if err != nil {
		return nil, err
	}

	loader, err := a.newImageLoader(preprocess.DefaultParams())

	if err != nil {
		return nil, err
	}

	a.log.Infof("loading %d samples from %s", len(samples), a.cfg.Data.ImageDir)

	return train.LoadDataset(ctx, samples, a.cfg.Data.ImageDir, loader, a.cfg.Data.Workers)
}
