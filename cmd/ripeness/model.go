package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Brownie44l1/ripeness-api/internal/engine"
	"github.com/Brownie44l1/ripeness-api/internal/filestorage"
	"github.com/Brownie44l1/ripeness-api/internal/logger"
	"github.com/Brownie44l1/ripeness-api/internal/model"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Manage the model artifact",
}

var modelPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download the model and its label map from the configured S3 bucket",
	Args:  cobra.NoArgs,
	RunE:  runModelPull,
}

var modelInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Load the model and print its input shape and classes",
	Args:  cobra.NoArgs,
	RunE:  runModelInfo,
}

func init() {
	modelCmd.AddCommand(modelPullCmd, modelInfoCmd)
}

func runModelPull(cmd *cobra.Command, _ []string) error {
	if cfg.S3.Bucket == "" {
		return errors.New("s3.bucket_name is not set")
	}

	ctx := cmd.Context()
	storage, err := filestorage.NewS3FileStorage(ctx, cfg.S3)
	if err != nil {
		return err
	}

	progress := mpb.New(
		mpb.WithOutput(os.Stderr),
		mpb.WithWidth(60),
		mpb.WithRefreshRate(180*time.Millisecond),
	)

	downloads := []struct{ key, dest string }{
		{cfg.S3.ModelKey, cfg.Model.Path},
		{cfg.S3.LabelMapKey, cfg.Model.LabelMap},
	}
	for _, d := range downloads {
		if err := download(ctx, storage, progress, d.key, d.dest); err != nil {
			progress.Wait()
			return err
		}
	}
	progress.Wait()
	return nil
}

// download writes key to a temporary file next to dest and renames it into
// place once complete.
func download(ctx context.Context, storage filestorage.FileStorage, progress *mpb.Progress, key, dest string) error {
	body, size, err := storage.Open(ctx, key)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), os.ModePerm); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	total := size
	if total < 0 {
		total = 0
	}
	bar := progress.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(filepath.Base(dest), decor.WC{W: 30, C: decor.DidentRight}),
			decor.CountersKibiByte("% .2f / % .2f"),
		),
		mpb.AppendDecorators(
			decor.EwmaETA(decor.ET_STYLE_GO, 90),
			decor.Name(" ] "),
			decor.EwmaSpeed(decor.UnitKiB, "% .2f", 60),
		),
	)

	reader := bar.ProxyReader(body)
	defer reader.Close()

	if _, err := io.Copy(tmp, reader); err != nil {
		bar.Abort(false)
		tmp.Close()
		return fmt.Errorf("failed to download %s: %w", key, err)
	}
	if size <= 0 {
		bar.SetTotal(-1, true)
	}

	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

func runModelInfo(cmd *cobra.Command, _ []string) error {
	l, err := logger.New(cfg.Environment)
	if err != nil {
		return err
	}
	cat, err := loadCatalog()
	if err != nil {
		return err
	}

	modelCfg := model.Config{Path: cfg.Model.Path, LabelMapPath: cfg.Model.LabelMap, Runtime: cfg.Model.Runtime}
	loader := model.NewLoader(modelCfg, engine.Runtimes(cfg.Model, l), cat.Keys(), l)
	m, err := loader.Load()
	if err != nil {
		return err
	}
	defer m.Close()

	shape := m.InputShape()
	info := model.Metadata{
		InputShape:  shape,
		OutputShape: []int64{1, int64(m.OutputSize())},
		Classes:     m.Classes,
	}
	if len(shape) == 4 {
		info.ImageSize = int(shape[1])
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}
