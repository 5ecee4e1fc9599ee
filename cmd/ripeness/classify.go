package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/Brownie44l1/ripeness-api/internal/classifier"
	"github.com/gammazero/workerpool"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
	"go.uber.org/zap"
)

var classifyCmd = &cobra.Command{
	Use:   "classify FILE...",
	Short: "Classify image files and print their verdicts as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

func init() {
	flags := classifyCmd.Flags()
	flags.Int("workers", runtime.NumCPU(), "Number of files classified at once")
	flags.Bool("quiet", false, "Hide the progress bar")
}

type fileVerdict struct {
	File string `json:"file"`
	classifier.Verdict
}

func runClassify(cmd *cobra.Command, files []string) error {
	workers, _ := cmd.Flags().GetInt("workers")
	quiet, _ := cmd.Flags().GetBool("quiet")
	if workers < 1 {
		workers = 1
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var (
		progress *mpb.Progress
		bar      *mpb.Bar
	)
	if !quiet && len(files) > 1 {
		progress = mpb.New(mpb.WithOutput(os.Stderr), mpb.WithWidth(60))
		bar = progress.AddBar(int64(len(files)),
			mpb.PrependDecorators(
				decor.Name("classifying", decor.WC{W: 12, C: decor.DidentRight}),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(decor.Percentage()),
		)
	}

	results := make([]fileVerdict, len(files))
	var (
		mu     sync.Mutex
		failed int
	)

	wp := workerpool.New(workers)
	for i, file := range files {
		i, file := i, file
		wp.Submit(func() {
			v := classifyFile(a.Classifier, file)
			results[i] = fileVerdict{File: file, Verdict: v}

			if v.Status == classifier.StatusError {
				mu.Lock()
				failed++
				mu.Unlock()
				a.Logger.Debug("classification failed", zap.String("file", file), zap.Error(v.Err))
			}
			if bar != nil {
				bar.Increment()
			}
		})
	}
	wp.StopWait()
	if progress != nil {
		progress.Wait()
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be classified", failed, len(files))
	}
	return nil
}

func classifyFile(c *classifier.Classifier, path string) classifier.Verdict {
	content, err := os.ReadFile(path)
	if err != nil {
		return classifier.Verdict{Status: classifier.StatusError, Message: err.Error(), Err: err}
	}
	return c.Classify(content)
}
