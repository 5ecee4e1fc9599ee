package main

import (
	"fmt"
	"os"

	"github.com/Brownie44l1/ripeness-api/internal/app"
	"github.com/Brownie44l1/ripeness-api/internal/config"
	"github.com/Brownie44l1/ripeness-api/internal/engine"
	"github.com/Brownie44l1/ripeness-api/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "ripeness",
	Short:         "Butternut squash ripeness classifier",
	Long:          "Classifies photos of butternut squash as unripe, half ripe or ripe and serves the classifier over HTTP.",
	SilenceUsage:  true,
	SilenceErrors: true,

	// Runs before this command and any subcommands
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(viper.GetViper(), viper.GetString("config_file"), viper.GetString("env_file"))
		return err
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pflags := rootCmd.PersistentFlags()

	pflags.String("config-file", "", "Path to the config file")
	pflags.String("env-file", "", "Path to the env file")
	pflags.String("environment", "dev", "Environment: dev, test or production")
	pflags.String("model", "", "Path to the model artifact")
	pflags.String("label-map", "", "Path to the label map side-car")
	pflags.String("runtime", "", "Model runtime: auto, tflite or onnx")
	pflags.Bool("cache", false, "Keep one model loaded for the whole process")
	pflags.Float64("threshold", 0, "Minimum confidence for an ok verdict")

	viper.BindPFlag("config_file", pflags.Lookup("config-file"))
	viper.BindPFlag("env_file", pflags.Lookup("env-file"))
	viper.BindPFlag("environment", pflags.Lookup("environment"))
	viper.BindPFlag("model.path", pflags.Lookup("model"))
	viper.BindPFlag("model.label_map", pflags.Lookup("label-map"))
	viper.BindPFlag("model.runtime", pflags.Lookup("runtime"))
	viper.BindPFlag("model.cache", pflags.Lookup("cache"))
	viper.BindPFlag("classifier.threshold", pflags.Lookup("threshold"))

	rootCmd.AddCommand(serveCmd, classifyCmd, labelsCmd, modelCmd)
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}

// newApp builds the app with every compiled-in engine registered.
func newApp(options ...app.OptionFunc) (*app.App, error) {
	l, err := logger.New(cfg.Environment)
	if err != nil {
		return nil, err
	}

	opts := []app.OptionFunc{
		app.WithLogger(l),
		app.WithRuntimes(engine.Runtimes(cfg.Model, l)),
	}
	return app.NewApp(cfg, append(opts, options...)...)
}
