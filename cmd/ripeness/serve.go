package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/Brownie44l1/ripeness-api/internal/app"
	"github.com/Brownie44l1/ripeness-api/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	flags := serveCmd.Flags()

	flags.Int("port", 8080, "Port to run the server on")
	flags.String("host", "0.0.0.0", "Host to run the server on")
	flags.String("assets-dir", "", "Directory served under /assets")
	flags.Bool("history", false, "Record every classification")

	viper.BindPFlag("port", flags.Lookup("port"))
	viper.BindPFlag("host", flags.Lookup("host"))
	viper.BindPFlag("assets_dir", flags.Lookup("assets-dir"))
	viper.BindPFlag("history.enabled", flags.Lookup("history"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	var opts []app.OptionFunc
	if cfg.History.Enabled {
		opts = append(opts, app.WithFileStorage(), app.WithHistory())
	}

	a, err := newApp(opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx, a)
}
