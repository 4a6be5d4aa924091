package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/conneroisu/contactform/internal/config"
	"github.com/conneroisu/contactform/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Run the browser preview of the contact form",
	Long: `Serve the contact form page with a JSON API and a websocket that streams
every change of the form state. When a config file is in use it is watched
and a changed endpoint applies to the next submit without a restart.

Examples:
  contactform serve
  contactform serve --port 3000
  contactform serve --host 0.0.0.0 --endpoint http://localhost:9000/contact/`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", config.DefaultPort, "Port to serve on")
	serveCmd.Flags().String("host", config.DefaultHost, "Host to bind to")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if path := viper.ConfigFileUsed(); path != "" {
		if err := srv.WatchConfig(ctx, path, reloadConfig); err != nil {
			logger.Warn(ctx, err, "Config file will not be reloaded", "path", path)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Contact form preview at http://%s\n", cfg.Server.Addr())

	if err := srv.Start(ctx); err != nil {
		return err
	}
	if ctx.Err() == context.Canceled {
		fmt.Fprintln(cmd.OutOrStdout(), "Shut down")
	}
	return nil
}

func reloadConfig() (*config.Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}
	return config.Load()
}
