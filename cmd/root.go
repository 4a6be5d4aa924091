// Package cmd provides the contactform command-line interface.
//
// Configuration is resolved by Viper with this precedence, highest first:
//
//  1. Command-line flags (--endpoint, --port, --log-level, ...)
//  2. CONTACTFORM_* environment variables, e.g. CONTACTFORM_SERVER_PORT.
//     A .env file in the working directory is loaded into the environment
//     first and never overrides variables that are already set.
//  3. The config file: --config, else CONTACTFORM_CONFIG_FILE, else
//     .contactform.yml in the working directory.
//  4. Built-in defaults.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/conneroisu/contactform/internal/config"
	"github.com/conneroisu/contactform/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "contactform",
	Short: "Validate and send contact form submissions",
	Long: `contactform collects a name, email, phone number and message, validates them
and posts them as JSON to the contact endpoint.

Commands:
  contactform submit        Submit a form given as flags
  contactform validate      Check a form without sending it
  contactform interactive   Fill the form in at a prompt
  contactform serve         Run the browser preview of the form`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .contactform.yml, can also use CONTACTFORM_CONFIG_FILE env var)")
	flags.String("endpoint", "", "URL the form is posted to")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")

	_ = viper.BindPFlag("endpoint", flags.Lookup("endpoint"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", flags.Lookup("log-format"))
}

func initConfig() {
	// A missing .env file is normal.
	_ = godotenv.Load()

	switch {
	case cfgFile != "":
		viper.SetConfigFile(cfgFile)
	case os.Getenv(config.EnvPrefix+"_CONFIG_FILE") != "":
		viper.SetConfigFile(os.Getenv(config.EnvPrefix + "_CONFIG_FILE"))
	default:
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(config.DefaultConfigName)
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadRuntime resolves the configuration and builds the logger every
// command shares.
func loadRuntime() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	lc := cfg.LoggerConfig()
	lc.Output = os.Stderr
	return cfg, logging.NewLogger(lc), nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
