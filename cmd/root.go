// Package cmd provides weft's command-line interface.
//
// Configuration is read from, in order of precedence:
//  1. command-line flags (--config, --port, --log-level)
//  2. WEFT_CONFIG_FILE, naming the config file to load
//  3. WEFT_<SECTION>_<KEY> environment variables (WEFT_SERVER_PORT, ...)
//  4. .weft.yml in the working directory
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/weft/internal/config"
	"github.com/conneroisu/weft/internal/logging"
)

var cfgFile string

// rootCmd runs the full build when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "Static-site asset build pipeline",
	Long: `weft compiles page templates to HTML, bundles stylesheets, transpiles
scripts, optimizes images, assembles an SVG sprite and copies fonts into a
build root, and serves that root with live reload while you work.

Quick Start:
  weft                 Clean and build everything
  weft watch           Build, serve on :8080 and rebuild on change
  weft css             Run a single task
  weft list            Show every task with its sources and output`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          runBuild,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .weft.yml, can also use WEFT_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig points viper at the config file and the WEFT_ environment.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("WEFT_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".weft")
	}

	viper.SetEnvPrefix("WEFT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := config.BindEnvironment(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: cannot bind environment:", err)
	}

	// A missing file is fine; defaults apply.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// appFS is the filesystem commands build against.
var appFS = afero.NewOsFs()

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) logging.Logger {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
}
