package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/weft/internal/services"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w", "serve"},
	Short:   "Build, serve the build root and rebuild on change",
	Long: `Run a full build, start the development server over the build root and
re-run each task when its sources change. Connected browsers reload (or
refresh stylesheets) after every successful run and show an error overlay
when a run fails. Stops on Ctrl-C.

Examples:
  weft watch
  weft watch --port 3000
  weft watch --no-build`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var (
	watchServerFlags ServerFlags
	watchNoBuild     bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	addServerFlags(watchCmd.Flags(), &watchServerFlags)
	watchCmd.Flags().BoolVar(&watchNoBuild, "no-build", false, "Skip the initial full build")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := watchServerFlags.apply(cmd.Flags(), cfg); err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	svc, err := services.NewWatchService(cfg, appFS, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return svc.StartWatch(ctx, services.WatchOptions{SkipInitialBuild: watchNoBuild})
}
