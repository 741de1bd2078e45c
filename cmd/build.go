package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/weft/internal/build"
	"github.com/conneroisu/weft/internal/services"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Clean the build root and run every task",
	Long: `Remove everything under the build root, then run every asset task in
parallel. A task that fails does not stop the others; the command exits
non-zero if any task failed.

Examples:
  weft build
  weft build --log-level debug`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

// taskDescriptions are the per-task subcommands.
var taskDescriptions = []struct {
	name  string
	short string
}{
	{build.TaskHTML, "Render page templates to HTML"},
	{build.TaskCSS, "Compile vendor stylesheets, then site stylesheets"},
	{build.TaskVendorCSS, "Compile vendor stylesheets into the staging directory"},
	{build.TaskStyles, "Compile, prefix and minify site stylesheets"},
	{build.TaskFonts, "Copy fonts"},
	{build.TaskJS, "Transpile site scripts"},
	{build.TaskJSVendor, "Concatenate and minify vendor scripts"},
	{build.TaskImage, "Optimize images"},
	{build.TaskImages, "Optimize the images collection"},
	{build.TaskSprite, "Assemble the SVG sprite"},
	{build.TaskClean, "Remove everything under the build root"},
}

func init() {
	rootCmd.AddCommand(buildCmd)

	for _, task := range taskDescriptions {
		rootCmd.AddCommand(&cobra.Command{
			Use:   task.name,
			Short: task.short,
			Args:  cobra.NoArgs,
			RunE:  runTaskCommand(task.name),
		})
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	return runTask(cmd, "")
}

func runTaskCommand(name string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return runTask(cmd, name)
	}
}

func runTask(cmd *cobra.Command, name string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	svc, err := services.NewBuildService(cfg, appFS, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := svc.Build(ctx, services.BuildOptions{Task: name})
	if err != nil {
		// Details were already logged per task.
		if len(result.Failed) > 0 {
			return fmt.Errorf("%d task(s) failed: %s", len(result.Failed), strings.Join(result.Failed, ", "))
		}
		return err
	}

	label := name
	if label == "" {
		label = build.TaskBuild
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d file(s) in %s\n", label, result.Outputs, result.Duration.Round(time.Millisecond))
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
