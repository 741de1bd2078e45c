package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/conneroisu/weft/internal/config"
)

// ServerFlags override the server section for one invocation.
type ServerFlags struct {
	Port int
	Host string
}

// OutputFlags select how listings are printed.
type OutputFlags struct {
	Format string
}

var outputFormats = []string{"table", "json", "yaml"}

func addServerFlags(fs *pflag.FlagSet, flags *ServerFlags) {
	fs.IntVarP(&flags.Port, "port", "p", 8080, "Port to serve on (overrides server.port)")
	fs.StringVar(&flags.Host, "host", "localhost", "Host to bind to (overrides server.host)")
}

func addOutputFlags(fs *pflag.FlagSet, flags *OutputFlags) {
	fs.StringVarP(&flags.Format, "format", "f", "table", "Output format ("+strings.Join(outputFormats, "|")+")")
}

// apply copies every flag the user actually set onto cfg.
func (f *ServerFlags) apply(fs *pflag.FlagSet, cfg *config.Config) error {
	if fs.Changed("port") {
		if f.Port < 0 || f.Port > 65535 {
			return fmt.Errorf("invalid port %d (must be 0-65535)", f.Port)
		}
		cfg.Server.Port = f.Port
	}
	if fs.Changed("host") {
		cfg.Server.Host = f.Host
	}
	return nil
}

func (f *OutputFlags) validate() error {
	for _, format := range outputFormats {
		if f.Format == format {
			return nil
		}
	}
	return fmt.Errorf("unsupported format %q (supported: %s)", f.Format, strings.Join(outputFormats, ", "))
}

// resetFlags restores a command's flags to their defaults. Tests run the
// same global commands repeatedly.
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}
