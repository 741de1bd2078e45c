package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/weft/internal/build"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l", "ls"},
	Short:   "List every task with its sources and output",
	Long: `List every runnable task. File tasks show their source globs and output
directory; composed tasks show their members in run order.

Examples:
  weft list
  weft list -f json
  weft list --format yaml`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var listFlags OutputFlags

func init() {
	rootCmd.AddCommand(listCmd)
	addOutputFlags(listCmd.Flags(), &listFlags)
}

// taskListing is the serialized form of one task.
type taskListing struct {
	Name    string   `json:"name" yaml:"name"`
	Sources []string `json:"sources,omitempty" yaml:"sources,omitempty"`
	Output  string   `json:"output,omitempty" yaml:"output,omitempty"`
	Members []string `json:"members,omitempty" yaml:"members,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	if err := listFlags.validate(); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	runner, err := build.NewRunner(cfg, appFS, nil)
	if err != nil {
		return err
	}

	infos := runner.Describe()
	listings := make([]taskListing, 0, len(infos))
	for _, info := range infos {
		listings = append(listings, taskListing{
			Name:    info.Name,
			Sources: info.Sources,
			Output:  info.Dest,
			Members: info.Members,
		})
	}

	out := cmd.OutOrStdout()
	switch listFlags.Format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(listings)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(listings)
	}

	title := cases.Title(language.English)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tNAME\tSOURCES\tOUTPUT")
	for _, l := range listings {
		sources := strings.Join(l.Sources, ", ")
		if len(l.Members) > 0 {
			sources = strings.Join(l.Members, " -> ")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", title.String(strings.ReplaceAll(l.Name, "-", " ")), l.Name, sources, l.Output)
	}
	return w.Flush()
}
