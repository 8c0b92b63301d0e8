package main

import (
	"strings"

	"github.com/spf13/cobra"

	"assist-bot/api/internal/evidence"
)

var flowCmd = &cobra.Command{
	Use:   "flow [incident_type]",
	Short: "Show which fallback chain an incident type resolves to",
	Args:  cobra.ExactArgs(1),
	RunE:  runFlow,
}

func init() {
	rootCmd.AddCommand(flowCmd)
}

func runFlow(cmd *cobra.Command, args []string) error {
	tables, err := loadTables()
	if err != nil {
		return err
	}
	res := tables.ResolveFlow(args[0])
	if jsonOut {
		return printJSON(cmd, res)
	}

	chain := make([]string, 0, len(res.Config.Chain))
	for _, s := range res.Config.Chain {
		chain = append(chain, string(s))
	}
	cmd.Printf("assistance: %s (%s match)\n", okColor.Sprint(res.Type), res.Match)
	if res.Ambiguous {
		cmd.Println(warnColor.Sprint("ambiguous: incident type mentions both HEALTH and MAWDY"))
	}
	cmd.Printf("photos allowed: %v\n", res.Config.AllowPhotos)
	cmd.Printf("chain: %s\n", strings.Join(chain, " -> "))
	cmd.Printf("form: %s\n", res.Config.FormType)
	return nil
}

var manifestCmd = &cobra.Command{
	Use:   "manifest [assistance_type]",
	Short: "List required and optional documents for an assistance type",
	Args:  cobra.ExactArgs(1),
	RunE:  runManifest,
}

func init() {
	rootCmd.AddCommand(manifestCmd)
}

func runManifest(cmd *cobra.Command, args []string) error {
	tables, err := loadTables()
	if err != nil {
		return err
	}
	cat := args[0]
	at := tables.AssistanceTypeOf(&evidence.Request{ServiceCategory: &cat})
	entries := tables.Manifest[at]
	if jsonOut {
		return printJSON(cmd, entries)
	}

	cmd.Printf("%s:\n", at)
	for _, e := range entries {
		mark := warnColor.Sprint("optional")
		if e.Required {
			mark = badColor.Sprint("required")
		}
		r := tables.Rule(e.Type)
		cmd.Printf("  %-22s %s  formats=%s max=%.0fMB\n", e.Type, mark, strings.Join(r.AllowedFormats, ","), r.MaxSizeMB)
	}
	return nil
}
