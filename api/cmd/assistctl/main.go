// Command assistctl: офлайн-проверка документов и форм теми же правилами, что и сервис.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"assist-bot/api/internal/config"
	"assist-bot/api/internal/evidence"
)

var (
	policyFile string
	jsonOut    bool
)

var rootCmd = &cobra.Command{
	Use:           "assistctl",
	Short:         "Check assistance evidence and forms offline",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&policyFile, "policy", os.Getenv("POLICY_FILE"), "YAML file overriding built-in tables")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")
}

func loadTables() (*evidence.Tables, error) {
	return config.LoadPolicy(policyFile)
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	badColor  = color.New(color.FgRed, color.Bold)
)

func statusColor(s evidence.ReviewStatus) *color.Color {
	switch s {
	case evidence.StatusApproved:
		return okColor
	case evidence.StatusRejected, evidence.StatusNeedsInfo:
		return badColor
	}
	return warnColor
}

func main() {
	rootCmd.SetOut(os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		badColor.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func printIssues(cmd *cobra.Command, issues []evidence.Issue) {
	for _, is := range issues {
		c := warnColor
		if is.Severity == evidence.SeverityError {
			c = badColor
		}
		cmd.Println("  " + c.Sprintf("[%s]", is.Code) + " " + is.Message)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := jsonIndent(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
