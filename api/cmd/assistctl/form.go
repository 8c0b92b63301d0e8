package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"assist-bot/api/internal/evidence"
	"assist-bot/api/internal/forms"
)

var (
	formIncident string
	formType     string
)

var formCmd = &cobra.Command{
	Use:   "form [file.json]",
	Short: "Analyze a form submission stored as JSON",
	Long: `Reads {"form_type": "...", "fields": {...}} or a bare {"field": "value"} object
and reports the score, decision and field issues.`,
	Args: cobra.ExactArgs(1),
	RunE: runForm,
}

func init() {
	formCmd.Flags().StringVar(&formIncident, "incident", "MAWDY_ROADSIDE", "incident type of the request")
	formCmd.Flags().StringVarP(&formType, "type", "t", "", "form type; defaults to the flow's form")
	rootCmd.AddCommand(formCmd)
}

func readForm(path string) (evidence.FormSubmission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return evidence.FormSubmission{}, fmt.Errorf("read %s: %w", path, err)
	}
	var wrapped struct {
		FormType evidence.FormType `json:"form_type"`
		Fields   map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Fields != nil {
		return evidence.FormSubmission{FormType: wrapped.FormType, Fields: wrapped.Fields}, nil
	}
	var fields map[string]string
	if err := json.Unmarshal(data, &fields); err != nil {
		return evidence.FormSubmission{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return evidence.FormSubmission{Fields: fields}, nil
}

func runForm(cmd *cobra.Command, args []string) error {
	tables, err := loadTables()
	if err != nil {
		return err
	}
	f, err := readForm(args[0])
	if err != nil {
		return err
	}
	if formType != "" {
		f.FormType = evidence.FormType(strings.ToUpper(formType))
	}
	f.ID = "local"

	req := &evidence.Request{ID: "local", IncidentType: formIncident}
	orch := evidence.NewOrchestrator(tables, nil, forms.NewAnalyzer(nil), nil)
	out, err := orch.ReviewForm(context.Background(), req, &f)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cmd, out)
	}

	cmd.Printf("form: %s\n", f.FormType)
	if out.Directive.Kind == evidence.DirectiveUseForm {
		cmd.Println(badColor.Sprint("not accepted: ") + out.Directive.Reason)
		cmd.Printf("next: submit form %s\n", out.Directive.FormType)
		return nil
	}
	cmd.Printf("status: %s  score: %d/100  can submit: %v\n", statusColor(out.Status).Sprint(out.Status), out.Analysis.Score, out.Analysis.CanSubmit)
	printIssues(cmd, out.Analysis.Issues)
	if out.Directive.Kind == evidence.DirectiveEscalateAdmin {
		cmd.Println(warnColor.Sprint("escalate: ") + out.Directive.Reason)
	}
	return nil
}
