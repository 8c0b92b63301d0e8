package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"assist-bot/api/internal/evidence"
)

var (
	scoreType     string
	scoreIncident string
)

var scoreCmd = &cobra.Command{
	Use:   "score [file]",
	Short: "Score a local file as evidence of the given document type",
	Args:  cobra.ExactArgs(1),
	RunE:  runScore,
}

func init() {
	scoreCmd.Flags().StringVarP(&scoreType, "type", "t", "", "document type, e.g. PHOTO_VEHICLE")
	scoreCmd.Flags().StringVar(&scoreIncident, "incident", "MAWDY_ROADSIDE", "incident type of the request")
	_ = scoreCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	tables, err := loadTables()
	if err != nil {
		return err
	}
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	it := &evidence.Item{
		ID:           filepath.Base(path),
		DocumentType: evidence.DocumentType(strings.ToUpper(strings.TrimSpace(scoreType))),
		FileName:     filepath.Base(path),
		Extension:    filepath.Ext(path),
		Size:         int64(len(data)),
		Status:       evidence.StatusSubmitted,
		Content:      data,
	}
	req := &evidence.Request{ID: "local", IncidentType: scoreIncident}
	orch := evidence.NewOrchestrator(tables, nil, nil, nil)
	out, err := orch.ReviewPhoto(context.Background(), req, it)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cmd, out)
	}

	cmd.Printf("flow: %s (%s match)\n", out.Flow.Type, out.Flow.Match)
	if out.Result == nil {
		cmd.Println(warnColor.Sprint("photos are not accepted: ") + out.Directive.Reason)
		cmd.Printf("next: submit form %s\n", out.Directive.FormType)
		return nil
	}
	cmd.Printf("status: %s  confidence: %.2f\n", statusColor(out.Status).Sprint(out.Status), out.Result.Confidence)
	printIssues(cmd, out.Result.Issues)
	if out.Directive.Kind != evidence.DirectiveNone {
		cmd.Printf("next: %s %s\n", out.Directive.Kind, out.Directive.FormType)
	}
	return nil
}

func jsonIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
