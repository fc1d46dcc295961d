package main

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadsignal/internal/classify"
	"github.com/sells-group/leadsignal/internal/model"
)

var (
	analyzeText string
	analyzeSize string
)

// analysisReport is the dry-run view of one signal text.
type analysisReport struct {
	model.AnalysisResult
	SizeClass   model.SizeClass `json:"size_class"`
	LeadScore   float64         `json:"lead_score"`
	UrgencyDays int             `json:"urgency_days"`
	NextAction  string          `json:"next_action"`
	Locations   []string        `json:"detected_locations"`
}

func buildReport(engine *classify.Engine, text string, size model.SizeClass) analysisReport {
	a := engine.Analyze(text)
	return analysisReport{
		AnalysisResult: a,
		SizeClass:      size,
		LeadScore:      classify.LeadScore(a, size),
		UrgencyDays:    model.UrgencyDays(a.Urgency),
		NextAction:     model.NextAction(a.Intent),
		Locations:      classify.ExtractLocations(text),
	}
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Classify a signal text without touching the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}
		if strings.TrimSpace(analyzeText) == "" {
			return eris.New("--text must not be empty")
		}

		engine, err := initEngine(cfg)
		if err != nil {
			return err
		}

		size := model.SizeClass(analyzeSize)
		if size == "" {
			size = model.SizeClass(cfg.Pipeline.DefaultCompanySize)
		}
		return writeReport(cmd.OutOrStdout(), buildReport(engine, analyzeText, size))
	},
}

func writeReport(w io.Writer, r analysisReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return eris.Wrap(err, "encode analysis")
	}
	return nil
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeText, "text", "", "signal text to classify (required)")
	analyzeCmd.Flags().StringVar(&analyzeSize, "size", "", "company size class (default from config)")
	_ = analyzeCmd.MarkFlagRequired("text")
	rootCmd.AddCommand(analyzeCmd)
}
