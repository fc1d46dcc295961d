package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadsignal/internal/pipeline"
)

var (
	processFile string
	processOut  string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run a batch of signals through the lead pipeline",
	Long:  "Reads signals from a JSON or CSV file, processes them in order and prints the batch summary as JSON.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		signals, err := readSignals(processFile)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "process")
		if err != nil {
			return err
		}
		defer env.Close()

		result := env.Pipeline.ProcessMany(ctx, signals)

		zap.L().Info("batch complete",
			zap.String("run_id", result.RunID),
			zap.Int("processed", result.Processed),
			zap.Int("created", result.Created),
			zap.Int("skipped", result.Skipped),
			zap.Int("errors", result.Errors),
		)

		out := cmd.OutOrStdout()
		if processOut != "" {
			f, err := os.Create(processOut)
			if err != nil {
				return eris.Wrapf(err, "create %s", processOut)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		return writeBatchResult(out, result)
	},
}

func writeBatchResult(w io.Writer, result pipeline.BatchResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return eris.Wrap(err, "encode batch result")
	}
	return nil
}

func init() {
	processCmd.Flags().StringVar(&processFile, "file", "", "path to signals file, .json or .csv (required)")
	processCmd.Flags().StringVar(&processOut, "out", "", "write the batch summary here instead of stdout")
	_ = processCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(processCmd)
}
