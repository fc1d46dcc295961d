package main

import (
	"context"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadsignal/internal/store"
)

var officersFile string

var officersCmd = &cobra.Command{
	Use:   "officers",
	Short: "Manage the sales officer roster",
}

var officersImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Upsert officers from a roster CSV, keyed by email",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("officers"); err != nil {
			return err
		}

		officers, err := readOfficers(officersFile)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.UpsertOfficers(ctx, officers)
		if err != nil {
			return eris.Wrap(err, "import officers")
		}

		zap.L().Info("officer import complete",
			zap.Int64("upserted", n),
			zap.String("file", officersFile),
		)
		return nil
	},
}

var officersListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the officer roster as CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("officers"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return writeRoster(ctx, cmd.OutOrStdout(), st)
	},
}

func writeRoster(ctx context.Context, w io.Writer, st store.Store) error {
	officers, err := st.ListOfficers(ctx)
	if err != nil {
		return eris.Wrap(err, "list officers")
	}
	data, err := csvutil.Marshal(officers)
	if err != nil {
		return eris.Wrap(err, "encode roster")
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "write roster")
	}
	return nil
}

func init() {
	officersImportCmd.Flags().StringVar(&officersFile, "file", "", "path to roster CSV (required)")
	_ = officersImportCmd.MarkFlagRequired("file")
	officersCmd.AddCommand(officersImportCmd, officersListCmd)
	rootCmd.AddCommand(officersCmd)
}
