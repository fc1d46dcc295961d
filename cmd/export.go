package main

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/leadsignal/internal/model"
	"github.com/sells-group/leadsignal/internal/store"
)

var (
	exportOut       string
	exportStatus    string
	exportTerritory string
	exportMinScore  float64
	exportLimit     int
)

var leadColumns = []string{
	"lead_id", "company", "industry", "territory_state", "officer_id",
	"lead_score", "intent", "urgency_days", "products", "keywords",
	"signal_type", "signal_url", "status", "next_action", "created_at",
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export leads to an xlsx workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("export"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter := store.LeadFilter{
			Status:         model.LeadStatus(exportStatus),
			TerritoryState: exportTerritory,
			MinScore:       exportMinScore,
			Limit:          exportLimit,
		}
		n, err := exportLeads(ctx, st, filter, exportOut)
		if err != nil {
			return err
		}

		zap.L().Info("lead export complete",
			zap.Int("leads", n),
			zap.String("out", exportOut),
		)
		return nil
	},
}

// exportLeads writes matching leads to an xlsx file at path and returns the
// number of rows written.
func exportLeads(ctx context.Context, st store.Store, filter store.LeadFilter, path string) (int, error) {
	leads, err := st.ListLeads(ctx, filter)
	if err != nil {
		return 0, eris.Wrap(err, "export: list leads")
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Leads")
	if err != nil {
		return 0, eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range leadColumns {
		header.AddCell().SetString(col)
	}

	names := make(map[int64]*model.Company)
	for i := range leads {
		l := &leads[i]
		co, ok := names[l.CompanyID]
		if !ok {
			co, err = st.GetCompany(ctx, l.CompanyID)
			if err != nil {
				return 0, eris.Wrapf(err, "export: company %d", l.CompanyID)
			}
			names[l.CompanyID] = co
		}
		writeLeadRow(sheet.AddRow(), l, co)
	}

	if err := file.Save(path); err != nil {
		return 0, eris.Wrapf(err, "export: save %s", path)
	}
	return len(leads), nil
}

func writeLeadRow(row *xlsx.Row, l *model.Lead, co *model.Company) {
	var company, industry string
	if co != nil {
		company, industry = co.Name, co.Industry
	}
	products := make([]string, 0, len(l.Recommendations))
	for _, p := range l.Recommendations {
		products = append(products, p.Product)
	}

	row.AddCell().SetInt64(l.ID)
	row.AddCell().SetString(company)
	row.AddCell().SetString(industry)
	row.AddCell().SetString(l.TerritoryState)
	officer := row.AddCell()
	if l.AssignedOfficerID != nil {
		officer.SetInt64(*l.AssignedOfficerID)
	}
	row.AddCell().SetFloat(l.LeadScore)
	row.AddCell().SetString(string(l.Intent))
	row.AddCell().SetInt(l.UrgencyDays)
	row.AddCell().SetString(strings.Join(products, ", "))
	row.AddCell().SetString(strings.Join(l.MatchedKeywords, ", "))
	row.AddCell().SetString(l.SignalType)
	row.AddCell().SetString(l.SignalURL)
	row.AddCell().SetString(string(l.Status))
	row.AddCell().SetString(l.NextAction)
	row.AddCell().SetString(l.CreatedAt.UTC().Format(time.RFC3339))
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "leads.xlsx", "output workbook path")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "only leads with this status")
	exportCmd.Flags().StringVar(&exportTerritory, "territory", "", "only leads routed to this state")
	exportCmd.Flags().Float64Var(&exportMinScore, "min-score", 0, "only leads scoring at least this")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "maximum leads to export (0 = all)")
	rootCmd.AddCommand(exportCmd)
}
