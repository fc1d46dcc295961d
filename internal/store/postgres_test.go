package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadsignal/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return newPostgresStore(mock), mock
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

var companyCols = []string{"id", "name", "normalized_name", "industry", "city", "state", "size_class", "created_at"}

var officerCols = []string{"id", "name", "email", "phone", "territory_state", "active", "notifications_enabled", "created_at"}

func TestPostgresStore_FindCompanyByName_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, normalized_name, .* FROM companies WHERE name = \$1`).
		WithArgs("Nobody Ltd").
		WillReturnError(pgx.ErrNoRows)

	c, err := s.FindCompanyByName(context.Background(), "Nobody Ltd")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindCompanyByName(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM companies WHERE name = \$1`).
		WithArgs("Tata Steel Limited").
		WillReturnRows(pgxmock.NewRows(companyCols).
			AddRow(int64(7), "Tata Steel Limited", "tatasteellimited", "steel", "Jamshedpur", "Jharkhand", "enterprise", now))

	c, err := s.FindCompanyByName(context.Background(), "Tata Steel Limited")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, int64(7), c.ID)
	assert.Equal(t, model.SizeEnterprise, c.SizeClass)
	assert.Equal(t, "Jamshedpur, Jharkhand", c.Location())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindCompanyByName_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM companies WHERE name = \$1`).
		WithArgs("Broken").
		WillReturnError(errors.New("connection reset"))

	_, err := s.FindCompanyByName(context.Background(), "Broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "find company by name")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateCompany(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO companies .* RETURNING id, created_at`).
		WithArgs("Adani Power Ltd", "adanipowerltd", "power", "Mundra", "Gujarat", "").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), now))

	c := &model.Company{Name: "Adani Power Ltd", NormalizedName: "adanipowerltd", Industry: "power", City: "Mundra", State: "Gujarat"}
	require.NoError(t, s.CreateCompany(context.Background(), c))
	assert.Equal(t, int64(42), c.ID)
	assert.Equal(t, now, c.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListCompanies(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM companies ORDER BY id`).
		WillReturnRows(pgxmock.NewRows(companyCols).
			AddRow(int64(1), "A Ltd", "altd", "", "", "", "", now).
			AddRow(int64(2), "B Ltd", "bltd", "", "", "", "", now))

	out, err := s.ListCompanies(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "B Ltd", out[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TouchSource_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE sources SET last_seen_at = \$1 WHERE id = \$2`).
		WithArgs(pgxmock.AnyArg(), int64(99)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.TouchSource(context.Background(), 99, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateSource(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO sources .* RETURNING id, created_at`).
		WithArgs(anyArgs(6)...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), now))

	src := &model.Source{Domain: "et.com", URL: "https://et.com", Category: model.SourceCategoryUnknown, TrustScore: model.DefaultTrustScore, Active: true}
	require.NoError(t, s.CreateSource(context.Background(), src))
	assert.Equal(t, int64(3), src.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindActiveOfficerByTerritory(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM officers WHERE territory_state = \$1 AND active ORDER BY id LIMIT 1`).
		WithArgs("Gujarat").
		WillReturnRows(pgxmock.NewRows(officerCols).
			AddRow(int64(5), "Asha", "asha@example.com", "", "Gujarat", true, true, now))

	o, err := s.FindActiveOfficerByTerritory(context.Background(), "Gujarat")
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, "Asha", o.Name)
	assert.True(t, o.NotificationsEnabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindAnyActiveOfficer_None(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM officers WHERE active ORDER BY id LIMIT 1`).
		WillReturnError(pgx.ErrNoRows)

	o, err := s.FindAnyActiveOfficer(context.Background())
	require.NoError(t, err)
	assert.Nil(t, o)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InTx_Commit(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO companies`).
		WithArgs(anyArgs(6)...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), now))
	mock.ExpectCommit()

	err := s.InTx(context.Background(), func(repo Repository) error {
		return repo.CreateCompany(context.Background(), &model.Company{Name: "Tx Co", NormalizedName: "txco"})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InTx_Rollback(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.InTx(context.Background(), func(Repository) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InTx_BeginError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	called := false
	err := s.InTx(context.Background(), func(Repository) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.Contains(t, err.Error(), "begin tx")
}

func TestPostgresStore_CreateLead(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO leads .* RETURNING id, created_at`).
		WithArgs(anyArgs(18)...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), now))

	lead := &model.Lead{
		CompanyID: 1, SourceID: 2, SignalText: "furnace oil tender", SignalType: "tender",
		MatchedKeywords: []string{"furnace oil"},
		Recommendations: []model.ProductMatch{{Product: "FO", Confidence: 1, Reason: "Mentioned 'furnace oil'"}},
		LeadScore:       76, Intent: model.IntentHigh, UrgencyDays: 14, Status: model.LeadStatusNew,
	}
	require.NoError(t, s.CreateLead(context.Background(), lead))
	assert.Equal(t, int64(11), lead.ID)
	assert.False(t, lead.SignalDate.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLead_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM leads WHERE id = \$1`).
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	l, err := s.GetLead(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, l)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListLeads_Filter(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	officer := int64(5)

	cols := []string{
		"id", "company_id", "source_id", "signal_text", "signal_url", "signal_type", "signal_date",
		"detected_keywords", "detected_equipment", "detected_locations", "recommended_products",
		"lead_score", "intent_strength", "urgency_days", "confidence", "assigned_officer_id",
		"territory_state", "status", "next_action", "created_at",
	}
	mock.ExpectQuery(`FROM leads WHERE 1=1 AND status = \$1 AND lead_score >= \$2 ORDER BY id LIMIT 10`).
		WithArgs("new", 50.0).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			int64(1), int64(1), int64(2), "furnace oil tender", "", "tender", now,
			[]byte(`["furnace oil"]`), []byte(`[]`), []byte(`["Gujarat"]`),
			[]byte(`[{"product":"FO","confidence":1,"reason":"Mentioned 'furnace oil'"}]`),
			76.0, "high", 14, 1.0, &officer,
			"Gujarat", "new", model.NextActionHigh, now,
		))

	out, err := s.ListLeads(context.Background(), LeadFilter{Status: model.LeadStatusNew, MinScore: 50, Limit: 10})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"furnace oil"}, out[0].MatchedKeywords)
	assert.Equal(t, "FO", out[0].Recommendations[0].Product)
	assert.Equal(t, model.IntentHigh, out[0].Intent)
	require.NotNil(t, out[0].AssignedOfficerID)
	assert.Equal(t, int64(5), *out[0].AssignedOfficerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertOfficers(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_stage_officers"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_officers"},
		[]string{"name", "email", "phone", "territory_state", "active", "notifications_enabled"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "officers"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := s.UpsertOfficers(context.Background(), []model.Officer{
		{Name: "Asha", Email: "asha@example.com", TerritoryState: "Gujarat", Active: true},
		{Name: "Ravi", Email: "ravi@example.com", TerritoryState: "Kerala", Active: true},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs(migrationLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(`SELECT filename FROM schema_migrations`).
		WillReturnRows(pgxmock.NewRows([]string{"filename"}).AddRow("001_core.sql"))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS leads`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).
		WithArgs("002_leads.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_LockError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs(migrationLockID).
		WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration lock")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_FailedFileRollsBackAndReleasesLock(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs(migrationLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(`SELECT filename FROM schema_migrations`).
		WillReturnRows(pgxmock.NewRows([]string{"filename"}))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS companies`).
		WillReturnError(errors.New("syntax error at or near"))
	// The xact lock is released by this rollback on the same session.
	mock.ExpectRollback()

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply migration 001_core.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_BeginError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin migration tx")
	assert.NoError(t, mock.ExpectationsWereMet())
}
