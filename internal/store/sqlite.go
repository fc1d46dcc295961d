package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadsignal/internal/model"
)

// sqlQuerier is satisfied by *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteRepo implements Repository over a connection or a transaction.
type sqliteRepo struct {
	q sqlQuerier
}

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	sqliteRepo
	db *sql.DB
}

// sqlitePragmas are applied to every pooled connection through the DSN.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// sqliteDSN appends the connection pragmas to a file path or DSN. Transactions
// begin IMMEDIATE so concurrent writers queue on busy_timeout instead of
// failing when a read snapshot goes stale.
func sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(dsn)
	for _, p := range sqlitePragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	b.WriteString("&_txlock=immediate")
	return b.String()
}

// NewSQLite opens a SQLite database at the given path in WAL mode with
// foreign keys enforced on every connection.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{sqliteRepo: sqliteRepo{q: db}, db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	name            TEXT NOT NULL UNIQUE,
	normalized_name TEXT NOT NULL,
	industry        TEXT NOT NULL DEFAULT '',
	city            TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	size_class      TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sources (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	domain       TEXT NOT NULL UNIQUE,
	url          TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT 'unknown',
	trust_score  REAL NOT NULL DEFAULT 0.5,
	active       INTEGER NOT NULL DEFAULT 1,
	last_seen_at DATETIME,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS officers (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	name                  TEXT NOT NULL,
	email                 TEXT NOT NULL UNIQUE,
	phone                 TEXT NOT NULL DEFAULT '',
	territory_state       TEXT NOT NULL DEFAULT '',
	active                INTEGER NOT NULL DEFAULT 1,
	notifications_enabled INTEGER NOT NULL DEFAULT 1,
	created_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS leads (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id           INTEGER NOT NULL REFERENCES companies(id),
	source_id            INTEGER NOT NULL REFERENCES sources(id),
	signal_text          TEXT NOT NULL,
	signal_url           TEXT NOT NULL DEFAULT '',
	signal_type          TEXT NOT NULL DEFAULT 'unknown',
	signal_date          DATETIME NOT NULL,
	detected_keywords    TEXT NOT NULL DEFAULT '[]',
	detected_equipment   TEXT NOT NULL DEFAULT '[]',
	detected_locations   TEXT NOT NULL DEFAULT '[]',
	recommended_products TEXT NOT NULL DEFAULT '[]',
	lead_score           REAL NOT NULL CHECK (lead_score >= 0 AND lead_score <= 100),
	intent_strength      TEXT NOT NULL,
	urgency_days         INTEGER NOT NULL,
	confidence           REAL NOT NULL DEFAULT 0,
	assigned_officer_id  INTEGER REFERENCES officers(id),
	territory_state      TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL DEFAULT 'new',
	next_action          TEXT NOT NULL DEFAULT '',
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_companies_normalized_name ON companies(normalized_name);
CREATE INDEX IF NOT EXISTS idx_officers_territory ON officers(territory_state, active);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_company_id ON leads(company_id);
CREATE INDEX IF NOT EXISTS idx_leads_territory ON leads(territory_state);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InTx(ctx context.Context, fn func(Repository) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := fn(&sqliteRepo{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return eris.Wrapf(err, "sqlite: rollback failed: %v", rbErr)
		}
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

// --- Companies ---

const companyColumns = `id, name, normalized_name, industry, city, state, size_class, created_at`

func (r *sqliteRepo) FindCompanyByName(ctx context.Context, name string) (*model.Company, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE name = ?`, name)
	c, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, eris.Wrap(err, "sqlite: find company by name")
}

func (r *sqliteRepo) GetCompany(ctx context.Context, id int64) (*model.Company, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE id = ?`, id)
	c, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, eris.Wrapf(err, "sqlite: get company %d", id)
}

func (r *sqliteRepo) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate companies")
}

func (r *sqliteRepo) CreateCompany(ctx context.Context, c *model.Company) error {
	now := time.Now().UTC()
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO companies (name, normalized_name, industry, city, state, size_class, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.NormalizedName, c.Industry, c.City, c.State, string(c.SizeClass), now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert company %q", c.Name)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: company id")
	}
	c.ID, c.CreatedAt = id, now
	return nil
}

// --- Sources ---

const sourceColumns = `id, domain, url, category, trust_score, active, last_seen_at, created_at`

func (r *sqliteRepo) FindSourceByDomain(ctx context.Context, domain string) (*model.Source, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE domain = ?`, domain)

	var (
		s        model.Source
		lastSeen sql.NullTime
	)
	err := row.Scan(&s.ID, &s.Domain, &s.URL, &s.Category, &s.TrustScore, &s.Active, &lastSeen, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find source %s", domain)
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		s.LastSeenAt = &t
	}
	return &s, nil
}

func (r *sqliteRepo) CreateSource(ctx context.Context, s *model.Source) error {
	now := time.Now().UTC()
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO sources (domain, url, category, trust_score, active, last_seen_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.Domain, s.URL, s.Category, s.TrustScore, s.Active, s.LastSeenAt, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert source %s", s.Domain)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: source id")
	}
	s.ID, s.CreatedAt = id, now
	return nil
}

func (r *sqliteRepo) TouchSource(ctx context.Context, id int64, seenAt time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE sources SET last_seen_at = ? WHERE id = ?`, seenAt.UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: touch source %d", id)
	}
	return checkRowsAffected(res, "source", id)
}

// --- Officers ---

const officerColumns = `id, name, email, phone, territory_state, active, notifications_enabled, created_at`

func (r *sqliteRepo) FindActiveOfficerByTerritory(ctx context.Context, state string) (*model.Officer, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+officerColumns+` FROM officers WHERE territory_state = ? AND active = 1 ORDER BY id LIMIT 1`, state)
	o, err := scanOfficer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return o, eris.Wrapf(err, "sqlite: find officer for %s", state)
}

func (r *sqliteRepo) FindAnyActiveOfficer(ctx context.Context) (*model.Officer, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+officerColumns+` FROM officers WHERE active = 1 ORDER BY id LIMIT 1`)
	o, err := scanOfficer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return o, eris.Wrap(err, "sqlite: find any active officer")
}

func (r *sqliteRepo) ListOfficers(ctx context.Context) ([]model.Officer, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+officerColumns+` FROM officers ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list officers")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Officer
	for rows.Next() {
		o, err := scanOfficer(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan officer")
		}
		out = append(out, *o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate officers")
}

// UpsertOfficers inserts or updates officers keyed by e-mail in one transaction.
func (s *SQLiteStore) UpsertOfficers(ctx context.Context, officers []model.Officer) (int64, error) {
	if len(officers) == 0 {
		return 0, nil
	}
	var n int64
	err := s.InTx(ctx, func(repo Repository) error {
		q := repo.(*sqliteRepo).q
		now := time.Now().UTC()
		for _, o := range officers {
			res, err := q.ExecContext(ctx,
				`INSERT INTO officers (name, email, phone, territory_state, active, notifications_enabled, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT(email) DO UPDATE SET
					name = excluded.name,
					phone = excluded.phone,
					territory_state = excluded.territory_state,
					active = excluded.active,
					notifications_enabled = excluded.notifications_enabled`,
				o.Name, o.Email, o.Phone, o.TerritoryState, o.Active, o.NotificationsEnabled, now,
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: upsert officer %s", o.Email)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return eris.Wrap(err, "sqlite: rows affected")
			}
			n += affected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// --- Leads ---

const leadColumns = `id, company_id, source_id, signal_text, signal_url, signal_type, signal_date,
	detected_keywords, detected_equipment, detected_locations, recommended_products,
	lead_score, intent_strength, urgency_days, confidence, assigned_officer_id,
	territory_state, status, next_action, created_at`

func (r *sqliteRepo) CreateLead(ctx context.Context, l *model.Lead) error {
	enc, err := encodeLeadJSON(l)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if l.SignalDate.IsZero() {
		l.SignalDate = now
	}
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO leads (company_id, source_id, signal_text, signal_url, signal_type, signal_date,
			detected_keywords, detected_equipment, detected_locations, recommended_products,
			lead_score, intent_strength, urgency_days, confidence, assigned_officer_id,
			territory_state, status, next_action, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.CompanyID, l.SourceID, l.SignalText, l.SignalURL, l.SignalType, l.SignalDate.UTC(),
		string(enc.keywords), string(enc.equipment), string(enc.locations), string(enc.products),
		l.LeadScore, string(l.Intent), l.UrgencyDays, l.Confidence, l.AssignedOfficerID,
		l.TerritoryState, string(l.Status), l.NextAction, now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert lead")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: lead id")
	}
	l.ID, l.CreatedAt = id, now
	return nil
}

func (r *sqliteRepo) GetLead(ctx context.Context, id int64) (*model.Lead, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	l, err := scanSQLiteLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return l, eris.Wrapf(err, "sqlite: get lead %d", id)
}

func (r *sqliteRepo) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.TerritoryState != "" {
		query += ` AND territory_state = ?`
		args = append(args, filter.TerritoryState)
	}
	if filter.MinScore > 0 {
		query += ` AND lead_score >= ?`
		args = append(args, filter.MinScore)
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET %d`, filter.Offset)
		}
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Lead
	for rows.Next() {
		l, err := scanSQLiteLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		out = append(out, *l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate leads")
}

// helpers

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %d", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCompany(row scannable) (*model.Company, error) {
	var c model.Company
	var size string
	if err := row.Scan(&c.ID, &c.Name, &c.NormalizedName, &c.Industry, &c.City, &c.State, &size, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.SizeClass = model.SizeClass(size)
	return &c, nil
}

func scanOfficer(row scannable) (*model.Officer, error) {
	var o model.Officer
	if err := row.Scan(&o.ID, &o.Name, &o.Email, &o.Phone, &o.TerritoryState, &o.Active, &o.NotificationsEnabled, &o.CreatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func scanSQLiteLead(row scannable) (*model.Lead, error) {
	var (
		l                                        model.Lead
		keywords, equipment, locations, products string
		intent, status                           string
		officer                                  sql.NullInt64
	)
	err := row.Scan(&l.ID, &l.CompanyID, &l.SourceID, &l.SignalText, &l.SignalURL, &l.SignalType, &l.SignalDate,
		&keywords, &equipment, &locations, &products,
		&l.LeadScore, &intent, &l.UrgencyDays, &l.Confidence, &officer,
		&l.TerritoryState, &status, &l.NextAction, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	l.Intent = model.IntentStrength(intent)
	l.Status = model.LeadStatus(status)
	if officer.Valid {
		id := officer.Int64
		l.AssignedOfficerID = &id
	}
	if err := decodeLeadJSON(&l, []byte(keywords), []byte(equipment), []byte(locations), []byte(products)); err != nil {
		return nil, err
	}
	return &l, nil
}

type leadJSON struct {
	keywords, equipment, locations, products []byte
}

func encodeLeadJSON(l *model.Lead) (leadJSON, error) {
	var (
		enc leadJSON
		err error
	)
	if enc.keywords, err = json.Marshal(nonNilStrings(l.MatchedKeywords)); err != nil {
		return enc, eris.Wrap(err, "store: marshal keywords")
	}
	if enc.equipment, err = json.Marshal(nonNilStrings(l.MatchedEquipment)); err != nil {
		return enc, eris.Wrap(err, "store: marshal equipment")
	}
	if enc.locations, err = json.Marshal(nonNilStrings(l.DetectedLocations)); err != nil {
		return enc, eris.Wrap(err, "store: marshal locations")
	}
	products := l.Recommendations
	if products == nil {
		products = []model.ProductMatch{}
	}
	if enc.products, err = json.Marshal(products); err != nil {
		return enc, eris.Wrap(err, "store: marshal products")
	}
	return enc, nil
}

func decodeLeadJSON(l *model.Lead, keywords, equipment, locations, products []byte) error {
	for _, f := range []struct {
		name string
		data []byte
		dst  any
	}{
		{"keywords", keywords, &l.MatchedKeywords},
		{"equipment", equipment, &l.MatchedEquipment},
		{"locations", locations, &l.DetectedLocations},
		{"products", products, &l.Recommendations},
	} {
		if len(strings.TrimSpace(string(f.data))) == 0 {
			continue
		}
		if err := json.Unmarshal(f.data, f.dst); err != nil {
			return eris.Wrapf(err, "store: unmarshal %s", f.name)
		}
	}
	return nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
