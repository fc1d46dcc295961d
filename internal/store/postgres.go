package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadsignal/internal/db"
	"github.com/sells-group/leadsignal/internal/model"
)

// pgRepo implements Repository over a pool or a transaction.
type pgRepo struct {
	q db.Querier
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pgRepo
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresStore(pool), nil
}

func newPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pgRepo: pgRepo{q: pool}, pool: pool, closeFn: pool.Close}
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return migratePostgres(ctx, s.pool)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(Repository) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	if err := fn(&pgRepo{q: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return eris.Wrapf(err, "postgres: rollback failed: %v", rbErr)
		}
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit tx")
}

// --- Companies ---

func (r *pgRepo) FindCompanyByName(ctx context.Context, name string) (*model.Company, error) {
	row := r.q.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE name = $1`, name)
	c, err := scanCompany(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, eris.Wrap(err, "postgres: find company by name")
}

func (r *pgRepo) GetCompany(ctx context.Context, id int64) (*model.Company, error) {
	row := r.q.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id)
	c, err := scanCompany(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, eris.Wrapf(err, "postgres: get company %d", id)
}

func (r *pgRepo) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := r.q.Query(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate companies")
}

func (r *pgRepo) CreateCompany(ctx context.Context, c *model.Company) error {
	err := r.q.QueryRow(ctx,
		`INSERT INTO companies (name, normalized_name, industry, city, state, size_class)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		c.Name, c.NormalizedName, c.Industry, c.City, c.State, string(c.SizeClass),
	).Scan(&c.ID, &c.CreatedAt)
	return eris.Wrapf(err, "postgres: insert company %q", c.Name)
}

// --- Sources ---

func (r *pgRepo) FindSourceByDomain(ctx context.Context, domain string) (*model.Source, error) {
	var s model.Source
	err := r.q.QueryRow(ctx, `SELECT `+sourceColumns+` FROM sources WHERE domain = $1`, domain).
		Scan(&s.ID, &s.Domain, &s.URL, &s.Category, &s.TrustScore, &s.Active, &s.LastSeenAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find source %s", domain)
	}
	return &s, nil
}

func (r *pgRepo) CreateSource(ctx context.Context, s *model.Source) error {
	err := r.q.QueryRow(ctx,
		`INSERT INTO sources (domain, url, category, trust_score, active, last_seen_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		s.Domain, s.URL, s.Category, s.TrustScore, s.Active, s.LastSeenAt,
	).Scan(&s.ID, &s.CreatedAt)
	return eris.Wrapf(err, "postgres: insert source %s", s.Domain)
}

func (r *pgRepo) TouchSource(ctx context.Context, id int64, seenAt time.Time) error {
	tag, err := r.q.Exec(ctx, `UPDATE sources SET last_seen_at = $1 WHERE id = $2`, seenAt.UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: touch source %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("source not found: %d", id)
	}
	return nil
}

// --- Officers ---

func (r *pgRepo) FindActiveOfficerByTerritory(ctx context.Context, state string) (*model.Officer, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+officerColumns+` FROM officers WHERE territory_state = $1 AND active ORDER BY id LIMIT 1`, state)
	o, err := scanOfficer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, eris.Wrapf(err, "postgres: find officer for %s", state)
}

func (r *pgRepo) FindAnyActiveOfficer(ctx context.Context) (*model.Officer, error) {
	row := r.q.QueryRow(ctx, `SELECT `+officerColumns+` FROM officers WHERE active ORDER BY id LIMIT 1`)
	o, err := scanOfficer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, eris.Wrap(err, "postgres: find any active officer")
}

func (r *pgRepo) ListOfficers(ctx context.Context) ([]model.Officer, error) {
	rows, err := r.q.Query(ctx, `SELECT `+officerColumns+` FROM officers ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list officers")
	}
	defer rows.Close()

	var out []model.Officer
	for rows.Next() {
		o, err := scanOfficer(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan officer")
		}
		out = append(out, *o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate officers")
}

var officerMerge = db.MergeSpec{
	Table:   "officers",
	Columns: []string{"name", "email", "phone", "territory_state", "active", "notifications_enabled"},
	Key:     []string{"email"},
}

// UpsertOfficers loads a roster via COPY into a staging table and merges it
// on e-mail. A roster listing an e-mail twice keeps its later row.
func (s *PostgresStore) UpsertOfficers(ctx context.Context, officers []model.Officer) (int64, error) {
	rows := make([][]any, 0, len(officers))
	for _, o := range officers {
		rows = append(rows, []any{o.Name, o.Email, o.Phone, o.TerritoryState, o.Active, o.NotificationsEnabled})
	}
	n, err := db.MergeRows(ctx, s.pool, officerMerge, rows)
	return n, eris.Wrap(err, "postgres: upsert officers")
}

// --- Leads ---

func (r *pgRepo) CreateLead(ctx context.Context, l *model.Lead) error {
	enc, err := encodeLeadJSON(l)
	if err != nil {
		return err
	}
	if l.SignalDate.IsZero() {
		l.SignalDate = time.Now().UTC()
	}
	err = r.q.QueryRow(ctx,
		`INSERT INTO leads (company_id, source_id, signal_text, signal_url, signal_type, signal_date,
			detected_keywords, detected_equipment, detected_locations, recommended_products,
			lead_score, intent_strength, urgency_days, confidence, assigned_officer_id,
			territory_state, status, next_action)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		 RETURNING id, created_at`,
		l.CompanyID, l.SourceID, l.SignalText, l.SignalURL, l.SignalType, l.SignalDate,
		enc.keywords, enc.equipment, enc.locations, enc.products,
		l.LeadScore, string(l.Intent), l.UrgencyDays, l.Confidence, l.AssignedOfficerID,
		l.TerritoryState, string(l.Status), l.NextAction,
	).Scan(&l.ID, &l.CreatedAt)
	return eris.Wrap(err, "postgres: insert lead")
}

func (r *pgRepo) GetLead(ctx context.Context, id int64) (*model.Lead, error) {
	row := r.q.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	l, err := scanPostgresLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return l, eris.Wrapf(err, "postgres: get lead %d", id)
}

func (r *pgRepo) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any
	argN := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argN)
		args = append(args, string(filter.Status))
		argN++
	}
	if filter.TerritoryState != "" {
		query += fmt.Sprintf(` AND territory_state = $%d`, argN)
		args = append(args, filter.TerritoryState)
		argN++
	}
	if filter.MinScore > 0 {
		query += fmt.Sprintf(` AND lead_score >= $%d`, argN)
		args = append(args, filter.MinScore)
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET %d`, filter.Offset)
		}
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var out []model.Lead
	for rows.Next() {
		l, err := scanPostgresLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		out = append(out, *l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate leads")
}

func scanPostgresLead(row scannable) (*model.Lead, error) {
	var (
		l                                        model.Lead
		keywords, equipment, locations, products []byte
		intent, status                           string
	)
	err := row.Scan(&l.ID, &l.CompanyID, &l.SourceID, &l.SignalText, &l.SignalURL, &l.SignalType, &l.SignalDate,
		&keywords, &equipment, &locations, &products,
		&l.LeadScore, &intent, &l.UrgencyDays, &l.Confidence, &l.AssignedOfficerID,
		&l.TerritoryState, &status, &l.NextAction, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	l.Intent = model.IntentStrength(intent)
	l.Status = model.LeadStatus(status)
	if err := decodeLeadJSON(&l, keywords, equipment, locations, products); err != nil {
		return nil, err
	}
	return &l, nil
}
