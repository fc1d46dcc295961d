// Package store persists companies, sources, officers and leads.
package store

import (
	"context"
	"time"

	"github.com/sells-group/leadsignal/internal/model"
)

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status         model.LeadStatus `json:"status,omitempty"`
	TerritoryState string           `json:"territory_state,omitempty"`
	MinScore       float64          `json:"min_score,omitempty"`
	Limit          int              `json:"limit,omitempty"`
	Offset         int              `json:"offset,omitempty"`
}

// Repository is the per-signal persistence surface used by the pipeline.
// Lookups that find nothing return (nil, nil).
type Repository interface {
	// Companies
	FindCompanyByName(ctx context.Context, name string) (*model.Company, error)
	ListCompanies(ctx context.Context) ([]model.Company, error)
	CreateCompany(ctx context.Context, c *model.Company) error

	// Sources
	FindSourceByDomain(ctx context.Context, domain string) (*model.Source, error)
	CreateSource(ctx context.Context, s *model.Source) error
	TouchSource(ctx context.Context, id int64, seenAt time.Time) error

	// Officers
	FindActiveOfficerByTerritory(ctx context.Context, state string) (*model.Officer, error)
	FindAnyActiveOfficer(ctx context.Context) (*model.Officer, error)

	// Leads
	CreateLead(ctx context.Context, l *model.Lead) error
}

// Store is a Repository with transactions, reporting queries and lifecycle.
type Store interface {
	Repository

	// InTx runs fn against a transactional Repository. Any error returned by
	// fn rolls back every write made through it.
	InTx(ctx context.Context, fn func(Repository) error) error

	// Roster
	UpsertOfficers(ctx context.Context, officers []model.Officer) (int64, error)
	ListOfficers(ctx context.Context) ([]model.Officer, error)

	// Reporting
	GetLead(ctx context.Context, id int64) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	GetCompany(ctx context.Context, id int64) (*model.Company, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Compile-time interface checks.
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
