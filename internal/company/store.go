package company

import (
	"context"

	"github.com/sells-group/leadsignal/internal/model"
)

// Store is the company repository the resolver needs. Lookups that find
// nothing return (nil, nil).
type Store interface {
	FindCompanyByName(ctx context.Context, name string) (*model.Company, error)
	// ListCompanies returns every company ordered by id ascending.
	ListCompanies(ctx context.Context) ([]model.Company, error)
	CreateCompany(ctx context.Context, c *model.Company) error
}
