package assignment

import (
	"context"

	"github.com/shopspring/decimal"
)

// ResourceTotal is one row of the per-resource cost breakdown for a
// project's whole tree.
type ResourceTotal struct {
	ResourceCode    string          `json:"resource_code"`
	TotalPert       decimal.Decimal `json:"total_pert"`
	AssignmentCount int             `json:"assignment_count"`
}

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Assignment, error)
	GetByNode(ctx context.Context, wbsID int64) ([]*Assignment, error)
	CountByNode(ctx context.Context, wbsID int64) (int64, error)
	ResourceBreakdownByProject(ctx context.Context, projectID int64) ([]*ResourceTotal, error)
	Create(ctx context.Context, a *Assignment) (*Assignment, error)
	CreateMany(ctx context.Context, as []*Assignment) error
	Update(ctx context.Context, a *Assignment) (*Assignment, error)
	Delete(ctx context.Context, id int64) error
}
