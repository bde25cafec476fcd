package risk

import "context"

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Risk, error)
	GetByNode(ctx context.Context, wbsID int64) ([]*Risk, error)
	Create(ctx context.Context, r *Risk) (*Risk, error)
	Update(ctx context.Context, r *Risk) (*Risk, error)
	Delete(ctx context.Context, id int64) error
}
