package wbs

import "context"

// TreeInsert is one node of a tree to be created wholesale. ParentIndex
// points into the same slice; -1 marks a root. Internal ids are assigned
// by the repository.
type TreeInsert struct {
	Node        *Node
	ParentIndex int
}

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Node, error)
	// GetByIDForUpdate locks the node row for the duration of the ambient
	// transaction. Callers must be inside composables.InTx.
	GetByIDForUpdate(ctx context.Context, id int64) (*Node, error)
	GetByProject(ctx context.Context, projectID int64) ([]*Node, error)
	// PathToRoot returns the id chain from the node to its root, the
	// node itself first.
	PathToRoot(ctx context.Context, id int64) ([]int64, error)
	CreateTree(ctx context.Context, projectID int64, nodes []TreeInsert) ([]*Node, error)
	DeleteByProject(ctx context.Context, projectID int64) error
	UpdateApproval(ctx context.Context, n *Node) error
}

type ProjectRepository interface {
	GetByID(ctx context.Context, id int64) (*Project, error)
	Create(ctx context.Context, p *Project) (*Project, error)
	UpdateImportSummary(ctx context.Context, p *Project) error
}

type RollupRepository interface {
	Get(ctx context.Context, wbsID int64) (*Rollup, error)
	GetMany(ctx context.Context, wbsIDs []int64) ([]*Rollup, error)
	// Recompute re-derives the aggregate for each given node from the
	// current source rows over its entire subtree and upserts the result.
	Recompute(ctx context.Context, wbsIDs []int64, zScore float64) error
}

type AuditRepository interface {
	Append(ctx context.Context, e *AuditEntry) error
	GetByNode(ctx context.Context, wbsID int64) ([]*AuditEntry, error)
}
