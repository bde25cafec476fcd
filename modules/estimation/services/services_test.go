package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/costline/costline/modules/estimation/domain/assignment"
	"github.com/costline/costline/modules/estimation/domain/importjob"
	"github.com/costline/costline/modules/estimation/domain/risk"
	"github.com/costline/costline/modules/estimation/domain/wbs"
	"github.com/costline/costline/modules/estimation/infrastructure/persistence"
	"github.com/costline/costline/pkg/composables"
)

// noopTx satisfies the ambient-transaction check so service flows run
// against the in-memory fakes below. Its methods are never reached.
type noopTx struct{ pgx.Tx }

func testCtx() context.Context {
	return composables.WithTx(context.Background(), noopTx{})
}

type fakeWBSRepo struct {
	mu    sync.Mutex
	seq   int64
	nodes map[int64]*wbs.Node
}

func newFakeWBSRepo() *fakeWBSRepo {
	return &fakeWBSRepo{nodes: map[int64]*wbs.Node{}}
}

func (f *fakeWBSRepo) add(n *wbs.Node) *wbs.Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	n.ID = f.seq
	if n.ApprovalStatus == "" {
		n.ApprovalStatus = wbs.StatusDraft
	}
	f.nodes[n.ID] = n
	return n
}

func (f *fakeWBSRepo) GetByID(_ context.Context, id int64) (*wbs.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[id]
	if !ok {
		return nil, persistence.ErrWBSNodeNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeWBSRepo) GetByIDForUpdate(ctx context.Context, id int64) (*wbs.Node, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeWBSRepo) GetByProject(_ context.Context, projectID int64) ([]*wbs.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*wbs.Node
	for i := int64(1); i <= f.seq; i++ {
		if n, ok := f.nodes[i]; ok && n.ProjectID == projectID {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeWBSRepo) PathToRoot(_ context.Context, id int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	cur, ok := f.nodes[id]
	if !ok {
		return nil, persistence.ErrWBSNodeNotFound
	}
	for {
		ids = append(ids, cur.ID)
		if cur.ParentID == nil {
			return ids, nil
		}
		cur = f.nodes[*cur.ParentID]
	}
}

func (f *fakeWBSRepo) CreateTree(_ context.Context, projectID int64, inserts []wbs.TreeInsert) ([]*wbs.Node, error) {
	out := make([]*wbs.Node, len(inserts))
	for i, ins := range inserts {
		n := *ins.Node
		n.ProjectID = projectID
		n.ApprovalStatus = wbs.StatusDraft
		out[i] = f.add(&n)
	}
	for i, ins := range inserts {
		if ins.ParentIndex >= 0 {
			pid := out[ins.ParentIndex].ID
			out[i].ParentID = &pid
			f.nodes[out[i].ID].ParentID = &pid
		}
	}
	return out, nil
}

func (f *fakeWBSRepo) subtreeIDs(id int64) []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := []int64{id}
	for i := 0; i < len(ids); i++ {
		for _, n := range f.nodes {
			if n.ParentID != nil && *n.ParentID == ids[i] {
				ids = append(ids, n.ID)
			}
		}
	}
	return ids
}

func (f *fakeWBSRepo) DeleteByProject(_ context.Context, projectID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, n := range f.nodes {
		if n.ProjectID == projectID {
			delete(f.nodes, id)
		}
	}
	return nil
}

func (f *fakeWBSRepo) UpdateApproval(_ context.Context, n *wbs.Node) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.nodes[n.ID]
	if !ok {
		return persistence.ErrWBSNodeNotFound
	}
	stored.ApprovalStatus = n.ApprovalStatus
	stored.EstimateRevision = n.EstimateRevision
	stored.LastSubmittedAt = n.LastSubmittedAt
	stored.ApproverIdentity = n.ApproverIdentity
	stored.ApprovalTimestamp = n.ApprovalTimestamp
	return nil
}

type fakeProjectRepo struct {
	mu       sync.Mutex
	seq      int64
	projects map[int64]*wbs.Project
}

func newFakeProjectRepo() *fakeProjectRepo {
	return &fakeProjectRepo{projects: map[int64]*wbs.Project{}}
}

func (f *fakeProjectRepo) add(p *wbs.Project) *wbs.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	p.ID = f.seq
	f.projects[p.ID] = p
	return p
}

func (f *fakeProjectRepo) GetByID(_ context.Context, id int64) (*wbs.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, persistence.ErrProjectNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProjectRepo) Create(_ context.Context, p *wbs.Project) (*wbs.Project, error) {
	cp := *p
	return f.add(&cp), nil
}

func (f *fakeProjectRepo) UpdateImportSummary(_ context.Context, p *wbs.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.projects[p.ID]
	if !ok {
		return persistence.ErrProjectNotFound
	}
	stored.SourceFilename = p.SourceFilename
	stored.TaskCount = p.TaskCount
	stored.ResourceCount = p.ResourceCount
	return nil
}

type fakeAssignmentRepo struct {
	mu   sync.Mutex
	seq  int64
	rows map[int64]*assignment.Assignment
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{rows: map[int64]*assignment.Assignment{}}
}

func (f *fakeAssignmentRepo) GetByID(_ context.Context, id int64) (*assignment.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok {
		return nil, persistence.ErrAssignmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAssignmentRepo) GetByNode(_ context.Context, wbsID int64) ([]*assignment.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*assignment.Assignment
	for i := int64(1); i <= f.seq; i++ {
		if a, ok := f.rows[i]; ok && a.WBSID == wbsID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAssignmentRepo) CountByNode(_ context.Context, wbsID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, a := range f.rows {
		if a.WBSID == wbsID {
			n++
		}
	}
	return n, nil
}

func (f *fakeAssignmentRepo) ResourceBreakdownByProject(_ context.Context, _ int64) ([]*assignment.ResourceTotal, error) {
	return nil, nil
}

func (f *fakeAssignmentRepo) Create(_ context.Context, a *assignment.Assignment) (*assignment.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	cp := *a
	cp.ID = f.seq
	f.rows[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeAssignmentRepo) CreateMany(ctx context.Context, as []*assignment.Assignment) error {
	for _, a := range as {
		if _, err := f.Create(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeAssignmentRepo) Update(_ context.Context, a *assignment.Assignment) (*assignment.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[a.ID]; !ok {
		return nil, persistence.ErrAssignmentNotFound
	}
	cp := *a
	f.rows[a.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeAssignmentRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return persistence.ErrAssignmentNotFound
	}
	delete(f.rows, id)
	return nil
}

type fakeRiskRepo struct {
	mu   sync.Mutex
	seq  int64
	rows map[int64]*risk.Risk
}

func newFakeRiskRepo() *fakeRiskRepo {
	return &fakeRiskRepo{rows: map[int64]*risk.Risk{}}
}

func (f *fakeRiskRepo) GetByID(_ context.Context, id int64) (*risk.Risk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, persistence.ErrRiskNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRiskRepo) GetByNode(_ context.Context, wbsID int64) ([]*risk.Risk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*risk.Risk
	for i := int64(1); i <= f.seq; i++ {
		if r, ok := f.rows[i]; ok && r.WBSID == wbsID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRiskRepo) Create(_ context.Context, r *risk.Risk) (*risk.Risk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	cp := *r
	cp.ID = f.seq
	f.rows[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeRiskRepo) Update(_ context.Context, r *risk.Risk) (*risk.Risk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[r.ID]; !ok {
		return nil, persistence.ErrRiskNotFound
	}
	cp := *r
	f.rows[r.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeRiskRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return persistence.ErrRiskNotFound
	}
	delete(f.rows, id)
	return nil
}

type fakeRollupRepo struct {
	mu         sync.Mutex
	recomputed [][]int64
	rollups    map[int64]*wbs.Rollup

	nodes       *fakeWBSRepo
	assignments *fakeAssignmentRepo
	risks       *fakeRiskRepo
}

func newFakeRollupRepo(nodes *fakeWBSRepo, assignments *fakeAssignmentRepo, risks *fakeRiskRepo) *fakeRollupRepo {
	return &fakeRollupRepo{
		rollups:     map[int64]*wbs.Rollup{},
		nodes:       nodes,
		assignments: assignments,
		risks:       risks,
	}
}

func (f *fakeRollupRepo) Get(_ context.Context, wbsID int64) (*wbs.Rollup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rollups[wbsID]
	if !ok {
		return nil, persistence.ErrRollupNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRollupRepo) GetMany(_ context.Context, wbsIDs []int64) ([]*wbs.Rollup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*wbs.Rollup
	for _, id := range wbsIDs {
		if r, ok := f.rollups[id]; ok {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Recompute mirrors the production repository: collect the subtree's
// source figures and derive the aggregate with wbs.ComputeRollup.
func (f *fakeRollupRepo) Recompute(ctx context.Context, wbsIDs []int64, zScore float64) error {
	f.mu.Lock()
	f.recomputed = append(f.recomputed, append([]int64(nil), wbsIDs...))
	f.mu.Unlock()
	for _, id := range wbsIDs {
		var figures []wbs.EstimateFigure
		var exposures []float64
		for _, nodeID := range f.nodes.subtreeIDs(id) {
			as, err := f.assignments.GetByNode(ctx, nodeID)
			if err != nil {
				return err
			}
			for _, a := range as {
				pert, _ := a.PertEstimate.Float64()
				std, _ := a.StdDeviation.Float64()
				figures = append(figures, wbs.EstimateFigure{Pert: pert, Std: std})
			}
			rs, err := f.risks.GetByNode(ctx, nodeID)
			if err != nil {
				return err
			}
			for _, r := range rs {
				e, _ := r.RiskExposure.Float64()
				exposures = append(exposures, e)
			}
		}
		f.mu.Lock()
		f.rollups[id] = wbs.ComputeRollup(id, figures, exposures, zScore)
		f.mu.Unlock()
	}
	return nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*wbs.AuditEntry
}

func (f *fakeAuditRepo) Append(_ context.Context, e *wbs.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	cp.ID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, &cp)
	return nil
}

func (f *fakeAuditRepo) GetByNode(_ context.Context, wbsID int64) ([]*wbs.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*wbs.AuditEntry
	for _, e := range f.entries {
		if e.WBSID == wbsID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*importjob.Job
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[uuid.UUID]*importjob.Job{}}
}

func (f *fakeJobRepo) GetByID(_ context.Context, id uuid.UUID) (*importjob.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, persistence.ErrImportJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobRepo) GetByProject(_ context.Context, projectID int64) ([]*importjob.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*importjob.Job
	for _, j := range f.jobs {
		if j.ProjectID == projectID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeJobRepo) Create(_ context.Context, j *importjob.Job) (*importjob.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.jobs {
		if existing.ProjectID == j.ProjectID && !importjob.Terminal(existing.Status) {
			return nil, &pgconn.PgError{Code: "23505", ConstraintName: "import_jobs_one_active"}
		}
	}
	cp := *j
	f.jobs[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeJobRepo) Advance(_ context.Context, id uuid.UUID, status string, progress float64) (*importjob.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok || importjob.Terminal(j.Status) {
		return nil, persistence.ErrImportJobNotFound
	}
	j.Status = status
	if progress > j.ProgressPercent {
		j.ProgressPercent = progress
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobRepo) Finish(_ context.Context, in *importjob.Job) (*importjob.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[in.ID]
	if !ok || importjob.Terminal(j.Status) {
		return nil, persistence.ErrImportJobNotFound
	}
	j.Status = in.Status
	if in.ProgressPercent > j.ProgressPercent {
		j.ProgressPercent = in.ProgressPercent
	}
	j.ErrorMessage = in.ErrorMessage
	j.TaskCount = in.TaskCount
	j.ResourceCount = in.ResourceCount
	j.AssignmentCount = in.AssignmentCount
	cp := *j
	return &cp, nil
}
