// Package hierarchy reconstructs a validated WBS forest from the flat,
// id-referencing record set surfaced by the external file parser. It is
// pure: no persistence, no context, deterministic for identical input.
package hierarchy

import (
	"fmt"
	"strings"

	"github.com/costline/costline/modules/estimation/domain/task"
)

const DefaultMaxDropRatio = 0.5

type DefectKind string

const (
	DefectDuplicateID      DefectKind = "duplicate_external_id"
	DefectUnresolvedParent DefectKind = "unresolved_parent"
	DefectBadOutlineLevel  DefectKind = "invalid_outline_level"
	DefectCycle            DefectKind = "unterminated_parent_chain"
	DefectDropRatio        DefectKind = "drop_ratio_exceeded"
)

type Defect struct {
	Kind       DefectKind `json:"kind"`
	ExternalID int64      `json:"external_id,omitempty"`
	Detail     string     `json:"detail"`
}

func (d Defect) String() string {
	return fmt.Sprintf("%s (record %d): %s", d.Kind, d.ExternalID, d.Detail)
}

// InvalidError aborts the whole batch. It carries every defect found,
// fatal and non-fatal alike, so callers can report the full picture.
type InvalidError struct {
	Defects []Defect
}

func (e *InvalidError) Error() string {
	msgs := make([]string, len(e.Defects))
	for i, d := range e.Defects {
		msgs[i] = d.String()
	}
	return "hierarchy invalid: " + strings.Join(msgs, "; ")
}

type Options struct {
	// MaxDropRatio aborts the batch when dropped/total exceeds it.
	// Zero or negative means DefaultMaxDropRatio.
	MaxDropRatio float64
}

// Node is one kept record placed in the forest. Parent and Children are
// indexes into Forest.Nodes; Parent is -1 for roots.
type Node struct {
	Record   *task.Record
	Parent   int
	Children []int
	// Depth is the computed chain length from a root, root = 1. It wins
	// over the record's supplied outline level when they disagree.
	Depth int
	// WBSCode is the supplied code, or the synthesized one when absent.
	WBSCode string
}

// Forest is the validated output. Nodes preserve the input encounter
// order of the kept records.
type Forest struct {
	Nodes []*Node
	Roots []int
	// Defects are the non-fatal per-record defects (dropped records).
	Defects []Defect
	Dropped int
}

// Build validates the flat records and assembles the forest. A fatal
// defect returns a *InvalidError carrying the full defect list.
func Build(records []task.Record, opts Options) (*Forest, error) {
	maxDrop := opts.MaxDropRatio
	if maxDrop <= 0 {
		maxDrop = DefaultMaxDropRatio
	}

	// Duplicate ids make every parent reference ambiguous, so the whole
	// batch is unusable.
	seen := make(map[int64]int, len(records))
	var fatal []Defect
	for i := range records {
		id := records[i].ExternalUniqueID
		if first, dup := seen[id]; dup {
			fatal = append(fatal, Defect{
				Kind:       DefectDuplicateID,
				ExternalID: id,
				Detail:     fmt.Sprintf("records %d and %d share external id %d", first, i, id),
			})
			continue
		}
		seen[id] = i
	}
	if len(fatal) > 0 {
		return nil, &InvalidError{Defects: fatal}
	}

	// Outline levels start at 1. A smaller value breaks the chain-walk
	// bound below, so the record is dropped with its own defect kind
	// rather than surfacing later as a bogus cycle.
	dropped := make(map[int64]bool)
	var defects []Defect
	for i := range records {
		r := &records[i]
		if r.OutlineLevel >= 1 {
			continue
		}
		dropped[r.ExternalUniqueID] = true
		defects = append(defects, Defect{
			Kind:       DefectBadOutlineLevel,
			ExternalID: r.ExternalUniqueID,
			Detail:     fmt.Sprintf("outline level %d is below the minimum of 1", r.OutlineLevel),
		})
	}

	// Drop records whose parent reference cannot land on a kept record.
	// A drop cascades: children of a dropped record have nowhere to
	// attach, so they drop too.
	for changed := true; changed; {
		changed = false
		for i := range records {
			r := &records[i]
			if dropped[r.ExternalUniqueID] || r.ParentExternalID == nil {
				continue
			}
			pid := *r.ParentExternalID
			if _, ok := seen[pid]; ok && !dropped[pid] {
				continue
			}
			dropped[r.ExternalUniqueID] = true
			changed = true
			detail := fmt.Sprintf("parent %d not present in batch", pid)
			if dropped[pid] {
				detail = fmt.Sprintf("parent %d was dropped", pid)
			}
			defects = append(defects, Defect{
				Kind:       DefectUnresolvedParent,
				ExternalID: r.ExternalUniqueID,
				Detail:     detail,
			})
		}
	}
	if len(records) > 0 {
		ratio := float64(len(dropped)) / float64(len(records))
		if ratio > maxDrop {
			all := append([]Defect{{
				Kind:   DefectDropRatio,
				Detail: fmt.Sprintf("dropped %d of %d records (%.0f%% > %.0f%%)", len(dropped), len(records), ratio*100, maxDrop*100),
			}}, defects...)
			return nil, &InvalidError{Defects: all}
		}
	}

	f := &Forest{Defects: defects, Dropped: len(dropped)}
	index := make(map[int64]int, len(records)-len(dropped))
	for i := range records {
		r := &records[i]
		if dropped[r.ExternalUniqueID] {
			continue
		}
		index[r.ExternalUniqueID] = len(f.Nodes)
		f.Nodes = append(f.Nodes, &Node{Record: r, Parent: -1})
	}

	// The parent-chain walk is bounded by the deepest level the source
	// claims to have; a chain that cannot reach a root within that many
	// steps is either a cycle or deeper than the file admits, and neither
	// can be trusted.
	bound := 1
	for i := range records {
		if l := records[i].OutlineLevel; l > bound {
			bound = l
		}
	}
	for i, n := range f.Nodes {
		if n.Record.ParentExternalID != nil {
			n.Parent = index[*n.Record.ParentExternalID]
		}
		if n.Parent >= 0 {
			f.Nodes[n.Parent].Children = append(f.Nodes[n.Parent].Children, i)
		} else {
			f.Roots = append(f.Roots, i)
		}
	}
	for _, n := range f.Nodes {
		if err := resolveDepth(f.Nodes, n, bound); err != nil {
			fatal = append(fatal, err.Defects...)
		}
	}
	if len(fatal) > 0 {
		return nil, &InvalidError{Defects: append(fatal, defects...)}
	}

	synthesizeCodes(f)
	return f, nil
}

func resolveDepth(nodes []*Node, n *Node, bound int) *InvalidError {
	if n.Depth > 0 {
		return nil
	}
	// Walk up until a root or an already-resolved ancestor, taking at
	// most bound steps.
	var path []*Node
	cur := n
	for steps := 0; cur.Depth == 0; steps++ {
		if steps >= bound {
			return &InvalidError{Defects: []Defect{{
				Kind:       DefectCycle,
				ExternalID: n.Record.ExternalUniqueID,
				Detail:     fmt.Sprintf("parent chain did not reach a root within %d steps", bound),
			}}}
		}
		path = append(path, cur)
		if cur.Parent < 0 {
			cur.Depth = 1
			path = path[:len(path)-1]
			break
		}
		cur = nodes[cur.Parent]
	}
	for i := len(path) - 1; i >= 0; i-- {
		path[i].Depth = nodes[path[i].Parent].Depth + 1
	}
	if n.Depth > bound {
		return &InvalidError{Defects: []Defect{{
			Kind:       DefectCycle,
			ExternalID: n.Record.ExternalUniqueID,
			Detail:     fmt.Sprintf("parent chain did not reach a root within %d steps", bound),
		}}}
	}
	return nil
}

// synthesizeCodes assigns WBS codes to records that arrived without one.
// Roots count "1", "2", ... in encounter order; children append their
// sibling index to the parent's code. Supplied codes pass through.
func synthesizeCodes(f *Forest) {
	rootSeq := 0
	for _, i := range f.Roots {
		rootSeq++
		assignCode(f, i, fmt.Sprintf("%d", rootSeq))
	}
}

func assignCode(f *Forest, i int, synthesized string) {
	n := f.Nodes[i]
	n.WBSCode = n.Record.WBSCode
	if n.WBSCode == "" {
		n.WBSCode = synthesized
	}
	for sib, c := range n.Children {
		assignCode(f, c, fmt.Sprintf("%s.%d", n.WBSCode, sib+1))
	}
}
