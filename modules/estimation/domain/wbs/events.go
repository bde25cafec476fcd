package wbs

type TreeReplacedEvent struct {
	ProjectID int64
	NodeCount int
}

type ApprovalTransitionedEvent struct {
	Node       *Node
	Action     string
	FromStatus string
	ActorName  string
}

type RollupRecomputedEvent struct {
	WBSIDs []int64
}
