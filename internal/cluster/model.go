// Package cluster holds the core entity model driving the iterative
// cluster-review-dispatch loop: Query, Task, Cluster, Category, Decision,
// and the loop-global State (spec.md §3).
package cluster

import "fmt"

// TrashCategoryID is the reserved category id for queries routed out of a
// subdivide whose cluster is already below min_cluster_size (spec.md §4.4).
const TrashCategoryID = "TRASH_CATEGORY"

const trashCategoryDescription = "Semantically incoherent cluster — queries that are too mixed or too few to " +
	"subdivide further. Typical examples: scattered, off-topic, or ambiguous queries."

// Query is one unit of input: a stable id, its text content, and its
// embedding vector (fixed dimension within a single run).
type Query struct {
	ID        string
	Content   string
	Embedding []float64
}

// Task is a deferred partition job: a non-empty query set and a target k.
type Task struct {
	Queries []Query
	K       int
}

// Cluster is the transient output of one partition, awaiting a Decision.
type Cluster struct {
	ID       string
	Queries  []Query
	Samples  []string
	Decision *Decision
}

// Category is a finalized semantic class: a stable id, a rich free-text
// description, and the queries assigned to it so far.
type Category struct {
	ID          string
	Description string
	Queries     []Query
	Samples     []string
}

func (c *Category) QueryCount() int {
	return len(c.Queries)
}

// Action identifies which of the three dispatcher verbs a Decision carries.
type Action string

const (
	ActionCreate    Action = "create"
	ActionAssign    Action = "assign"
	ActionSubdivide Action = "subdivide"
)

// Decision is one LLM verdict over one or more cluster ids (spec.md §4.3).
// It is a tagged sum type, not an untyped map: exactly one of the
// action-specific payload groups is populated, enforced by the action field
// and by the review package's validator, never by callers poking at fields
// directly.
type Decision struct {
	ClusterRefs []string
	Action      Action

	// ActionCreate payload.
	Description string

	// ActionAssign payload.
	TargetID          string
	DescriptionUpdate string // "no_update" sentinel, or replacement text

	// ActionSubdivide payload.
	KValue int
}

const NoDescriptionUpdate = "no_update"

// LeadRef is the ref the dispatcher uses to decide whether it owns applying
// a multi-ref decision (spec.md §4.4 "Multi-ref handling subtlety"). Callers
// should iterate over *decisions*, not over individual cluster refs, so this
// is mostly documentation of intent; internal/dispatch enforces it.
func (d Decision) LeadRef() string {
	if len(d.ClusterRefs) == 0 {
		return ""
	}
	return d.ClusterRefs[0]
}

// State is the loop-global workspace mutated in place by each stage
// (spec.md §3, §5 "Shared resources"). Because the three stages run
// serially on one logical thread, no locking is required around it.
type State struct {
	Tasks       *Queue
	Categories  *CategoryMap
	Batch       []*Cluster
	DatasetName string

	TotalQueries         int
	MinClusterSize       int
	MaxSamplesPerCluster int

	nextClusterID int
}

// NewState initializes a State with a single root task, per spec.md §4.1.
func NewState(initialQueries []Query, initialK int, datasetName string, minClusterSize int) *State {
	s := &State{
		Tasks:          NewQueue(),
		Categories:     NewCategoryMap(),
		DatasetName:    datasetName,
		TotalQueries:   len(initialQueries),
		MinClusterSize: minClusterSize,
	}
	s.Tasks.Push(Task{Queries: initialQueries, K: initialK})
	return s
}

// NextClusterID allocates a fresh, monotonically increasing cluster id
// (spec.md §3 invariants: "Cluster ids are unique within a run and are
// never reused after dispatch").
func (s *State) NextClusterID() string {
	s.nextClusterID++
	return fmt.Sprintf("cluster-%d", s.nextClusterID)
}

// EnsureTrashCategory creates TRASH_CATEGORY on first need and returns it.
func (s *State) EnsureTrashCategory() *Category {
	if cat, ok := s.Categories.Get(TrashCategoryID); ok {
		return cat
	}
	cat := &Category{
		ID:          TrashCategoryID,
		Description: trashCategoryDescription,
	}
	s.Categories.Put(cat)
	return cat
}

// QueryCount returns the total number of queries currently reachable from
// state: queued tasks + current batch + all category queries. Used by
// invariant checks and tests (spec.md §8 "Query conservation").
func (s *State) QueryCount() int {
	total := 0
	for _, t := range s.Tasks.Snapshot() {
		total += len(t.Queries)
	}
	for _, c := range s.Batch {
		total += len(c.Queries)
	}
	for _, id := range s.Categories.Order() {
		cat, _ := s.Categories.Get(id)
		total += len(cat.Queries)
	}
	return total
}
