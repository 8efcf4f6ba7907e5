package cluster

import "testing"

func TestNewState(t *testing.T) {
	queries := []Query{{ID: "q1"}, {ID: "q2"}, {ID: "q3"}}
	s := NewState(queries, 5, "banking77", 10)

	if s.Tasks.Len() != 1 {
		t.Fatalf("Tasks.Len() = %d, want 1 root task", s.Tasks.Len())
	}
	root, _ := s.Tasks.Pop()
	if root.K != 5 || len(root.Queries) != 3 {
		t.Errorf("root task = %+v, want K=5 with 3 queries", root)
	}
	if s.TotalQueries != 3 {
		t.Errorf("TotalQueries = %d, want 3", s.TotalQueries)
	}
	if s.MinClusterSize != 10 {
		t.Errorf("MinClusterSize = %d, want 10", s.MinClusterSize)
	}
	if s.DatasetName != "banking77" {
		t.Errorf("DatasetName = %q, want banking77", s.DatasetName)
	}
}

func TestStateNextClusterIDMonotonic(t *testing.T) {
	s := NewState(nil, 1, "d", 1)
	ids := map[string]bool{}
	for i := 0; i < 5; i++ {
		id := s.NextClusterID()
		if ids[id] {
			t.Fatalf("NextClusterID produced a repeat: %s", id)
		}
		ids[id] = true
	}
	want := []string{"cluster-1", "cluster-2", "cluster-3", "cluster-4", "cluster-5"}
	for _, w := range want {
		if !ids[w] {
			t.Errorf("expected id %s to have been produced, got set %v", w, ids)
		}
	}
}

func TestEnsureTrashCategoryIdempotent(t *testing.T) {
	s := NewState(nil, 1, "d", 1)

	cat1 := s.EnsureTrashCategory()
	cat2 := s.EnsureTrashCategory()

	if cat1 != cat2 {
		t.Error("EnsureTrashCategory should return the same instance on repeat calls")
	}
	if cat1.ID != TrashCategoryID {
		t.Errorf("trash category id = %q, want %q", cat1.ID, TrashCategoryID)
	}
	if s.Categories.CreatedCount() != 0 {
		t.Errorf("CreatedCount() should not count TRASH_CATEGORY, got %d", s.Categories.CreatedCount())
	}
}

func TestDecisionLeadRef(t *testing.T) {
	d := Decision{ClusterRefs: []string{"cluster-3", "cluster-7"}, Action: ActionCreate}
	if got := d.LeadRef(); got != "cluster-3" {
		t.Errorf("LeadRef() = %q, want cluster-3", got)
	}

	empty := Decision{Action: ActionCreate}
	if got := empty.LeadRef(); got != "" {
		t.Errorf("LeadRef() on empty refs = %q, want empty string", got)
	}
}

func TestStateQueryCountConservation(t *testing.T) {
	queries := []Query{{ID: "q1"}, {ID: "q2"}, {ID: "q3"}, {ID: "q4"}}
	s := NewState(queries, 2, "d", 1)

	if s.QueryCount() != 4 {
		t.Fatalf("QueryCount() = %d, want 4 (all still queued)", s.QueryCount())
	}

	task, _ := s.Tasks.Pop()
	s.Batch = append(s.Batch, &Cluster{ID: s.NextClusterID(), Queries: task.Queries[:2]})
	s.Batch = append(s.Batch, &Cluster{ID: s.NextClusterID(), Queries: task.Queries[2:]})

	if s.QueryCount() != 4 {
		t.Errorf("QueryCount() after moving to batch = %d, want 4 (conserved)", s.QueryCount())
	}

	cat := &Category{ID: "CAT-001"}
	cat.Queries = append(cat.Queries, s.Batch[0].Queries...)
	s.Categories.Put(cat)
	s.Batch = s.Batch[1:]

	if s.QueryCount() != 4 {
		t.Errorf("QueryCount() after assigning to category = %d, want 4 (conserved)", s.QueryCount())
	}
}

func TestCategoryQueryCount(t *testing.T) {
	cat := &Category{ID: "CAT-001", Queries: []Query{{ID: "a"}, {ID: "b"}}}
	if cat.QueryCount() != 2 {
		t.Errorf("QueryCount() = %d, want 2", cat.QueryCount())
	}
}
