package cluster

import "testing"

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	if !q.Empty() {
		t.Fatal("new queue should be empty")
	}

	q.Push(Task{K: 1})
	q.Push(Task{K: 2})
	q.Push(Task{K: 3})

	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}

	for _, want := range []int{1, 2, 3} {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop() returned ok=false, want a task with K=%d", want)
		}
		if got.K != want {
			t.Errorf("Pop() = K=%d, want K=%d", got.K, want)
		}
	}

	if _, ok := q.Pop(); ok {
		t.Error("Pop() on empty queue should return ok=false")
	}
}

func TestQueueSnapshotDoesNotMutate(t *testing.T) {
	q := NewQueue()
	q.Push(Task{K: 1})

	snap := q.Snapshot()
	snap[0] = Task{K: 99}

	if q.Len() != 1 {
		t.Fatal("Snapshot should not drain the queue")
	}
	front, _ := q.Pop()
	if front.K != 1 {
		t.Errorf("mutating the snapshot leaked into the queue: K=%d", front.K)
	}
}

func TestCategoryMapInsertionOrder(t *testing.T) {
	m := NewCategoryMap()
	m.Put(&Category{ID: "CAT-001"})
	m.Put(&Category{ID: "CAT-002"})
	m.Put(&Category{ID: TrashCategoryID})
	m.Put(&Category{ID: "CAT-003"})

	want := []string{"CAT-001", "CAT-002", TrashCategoryID, "CAT-003"}
	got := m.Order()
	if len(got) != len(want) {
		t.Fatalf("Order() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Order()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if m.CreatedCount() != 3 {
		t.Errorf("CreatedCount() = %d, want 3 (TRASH_CATEGORY excluded)", m.CreatedCount())
	}
}

func TestCategoryMapPutOverwriteKeepsOrder(t *testing.T) {
	m := NewCategoryMap()
	m.Put(&Category{ID: "CAT-001", Description: "first"})
	m.Put(&Category{ID: "CAT-001", Description: "second"})

	if len(m.Order()) != 1 {
		t.Fatalf("re-putting an existing id should not duplicate the order slice: %v", m.Order())
	}
	cat, ok := m.Get("CAT-001")
	if !ok || cat.Description != "second" {
		t.Errorf("Get(CAT-001) = %+v, ok=%v; want Description=second", cat, ok)
	}
}
