package cluster

// Queue is a strict FIFO queue of Tasks (spec.md §5 "Ordering guarantees").
// A plain slice is enough: the loop is single-threaded and the queue never
// grows large enough to need a ring buffer.
type Queue struct {
	items []Task
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Push(t Task) {
	q.items = append(q.items, t)
}

// Pop removes and returns the task at the front of the queue.
func (q *Queue) Pop() (Task, bool) {
	if len(q.items) == 0 {
		return Task{}, false
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t, true
}

func (q *Queue) Len() int {
	return len(q.items)
}

func (q *Queue) Empty() bool {
	return len(q.items) == 0
}

// Snapshot returns the queue contents without mutating it, for invariant
// checks such as State.QueryCount.
func (q *Queue) Snapshot() []Task {
	out := make([]Task, len(q.items))
	copy(out, q.items)
	return out
}

// CategoryMap is an insertion-ordered map from Category.id to *Category
// (spec.md §3: "categories (mapping from Category.id to Category,
// insertion-ordered)"). Go maps don't preserve iteration order, so the
// order is tracked alongside it explicitly — this is what lets category id
// assignment stay in strict creation order (spec.md §5).
type CategoryMap struct {
	byID  map[string]*Category
	order []string
}

func NewCategoryMap() *CategoryMap {
	return &CategoryMap{byID: make(map[string]*Category)}
}

func (m *CategoryMap) Get(id string) (*Category, bool) {
	c, ok := m.byID[id]
	return c, ok
}

func (m *CategoryMap) Put(c *Category) {
	if _, exists := m.byID[c.ID]; !exists {
		m.order = append(m.order, c.ID)
	}
	m.byID[c.ID] = c
}

func (m *CategoryMap) Order() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

func (m *CategoryMap) Len() int {
	return len(m.order)
}

// CreatedCount returns the number of categories created via `create`
// decisions (i.e. excluding TRASH_CATEGORY), used to derive the next
// CAT-NNN id in strict creation order (spec.md §3 invariants).
func (m *CategoryMap) CreatedCount() int {
	count := 0
	for _, id := range m.order {
		if id != TrashCategoryID {
			count++
		}
	}
	return count
}
