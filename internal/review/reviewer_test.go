package review

import (
	"context"
	"errors"
	"testing"

	"github.com/harooos/tdrcluster/internal/cluster"
)

type fakeGenerator struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeGenerator) Generate(_ context.Context, _ *PromptPair) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return f.responses[len(f.responses)-1], nil
}

func TestReviewerEmptyBatchIsNoOp(t *testing.T) {
	prompts, err := LoadPrompts()
	if err != nil {
		t.Fatal(err)
	}
	r := NewReviewer(prompts, &fakeGenerator{}, "goal", "15", 3, 0.0001)

	decisions, err := r.Review(context.Background(), cluster.NewCategoryMap(), nil)
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}
	if decisions != nil {
		t.Errorf("Review() on empty batch = %v, want nil", decisions)
	}
}

func TestReviewerSucceedsFirstTry(t *testing.T) {
	prompts, err := LoadPrompts()
	if err != nil {
		t.Fatal(err)
	}
	gen := &fakeGenerator{responses: []string{`<decisions>
  <decision>
    <id>cluster-1</id>
    <action>create</action>
    <description>d</description>
  </decision>
</decisions>`}}
	r := NewReviewer(prompts, gen, "goal", "15", 3, 0.0001)

	batch := []*cluster.Cluster{{ID: "cluster-1"}}
	decisions, err := r.Review(context.Background(), cluster.NewCategoryMap(), batch)
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("got %d decisions, want 1", len(decisions))
	}
	if gen.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry needed)", gen.calls)
	}
}

func TestReviewerRetriesOnInvalidThenSucceeds(t *testing.T) {
	prompts, err := LoadPrompts()
	if err != nil {
		t.Fatal(err)
	}
	// first response omits cluster-2, second is complete (spec.md §8 scenario 6).
	gen := &fakeGenerator{responses: []string{
		`<decisions>
  <decision>
    <id>cluster-1</id>
    <action>create</action>
    <description>d</description>
  </decision>
</decisions>`,
		`<decisions>
  <decision>
    <id>cluster-1</id>
    <action>create</action>
    <description>d</description>
  </decision>
  <decision>
    <id>cluster-2</id>
    <action>create</action>
    <description>e</description>
  </decision>
</decisions>`,
	}}
	r := NewReviewer(prompts, gen, "goal", "15", 3, 0.0001)

	batch := []*cluster.Cluster{{ID: "cluster-1"}, {ID: "cluster-2"}}
	decisions, err := r.Review(context.Background(), cluster.NewCategoryMap(), batch)
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("got %d decisions, want 2", len(decisions))
	}
	if gen.calls != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", gen.calls)
	}
}

func TestReviewerExhaustsRetriesOnTransportError(t *testing.T) {
	prompts, err := LoadPrompts()
	if err != nil {
		t.Fatal(err)
	}
	gen := &fakeGenerator{errs: []error{
		errors.New("rate limited"),
		errors.New("rate limited"),
		errors.New("rate limited"),
		errors.New("rate limited"),
	}}
	r := NewReviewer(prompts, gen, "goal", "15", 3, 0.0001)

	_, err = r.Review(context.Background(), cluster.NewCategoryMap(), []*cluster.Cluster{{ID: "cluster-1"}})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if gen.calls != 4 {
		t.Errorf("calls = %d, want 4 (initial + 3 retries)", gen.calls)
	}
}
