// Package review implements the reviewer stage: prompt assembly, the LLM
// call, and decision parsing/validation with retry (spec.md §4.3).
package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/harooos/tdrcluster/internal/cluster"
)

// generator is the minimal surface Reviewer needs from an LLM client;
// *Client satisfies it. Expressed as an interface so the retry loop can be
// tested without a real genai client.
type generator interface {
	Generate(ctx context.Context, pair *PromptPair) (string, error)
}

// Reviewer runs the reviewer stage against one batch.
type Reviewer struct {
	prompts *Prompts
	client  generator

	goal                string
	targetCategoryRange string
	maxRetries          int
	backoffBase         float64
}

func NewReviewer(prompts *Prompts, client generator, goal, targetCategoryRange string, maxRetries int, backoffBase float64) *Reviewer {
	return &Reviewer{
		prompts:             prompts,
		client:              client,
		goal:                goal,
		targetCategoryRange: targetCategoryRange,
		maxRetries:          maxRetries,
		backoffBase:         backoffBase,
	}
}

// Review consumes the batch: if empty it is a no-op (spec.md §4.3
// "Contract"). Otherwise it builds the prompt once, then invokes the LLM
// up to maxRetries+1 times with the same prompt, retrying on both
// transport errors and decision-validation failures, until a valid
// decision set is produced or retries are exhausted. The backoff formula
// is specified for transport-level rate-limit errors only; it is applied
// to validation-failure retries too since the spec names no separate
// policy for them and re-issuing an invalid-response request immediately
// would hammer the same failure mode.
func (r *Reviewer) Review(ctx context.Context, categories *cluster.CategoryMap, batch []*cluster.Cluster) ([]*cluster.Decision, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	catList := make([]*cluster.Category, 0, categories.Len())
	for _, id := range categories.Order() {
		cat, _ := categories.Get(id)
		catList = append(catList, cat)
	}

	pair, err := r.prompts.RenderReview(r.goal, r.targetCategoryRange, catList, batch)
	if err != nil {
		return nil, fmt.Errorf("assemble review prompt: %w", err)
	}

	var attempts *multierror.Error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoffWithJitter(r.backoffBase, attempt)
			slog.Warn("retrying reviewer LLM call", "attempt", attempt, "wait", wait, "error", attempts.Errors[len(attempts.Errors)-1])
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		raw, err := r.client.Generate(ctx, pair)
		if err != nil {
			attempts = multierror.Append(attempts, fmt.Errorf("attempt %d transport: %w", attempt, err))
			continue
		}

		decisions, err := ParseDecisions(raw, batch, categories)
		if err != nil {
			attempts = multierror.Append(attempts, fmt.Errorf("attempt %d invalid decision set: %w", attempt, err))
			continue
		}

		if attempt > 0 {
			slog.Info("reviewer recovered after retry", "retries", attempt)
		}
		return decisions, nil
	}

	attempts.ErrorFormat = func(errs []error) string {
		return fmt.Sprintf("reviewer stage exhausted %d retries across %d failed attempts: %v", r.maxRetries, len(errs), errs)
	}
	return nil, attempts.ErrorOrNil()
}
