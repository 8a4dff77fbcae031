// Package enrich runs tap events through a small pipeline: independent steps
// of a stage run in parallel, stages run one after another.
package enrich

import (
	"context"
)

// Step is one operation on an item. Steps of the same stage run concurrently on
// the same item and must write disjoint fields. A failing step returns an
// error; the pipeline logs it and continues.
type Step[T any] func(ctx context.Context, item *T) error

// Stage groups steps that are safe to execute in parallel for a single item.
type Stage[T any] struct {
	steps []Step[T]
}

func NewStage[T any](steps ...Step[T]) Stage[T] {
	return Stage[T]{steps: steps}
}
