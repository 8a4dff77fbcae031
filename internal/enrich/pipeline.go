package enrich

import (
	"context"
	"log"
	"sync"
)

// Pipeline coordinates the execution of a sequence of stages for one item at a
// time. Steps within the same stage run in parallel, and stages themselves run
// sequentially. Any step errors are logged and do not stop processing of the
// current item.
//
// Pipeline is generic over the item type T.
type Pipeline[T any] struct {
	stages []Stage[T]
}

// NewPipeline constructs a Pipeline from the provided stages. Stages will be
// applied to each item in order.
func NewPipeline[T any](stages ...Stage[T]) *Pipeline[T] {
	return &Pipeline[T]{stages: stages}
}

// Run applies every stage to item:
//   - All steps in a stage are started concurrently and must complete before
//     moving to the next stage (a stage barrier).
//   - Errors returned by steps are logged and ignored.
//   - ctx is handed to the steps for cancellation; Run itself always finishes
//     the remaining stages.
func (p *Pipeline[T]) Run(ctx context.Context, item *T) {
	for _, stage := range p.stages {
		var wg sync.WaitGroup
		for _, step := range stage.steps {
			wg.Add(1)
			go func(step Step[T]) {
				defer wg.Done()
				if err := step(ctx, item); err != nil {
					log.Printf("Step failed: %v", err)
				}
			}(step)
		}
		wg.Wait() // stage barrier
	}
}

// Process runs every item received from in until the channel closes.
func (p *Pipeline[T]) Process(ctx context.Context, in <-chan *T) {
	for item := range in {
		p.Run(ctx, item)
	}
}
