package fn

import (
	"context"
	"sync"
)

// ParMapResult applies f to every item with at most workers concurrent calls
// and returns the results in input order. Items not yet started when ctx is
// cancelled get ctx.Err() as their result.
func ParMapResult[T, U any](ctx context.Context, items []T, workers int, f func(context.Context, T) Result[U]) []Result[U] {
	out := make([]Result[U], len(items))
	if len(items) == 0 {
		return out
	}
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	if workers == 1 {
		for i, v := range items {
			if err := ctx.Err(); err != nil {
				out[i] = Err[U](err)
				continue
			}
			out[i] = f(ctx, v)
		}
		return out
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, v := range items {
		select {
		case <-ctx.Done():
			out[i] = Err[U](ctx.Err())
			continue
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int, v T) {
			defer func() { <-sem; wg.Done() }()
			out[i] = f(ctx, v)
		}(i, v)
	}
	wg.Wait()
	return out
}
