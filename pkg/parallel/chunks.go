package parallel

import "sync"

// ForChunks splits the index range [0, n) into roughly equal chunks, runs fn
// on each chunk through the pool, and blocks until every chunk has finished.
// fn must only write to slice positions inside its own [lo, hi) range; the
// return acts as the barrier before any reduction over the results.
//
// A nil pool, a single worker, or a small n runs the whole range inline.
func ForChunks(wp *WorkerPool, n int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	// Fan-out below this size costs more than it saves.
	const minChunk = 64

	if wp == nil || wp.workers == 1 || n < 2*minChunk {
		fn(0, n)
		return
	}

	chunks := wp.workers
	if n/chunks < minChunk {
		chunks = n / minChunk
	}
	size := (n + chunks - 1) / chunks

	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		lo, hi := lo, hi
		wg.Add(1)
		ok := wp.Submit(func() {
			defer wg.Done()
			fn(lo, hi)
		})
		if !ok {
			// Pool closed under us; fall back to inline execution.
			fn(lo, hi)
			wg.Done()
		}
	}
	wg.Wait()
}
