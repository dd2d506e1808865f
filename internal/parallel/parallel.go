// Package parallel runs independent conversion jobs across worker
// goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 1, // Conversions are coarse; one per goroutine is fine.
	}
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	_ = ForErr(n, func(i int) error {
		f(i)
		return nil
	}, cfg)
}

// ForErr is For with fallible jobs. Every job runs; the error of the
// lowest failing index is returned.
func ForErr(n int, f func(i int) error, cfg Config) error {
	workers := max(cfg.NumWorkers, 1)
	if !cfg.Enabled || workers == 1 || n < 2*max(cfg.MinChunkSize, 1) {
		var first error
		for i := 0; i < n; i++ {
			if err := f(i); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		idx  = n
		errs error
	)
	chunkSize := max((n+workers-1)/workers, cfg.MinChunkSize)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				if err := f(i); err != nil {
					mu.Lock()
					if i < idx {
						idx, errs = i, err
					}
					mu.Unlock()
				}
			}
		}(start, end)
	}
	wg.Wait()
	return errs
}
