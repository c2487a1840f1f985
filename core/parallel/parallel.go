// Package parallel splits row ranges across goroutines. Batch prediction
// and scaling use it once a matrix is large enough to pay for the
// goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// DefaultRowThreshold is the row count below which work runs inline.
const DefaultRowThreshold = 1000

// Rows divides [0, rows) into one contiguous chunk per CPU and runs fn on
// each chunk concurrently. It returns the error of the lowest-indexed chunk
// that failed, so the result does not depend on scheduling.
func Rows(rows int, fn func(start, end int) error) error {
	if rows <= 0 {
		return nil
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > rows {
		workers = rows
	}
	chunk := (rows + workers - 1) / workers

	errs := make([]error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := min(start+chunk, rows)
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(w, s, e int) {
			defer wg.Done()
			errs[w] = fn(s, e)
		}(w, start, end)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// RowsWithThreshold runs fn(0, rows) inline when rows <= threshold and
// falls back to Rows otherwise.
func RowsWithThreshold(rows, threshold int, fn func(start, end int) error) error {
	if rows <= threshold {
		if rows <= 0 {
			return nil
		}
		return fn(0, rows)
	}
	return Rows(rows, fn)
}
