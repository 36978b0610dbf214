// Package parallel contains the bounded fan-out helpers used to activate and
// train the neurons of one layer concurrently.
package parallel

import "sync"

// ForEach executes a for loop with a limited number of concurrent goroutines.
// Each goroutine processes one integer, from 0 to length. ForEach returns
// once every body has returned.
func ForEach(length, limit int, body func(i int)) {
	if length <= 0 {
		return
	}
	if limit <= 1 || length == 1 {
		for i := 0; i < length; i++ {
			body(i)
		}
		return
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	wg.Add(length)

	for i := 0; i < length; i++ {
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			body(i)
		}(i)
	}

	wg.Wait()
}

// ForEachChunk splits [0, length) into at most limit contiguous ranges and
// runs body once per range, each range on its own goroutine.
func ForEachChunk(length, limit int, body func(from, to int)) {
	if length <= 0 {
		return
	}
	if limit > length {
		limit = length
	}
	if limit <= 1 {
		body(0, length)
		return
	}

	size := (length + limit - 1) / limit
	chunks := (length + size - 1) / size

	ForEach(chunks, chunks, func(c int) {
		from := c * size
		to := from + size
		if to > length {
			to = length
		}
		body(from, to)
	})
}
