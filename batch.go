package huffrle

import (
	"context"
	"fmt"
	"sync"
)

// CompressAll compresses every text independently on a bounded pool of
// goroutines (see WithWorkers). Results keep the order of texts. The first
// error, or cancellation of ctx, stops scheduling further work and is
// returned.
func CompressAll(ctx context.Context, texts []string, opts ...Option) ([]*Artifact, error) {
	enc := NewEncoder(opts...)
	out := make([]*Artifact, len(texts))
	err := runParallel(ctx, len(texts), resolveWorkers(enc.config), func(i int) error {
		a, err := enc.Compress(texts[i])
		if err != nil {
			return fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DecompressAll decompresses every artifact with one shared Decoder, so
// artifacts built from the same code table reuse one rebuilt tree.
func DecompressAll(ctx context.Context, artifacts []*Artifact, opts ...Option) ([]string, error) {
	dec := NewDecoder(opts...)
	out := make([]string, len(artifacts))
	err := runParallel(ctx, len(artifacts), resolveWorkers(dec.config), func(i int) error {
		text, err := dec.Decompress(artifacts[i])
		if err != nil {
			return fmt.Errorf("artifact %d: %w", i, err)
		}
		out[i] = text
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// runParallel calls fn for every index in [0, n) using at most workers
// goroutines.
func runParallel(ctx context.Context, n, workers int, fn func(i int) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once     sync.Once
		firstErr error
		wg       sync.WaitGroup
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	var stopped error
	jobs := make(chan int)
	for w := 0; w < min(workers, n); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := fn(i); err != nil {
					fail(err)
				}
			}
		}()
	}

feed:
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			stopped = err
			break
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			stopped = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return stopped
}
