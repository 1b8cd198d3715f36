package dataset

import (
	"math/rand"
	"sync"

	"kws/types"
)

// Loader assembles fixed-size batches from a View. A small worker pool
// collates batches concurrently, but batches are always delivered in order.
type Loader struct {
	data     View
	batch    int
	fixedLen int
	shuffle  bool
	workers  int
	rng      *rand.Rand
}

func NewLoader(data View, batchSize, fixedLen int, shuffle bool, workers int, rng *rand.Rand) *Loader {
	if workers < 1 {
		workers = 1
	}
	return &Loader{
		data:     data,
		batch:    batchSize,
		fixedLen: fixedLen,
		shuffle:  shuffle,
		workers:  workers,
		rng:      rng,
	}
}

// Batches reports how many batches one epoch yields (the last batch may be
// partial).
func (l *Loader) Batches() int {
	return (l.data.Len() + l.batch - 1) / l.batch
}

type batchJob struct {
	seq int
	idx []int
}

type batchResult struct {
	seq   int
	batch types.Batch
}

// Epoch returns a channel yielding one full pass over the data. Each call
// re-shuffles (when enabled) and re-rolls augmentation through the parent
// dataset. The channel must be drained: abandoning it mid-epoch strands
// the collation goroutines on their next send.
func (l *Loader) Epoch() <-chan types.Batch {
	n := l.data.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if l.shuffle {
		l.rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	numBatches := l.Batches()
	jobs := make(chan batchJob, numBatches)
	results := make(chan batchResult, l.workers)
	out := make(chan types.Batch)

	var wg sync.WaitGroup
	for w := 0; w < l.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results <- batchResult{seq: job.seq, batch: l.collate(job.idx)}
			}
		}()
	}

	for b := 0; b < numBatches; b++ {
		lo := b * l.batch
		hi := lo + l.batch
		if hi > n {
			hi = n
		}
		jobs <- batchJob{seq: b, idx: order[lo:hi]}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	// reorder: workers finish out of order, consumers see source order
	go func() {
		defer close(out)
		pending := make(map[int]types.Batch)
		next := 0
		for r := range results {
			pending[r.seq] = r.batch
			for {
				b, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				out <- b
				next++
			}
		}
	}()

	return out
}

func (l *Loader) collate(idx []int) types.Batch {
	b := types.Batch{
		Waves:  make([]float64, len(idx)*l.fixedLen),
		Shape:  [3]int{len(idx), 1, l.fixedLen},
		Labels: make([]int, len(idx)),
	}
	for i, j := range idx {
		s := l.data.Get(j)
		copy(b.Waves[i*l.fixedLen:(i+1)*l.fixedLen], s.Wave)
		b.Labels[i] = s.Label
	}
	return b
}
