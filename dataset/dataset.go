// Package dataset adapts a stream of variable-length labeled waveforms into
// fixed-length samples with optional waveform augmentation, and batches them
// for training.
package dataset

import (
	"math/rand"
	"sync"

	"kws/types"
)

const (
	noiseStdDev   = 0.002 // additive gaussian noise
	maxShiftFrac  = 0.10  // circular time shift, fraction of fixed length
	augmentChance = 0.5   // per-transform coin flip
)

// Source is an ordered stream of labeled clips. Next returns false once the
// stream is exhausted.
type Source interface {
	Next() (types.Sample, bool)
}

// View is an indexable collection of samples. Both Dataset and Subset
// satisfy it.
type View interface {
	Len() int
	Get(i int) types.Sample
}

// Dataset materializes a Source into memory, preserving source order.
// Access re-normalizes and (optionally) re-augments on every call; the
// stored samples are never mutated.
type Dataset struct {
	samples  []types.Sample
	fixedLen int
	augment  bool

	mu  sync.Mutex
	rng *rand.Rand
}

// New consumes src, keeping at most limit items (all items if limit <= 0).
// rng seeds augmentation and may be nil when augment is false. The dataset
// draws from its own private generator: loader workers roll augmentation
// concurrently with whatever else the caller's rng feeds, and rand.Rand is
// not goroutine-safe.
func New(src Source, fixedLen, limit int, augment bool, rng *rand.Rand) *Dataset {
	d := &Dataset{
		fixedLen: fixedLen,
		augment:  augment,
	}
	if augment {
		d.rng = rand.New(rand.NewSource(rng.Int63()))
	}
	for {
		if limit > 0 && len(d.samples) >= limit {
			break
		}
		s, ok := src.Next()
		if !ok {
			break
		}
		d.samples = append(d.samples, s)
	}
	return d
}

func (d *Dataset) Len() int { return len(d.samples) }

// Get returns sample i with its waveform normalized to the fixed length:
// longer clips keep only the leading fixedLen samples, shorter ones are
// zero-padded on the right. With augmentation enabled each access rolls
// the transforms independently.
func (d *Dataset) Get(i int) types.Sample {
	stored := d.samples[i]

	wave := make([]float64, d.fixedLen)
	copy(wave, stored.Wave) // truncates or leaves trailing zeros

	if d.augment {
		d.mu.Lock()
		noise := d.rng.Float64() < augmentChance
		shift := d.rng.Float64() < augmentChance
		var offset int
		if noise {
			for j := range wave {
				wave[j] += d.rng.NormFloat64() * noiseStdDev
			}
		}
		if shift {
			maxShift := int(float64(d.fixedLen) * maxShiftFrac)
			offset = d.rng.Intn(2*maxShift+1) - maxShift
		}
		d.mu.Unlock()
		if offset != 0 {
			wave = rotate(wave, offset)
		}
	}

	return types.Sample{Wave: wave, Label: stored.Label}
}

// rotate shifts x circularly by k positions (positive k moves samples later
// in time, wrapping the tail to the front).
func rotate(x []float64, k int) []float64 {
	n := len(x)
	k = ((k % n) + n) % n
	if k == 0 {
		return x
	}
	out := make([]float64, n)
	copy(out[k:], x[:n-k])
	copy(out[:k], x[n-k:])
	return out
}
