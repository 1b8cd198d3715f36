package dataset

import (
	"math/rand"

	"kws/types"
)

// Subset is a view over a parent dataset restricted to a fixed index set.
type Subset struct {
	parent View
	idx    []int
}

func (s *Subset) Len() int               { return len(s.idx) }
func (s *Subset) Get(i int) types.Sample { return s.parent.Get(s.idx[i]) }

// Split partitions ds into two disjoint subsets covering every index
// exactly once. The first subset holds floor(n*frac) randomly chosen
// items, the second the remainder.
func Split(ds View, frac float64, rng *rand.Rand) (*Subset, *Subset) {
	n := ds.Len()
	perm := rng.Perm(n)
	cut := int(float64(n) * frac)
	return &Subset{parent: ds, idx: perm[:cut]},
		&Subset{parent: ds, idx: perm[cut:]}
}
