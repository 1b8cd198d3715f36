// Package cnn implements the keyword-spotting network: a mel-spectrogram
// front end followed by three convolution blocks and a small classifier
// head, trained by backpropagation with Adam under a one-cycle learning
// rate schedule.
package cnn

import "math/rand"

// Param is one learnable tensor with its gradient accumulator.
type Param struct {
	W    []float64
	Grad []float64
}

func newParam(n int) *Param {
	return &Param{W: make([]float64, n), Grad: make([]float64, n)}
}

// uniformInit fills w from U(-bound, bound); bound is 1/sqrt(fanIn), the
// stock initialization for conv and linear weights.
func uniformInit(w []float64, bound float64, rng *rand.Rand) {
	for i := range w {
		w[i] = (2*rng.Float64() - 1) * bound
	}
}

func (p *Param) zeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}
