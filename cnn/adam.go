package cnn

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Adam holds first/second moment estimates per parameter tensor.
type Adam struct {
	params []*Param
	m, v   [][]float64
	beta1  float64
	beta2  float64
	eps    float64
	t      int
}

func NewAdam(params []*Param) *Adam {
	a := &Adam{
		params: params,
		m:      make([][]float64, len(params)),
		v:      make([][]float64, len(params)),
		beta1:  0.9,
		beta2:  0.999,
		eps:    1e-8,
	}
	for i, p := range params {
		a.m[i] = make([]float64, len(p.W))
		a.v[i] = make([]float64, len(p.W))
	}
	return a
}

// Step applies one bias-corrected Adam update at the given learning rate.
func (a *Adam) Step(lr float64) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for i, p := range a.params {
		m, v := a.m[i], a.v[i]
		for j, g := range p.Grad {
			m[j] = a.beta1*m[j] + (1-a.beta1)*g
			v[j] = a.beta2*v[j] + (1-a.beta2)*g*g
			mHat := m[j] / c1
			vHat := v[j] / c2
			p.W[j] -= lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
}

// ClipGradNorm rescales all gradients in place so their global L2 norm
// does not exceed maxNorm, and reports the pre-clip norm.
func ClipGradNorm(params []*Param, maxNorm float64) float64 {
	var sq float64
	for _, p := range params {
		sq += floats.Dot(p.Grad, p.Grad)
	}
	total := math.Sqrt(sq)
	if total > maxNorm {
		scale := maxNorm / (total + 1e-6)
		for _, p := range params {
			floats.Scale(scale, p.Grad)
		}
	}
	return total
}
