package cnn

import (
	"math"
	"math/rand"
)

// Conv2D is a 3x3 convolution with unit stride and same-size padding over
// a fixed spatial extent.
type Conv2D struct {
	inC, outC int
	h, w      int
	Weight    *Param // outC x inC x 3 x 3
	Bias      *Param // outC

	lastX []float64
	lastB int
}

const kernel = 3

func NewConv2D(inC, outC, h, w int, rng *rand.Rand) *Conv2D {
	c := &Conv2D{
		inC:    inC,
		outC:   outC,
		h:      h,
		w:      w,
		Weight: newParam(outC * inC * kernel * kernel),
		Bias:   newParam(outC),
	}
	bound := 1.0 / math.Sqrt(float64(inC*kernel*kernel))
	uniformInit(c.Weight.W, bound, rng)
	uniformInit(c.Bias.W, bound, rng)
	return c
}

func (c *Conv2D) Forward(x []float64, batch int) []float64 {
	c.lastX = x
	c.lastB = batch
	h, w := c.h, c.w
	y := make([]float64, batch*c.outC*h*w)
	for b := 0; b < batch; b++ {
		for o := 0; o < c.outC; o++ {
			bias := c.Bias.W[o]
			for i := 0; i < h; i++ {
				for j := 0; j < w; j++ {
					sum := bias
					for ci := 0; ci < c.inC; ci++ {
						for ki := 0; ki < kernel; ki++ {
							ii := i + ki - 1
							if ii < 0 || ii >= h {
								continue
							}
							for kj := 0; kj < kernel; kj++ {
								jj := j + kj - 1
								if jj < 0 || jj >= w {
									continue
								}
								wv := c.Weight.W[((o*c.inC+ci)*kernel+ki)*kernel+kj]
								xv := x[((b*c.inC+ci)*h+ii)*w+jj]
								sum += wv * xv
							}
						}
					}
					y[((b*c.outC+o)*h+i)*w+j] = sum
				}
			}
		}
	}
	return y
}

func (c *Conv2D) Backward(dy []float64) []float64 {
	h, w := c.h, c.w
	batch := c.lastB
	x := c.lastX
	dx := make([]float64, len(x))
	for b := 0; b < batch; b++ {
		for o := 0; o < c.outC; o++ {
			for i := 0; i < h; i++ {
				for j := 0; j < w; j++ {
					g := dy[((b*c.outC+o)*h+i)*w+j]
					if g == 0 {
						continue
					}
					c.Bias.Grad[o] += g
					for ci := 0; ci < c.inC; ci++ {
						for ki := 0; ki < kernel; ki++ {
							ii := i + ki - 1
							if ii < 0 || ii >= h {
								continue
							}
							for kj := 0; kj < kernel; kj++ {
								jj := j + kj - 1
								if jj < 0 || jj >= w {
									continue
								}
								widx := ((o*c.inC+ci)*kernel+ki)*kernel + kj
								xidx := ((b*c.inC+ci)*h+ii)*w + jj
								c.Weight.Grad[widx] += g * x[xidx]
								dx[xidx] += c.Weight.W[widx] * g
							}
						}
					}
				}
			}
		}
	}
	return dx
}

// BatchNorm2D normalizes each channel over the batch and spatial extent.
// Training passes use batch statistics and update running estimates; eval
// passes use the running estimates.
type BatchNorm2D struct {
	c, h, w int
	Gamma   *Param
	Beta    *Param

	runMean []float64
	runVar  []float64

	lastXhat   []float64
	lastInvStd []float64
	lastB      int
}

const (
	bnMomentum = 0.1
	bnEps      = 1e-5
)

func NewBatchNorm2D(c, h, w int) *BatchNorm2D {
	bn := &BatchNorm2D{
		c:       c,
		h:       h,
		w:       w,
		Gamma:   newParam(c),
		Beta:    newParam(c),
		runMean: make([]float64, c),
		runVar:  make([]float64, c),
	}
	for i := 0; i < c; i++ {
		bn.Gamma.W[i] = 1
		bn.runVar[i] = 1
	}
	return bn
}

func (bn *BatchNorm2D) Forward(x []float64, batch int, training bool) []float64 {
	h, w := bn.h, bn.w
	area := h * w
	y := make([]float64, len(x))

	if !training {
		for ci := 0; ci < bn.c; ci++ {
			invStd := 1.0 / math.Sqrt(bn.runVar[ci]+bnEps)
			g, beta := bn.Gamma.W[ci], bn.Beta.W[ci]
			mean := bn.runMean[ci]
			for b := 0; b < batch; b++ {
				base := (b*bn.c + ci) * area
				for k := 0; k < area; k++ {
					y[base+k] = g*(x[base+k]-mean)*invStd + beta
				}
			}
		}
		return y
	}

	count := float64(batch * area)
	bn.lastB = batch
	bn.lastXhat = make([]float64, len(x))
	bn.lastInvStd = make([]float64, bn.c)

	for ci := 0; ci < bn.c; ci++ {
		var sum float64
		for b := 0; b < batch; b++ {
			base := (b*bn.c + ci) * area
			for k := 0; k < area; k++ {
				sum += x[base+k]
			}
		}
		mean := sum / count

		var sq float64
		for b := 0; b < batch; b++ {
			base := (b*bn.c + ci) * area
			for k := 0; k < area; k++ {
				d := x[base+k] - mean
				sq += d * d
			}
		}
		variance := sq / count
		invStd := 1.0 / math.Sqrt(variance+bnEps)
		bn.lastInvStd[ci] = invStd

		// running stats keep the unbiased variance
		unbiased := variance
		if count > 1 {
			unbiased = sq / (count - 1)
		}
		bn.runMean[ci] = (1-bnMomentum)*bn.runMean[ci] + bnMomentum*mean
		bn.runVar[ci] = (1-bnMomentum)*bn.runVar[ci] + bnMomentum*unbiased

		g, beta := bn.Gamma.W[ci], bn.Beta.W[ci]
		for b := 0; b < batch; b++ {
			base := (b*bn.c + ci) * area
			for k := 0; k < area; k++ {
				xh := (x[base+k] - mean) * invStd
				bn.lastXhat[base+k] = xh
				y[base+k] = g*xh + beta
			}
		}
	}
	return y
}

func (bn *BatchNorm2D) Backward(dy []float64) []float64 {
	h, w := bn.h, bn.w
	area := h * w
	batch := bn.lastB
	count := float64(batch * area)
	dx := make([]float64, len(dy))

	for ci := 0; ci < bn.c; ci++ {
		var sumDy, sumDyXhat float64
		for b := 0; b < batch; b++ {
			base := (b*bn.c + ci) * area
			for k := 0; k < area; k++ {
				sumDy += dy[base+k]
				sumDyXhat += dy[base+k] * bn.lastXhat[base+k]
			}
		}
		bn.Beta.Grad[ci] += sumDy
		bn.Gamma.Grad[ci] += sumDyXhat

		scale := bn.Gamma.W[ci] * bn.lastInvStd[ci]
		meanDy := sumDy / count
		meanDyXhat := sumDyXhat / count
		for b := 0; b < batch; b++ {
			base := (b*bn.c + ci) * area
			for k := 0; k < area; k++ {
				dx[base+k] = scale * (dy[base+k] - meanDy - bn.lastXhat[base+k]*meanDyXhat)
			}
		}
	}
	return dx
}

// ReLU remembers which activations were clamped.
type ReLU struct {
	lastY []float64
}

func (r *ReLU) Forward(x []float64) []float64 {
	y := make([]float64, len(x))
	for i, v := range x {
		if v > 0 {
			y[i] = v
		}
	}
	r.lastY = y
	return y
}

func (r *ReLU) Backward(dy []float64) []float64 {
	dx := make([]float64, len(dy))
	for i := range dy {
		if r.lastY[i] > 0 {
			dx[i] = dy[i]
		}
	}
	return dx
}

// MaxPool halves both spatial dimensions with a 2x2 window; the input
// extent must be even.
type MaxPool struct {
	c, h, w int // input extent

	lastArg []int
	lastN   int
}

func NewMaxPool(c, h, w int) *MaxPool {
	return &MaxPool{c: c, h: h, w: w}
}

func (p *MaxPool) Forward(x []float64, batch int) []float64 {
	oh, ow := p.h/2, p.w/2
	y := make([]float64, batch*p.c*oh*ow)
	p.lastArg = make([]int, len(y))
	p.lastN = len(x)
	for b := 0; b < batch; b++ {
		for ci := 0; ci < p.c; ci++ {
			for i := 0; i < oh; i++ {
				for j := 0; j < ow; j++ {
					best := math.Inf(-1)
					arg := 0
					for di := 0; di < 2; di++ {
						for dj := 0; dj < 2; dj++ {
							idx := ((b*p.c+ci)*p.h+2*i+di)*p.w + 2*j + dj
							if x[idx] > best {
								best = x[idx]
								arg = idx
							}
						}
					}
					oidx := ((b*p.c+ci)*oh+i)*ow + j
					y[oidx] = best
					p.lastArg[oidx] = arg
				}
			}
		}
	}
	return y
}

func (p *MaxPool) Backward(dy []float64) []float64 {
	dx := make([]float64, p.lastN)
	for i, g := range dy {
		dx[p.lastArg[i]] += g
	}
	return dx
}

// Linear is a fully-connected layer, weights stored (out x in) row-major.
type Linear struct {
	in, out int
	Weight  *Param
	Bias    *Param

	lastX []float64
	lastB int
}

func NewLinear(in, out int, rng *rand.Rand) *Linear {
	l := &Linear{
		in:     in,
		out:    out,
		Weight: newParam(out * in),
		Bias:   newParam(out),
	}
	bound := 1.0 / math.Sqrt(float64(in))
	uniformInit(l.Weight.W, bound, rng)
	uniformInit(l.Bias.W, bound, rng)
	return l
}

func (l *Linear) Forward(x []float64, batch int) []float64 {
	l.lastX = x
	l.lastB = batch
	y := make([]float64, batch*l.out)
	for b := 0; b < batch; b++ {
		xb := x[b*l.in : (b+1)*l.in]
		for o := 0; o < l.out; o++ {
			sum := l.Bias.W[o]
			row := l.Weight.W[o*l.in : (o+1)*l.in]
			for i, xv := range xb {
				sum += row[i] * xv
			}
			y[b*l.out+o] = sum
		}
	}
	return y
}

func (l *Linear) Backward(dy []float64) []float64 {
	batch := l.lastB
	dx := make([]float64, batch*l.in)
	for b := 0; b < batch; b++ {
		xb := l.lastX[b*l.in : (b+1)*l.in]
		dxb := dx[b*l.in : (b+1)*l.in]
		for o := 0; o < l.out; o++ {
			g := dy[b*l.out+o]
			if g == 0 {
				continue
			}
			l.Bias.Grad[o] += g
			row := l.Weight.W[o*l.in : (o+1)*l.in]
			grow := l.Weight.Grad[o*l.in : (o+1)*l.in]
			for i, xv := range xb {
				grow[i] += g * xv
				dxb[i] += row[i] * g
			}
		}
	}
	return dx
}

// Dropout zeroes half the activations during training and rescales the
// survivors, so eval passes need no correction.
type Dropout struct {
	rate float64
	rng  *rand.Rand

	lastMask []float64
}

func NewDropout(rate float64, rng *rand.Rand) *Dropout {
	return &Dropout{rate: rate, rng: rng}
}

func (d *Dropout) Forward(x []float64, training bool) []float64 {
	if !training {
		d.lastMask = nil
		return x
	}
	keep := 1 - d.rate
	y := make([]float64, len(x))
	d.lastMask = make([]float64, len(x))
	for i, v := range x {
		if d.rng.Float64() < keep {
			d.lastMask[i] = 1 / keep
			y[i] = v / keep
		}
	}
	return y
}

func (d *Dropout) Backward(dy []float64) []float64 {
	if d.lastMask == nil {
		return dy
	}
	dx := make([]float64, len(dy))
	for i := range dy {
		dx[i] = dy[i] * d.lastMask[i]
	}
	return dx
}
