package cnn

import "math"

// OneCycle ramps the learning rate from maxLR/divFactor up to maxLR over
// the first pctStart of all steps, then anneals it down to
// maxLR/(divFactor*finalDivFactor). Both phases are cosine-shaped. Advanced
// once per optimizer step, not per epoch.
type OneCycle struct {
	maxLR      float64
	totalSteps int
	step       int
}

const (
	pctStart       = 0.3
	divFactor      = 25.0
	finalDivFactor = 1e4
)

func NewOneCycle(maxLR float64, totalSteps int) *OneCycle {
	if totalSteps < 1 {
		totalSteps = 1
	}
	return &OneCycle{maxLR: maxLR, totalSteps: totalSteps}
}

// LR returns the learning rate for the current step.
func (s *OneCycle) LR() float64 {
	initial := s.maxLR / divFactor
	final := initial / finalDivFactor

	t := float64(s.step)
	up := pctStart * float64(s.totalSteps)
	if t < up {
		return annealCos(initial, s.maxLR, t/up)
	}
	down := float64(s.totalSteps) - up
	if down <= 0 {
		return s.maxLR
	}
	frac := (t - up) / down
	if frac > 1 {
		frac = 1
	}
	return annealCos(s.maxLR, final, frac)
}

// Next advances the schedule by one optimizer step.
func (s *OneCycle) Next() {
	if s.step < s.totalSteps {
		s.step++
	}
}

func annealCos(from, to, frac float64) float64 {
	cos := math.Cos(math.Pi * frac)
	return to + (from-to)/2*(cos+1)
}
