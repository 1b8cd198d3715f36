package cnn

import "math"

// SoftmaxCrossEntropy computes the mean multi-class cross-entropy of raw
// logits against integer labels, and the gradient with respect to the
// logits (softmax minus one-hot, averaged over the batch).
func SoftmaxCrossEntropy(logits []float64, labels []int, classes int) (float64, []float64) {
	batch := len(labels)
	dlogits := make([]float64, len(logits))
	var loss float64

	for b := 0; b < batch; b++ {
		row := logits[b*classes : (b+1)*classes]
		drow := dlogits[b*classes : (b+1)*classes]

		maxv := row[0]
		for _, v := range row[1:] {
			if v > maxv {
				maxv = v
			}
		}
		var sum float64
		for i, v := range row {
			e := math.Exp(v - maxv)
			drow[i] = e
			sum += e
		}
		logSum := math.Log(sum) + maxv

		loss += logSum - row[labels[b]]
		inv := 1.0 / (sum * float64(batch))
		for i := range drow {
			drow[i] *= inv
		}
		drow[labels[b]] -= 1.0 / float64(batch)
	}

	return loss / float64(batch), dlogits
}

// Argmax returns the predicted class per row of a (batch, classes) logits
// matrix.
func Argmax(logits []float64, classes int) []int {
	batch := len(logits) / classes
	out := make([]int, batch)
	for b := 0; b < batch; b++ {
		row := logits[b*classes : (b+1)*classes]
		best := 0
		for i, v := range row {
			if v > row[best] {
				best = i
			}
		}
		out[b] = best
	}
	return out
}
