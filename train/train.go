// Package train drives gradient-based optimization of the keyword-spotting
// network and measures held-out accuracy.
package train

import (
	"fmt"

	"github.com/fatih/color"

	"kws/cnn"
	"kws/dataset"
	"kws/types"
)

var yellow = color.New(color.FgYellow)

type Config struct {
	Epochs   int
	MaxLR    float64
	ClipNorm float64
}

// History holds the four per-epoch metric series, one entry per completed
// epoch. Accuracies are percentages.
type History struct {
	TrainLoss []float64
	TrainAcc  []float64
	ValLoss   []float64
	ValAcc    []float64
}

func (h *History) append(m types.EpochMetrics) {
	h.TrainLoss = append(h.TrainLoss, m.TrainLoss)
	h.TrainAcc = append(h.TrainAcc, m.TrainAcc)
	h.ValLoss = append(h.ValLoss, m.ValLoss)
	h.ValAcc = append(h.ValAcc, m.ValAcc)
}

// Epochs returns the recorded metrics as one row per epoch.
func (h *History) Epochs() []types.EpochMetrics {
	out := make([]types.EpochMetrics, len(h.TrainLoss))
	for i := range out {
		out[i] = types.EpochMetrics{
			Epoch:     i + 1,
			TrainLoss: h.TrainLoss[i],
			TrainAcc:  h.TrainAcc[i],
			ValLoss:   h.ValLoss[i],
			ValAcc:    h.ValAcc[i],
		}
	}
	return out
}

// Train runs the fixed-length training loop, mutating the model in place.
// One epoch is one full pass over the training loader; after each epoch an
// eval pass over the validation loader records the same two metrics. The
// learning rate follows a one-cycle schedule advanced per optimizer step,
// and gradients are clipped to a global norm before every step.
func Train(m *cnn.Model, trainLoader, valLoader *dataset.Loader, cfg Config) (*History, error) {
	if trainLoader.Batches() == 0 {
		return nil, fmt.Errorf("training loader is empty")
	}
	if valLoader.Batches() == 0 {
		return nil, fmt.Errorf("validation loader is empty")
	}

	params := m.Params()
	opt := cnn.NewAdam(params)
	sched := cnn.NewOneCycle(cfg.MaxLR, trainLoader.Batches()*cfg.Epochs)

	history := &History{}
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		var lossSum float64
		var correct, seen, batches int

		ch := trainLoader.Epoch()
		for batch := range ch {
			logits, err := m.Forward(&batch, true)
			if err != nil {
				drain(ch)
				return nil, err
			}
			loss, dlogits := cnn.SoftmaxCrossEntropy(logits, batch.Labels, types.NumClasses)

			m.ZeroGrad()
			m.Backward(dlogits)
			cnn.ClipGradNorm(params, cfg.ClipNorm)
			opt.Step(sched.LR())
			sched.Next()

			lossSum += loss
			batches++
			for i, p := range cnn.Argmax(logits, types.NumClasses) {
				if p == batch.Labels[i] {
					correct++
				}
			}
			seen += batch.Size()
		}

		trainLoss := lossSum / float64(batches)
		trainAcc := 100 * float64(correct) / float64(seen)

		valLoss, valAcc, err := evalPass(m, valLoader)
		if err != nil {
			return nil, err
		}

		history.append(types.EpochMetrics{
			Epoch:     epoch,
			TrainLoss: trainLoss,
			TrainAcc:  trainAcc,
			ValLoss:   valLoss,
			ValAcc:    valAcc,
		})
		yellow.Printf("Epoch [%d/%d], Train Loss: %.4f, Train Acc: %.2f%%, Val Loss: %.4f, Val Acc: %.2f%%\n",
			epoch, cfg.Epochs, trainLoss, trainAcc, valLoss, valAcc)
	}

	return history, nil
}

// Evaluate runs a single no-grad pass and returns the percentage accuracy.
func Evaluate(m *cnn.Model, loader *dataset.Loader) (float64, error) {
	if loader.Batches() == 0 {
		return 0, fmt.Errorf("evaluation loader is empty")
	}
	_, acc, err := evalPass(m, loader)
	return acc, err
}

func evalPass(m *cnn.Model, loader *dataset.Loader) (loss, acc float64, err error) {
	var lossSum float64
	var correct, seen, batches int
	ch := loader.Epoch()
	for batch := range ch {
		logits, err := m.Forward(&batch, false)
		if err != nil {
			drain(ch)
			return 0, 0, err
		}
		l, _ := cnn.SoftmaxCrossEntropy(logits, batch.Labels, types.NumClasses)
		lossSum += l
		batches++
		for i, p := range cnn.Argmax(logits, types.NumClasses) {
			if p == batch.Labels[i] {
				correct++
			}
		}
		seen += batch.Size()
	}
	return lossSum / float64(batches), 100 * float64(correct) / float64(seen), nil
}

// drain consumes the rest of an epoch so its collation workers can exit
// before an error return.
func drain(ch <-chan types.Batch) {
	for range ch {
	}
}
