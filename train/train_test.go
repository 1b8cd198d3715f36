package train

import (
	"math"
	"math/rand"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kws/cnn"
	"kws/dataset"
	"kws/types"
)

// toneView serves synthetic fixed-length clips, one tone per class.
type toneView struct {
	n     int
	waves [][]float64
}

func newToneView(n int, rng *rand.Rand) *toneView {
	v := &toneView{n: n}
	for i := 0; i < n; i++ {
		w := make([]float64, cnn.InputLength)
		freq := 200.0 * float64(i%types.NumClasses+1)
		for j := range w {
			w[j] = 0.1*math.Sin(2*math.Pi*freq*float64(j)/16000) + rng.NormFloat64()*0.001
		}
		v.waves = append(v.waves, w)
	}
	return v
}

func (v *toneView) Len() int { return v.n }
func (v *toneView) Get(i int) types.Sample {
	return types.Sample{Wave: v.waves[i], Label: i % types.NumClasses}
}

func TestTrainRecordsOneEntryPerEpoch(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	model := cnn.NewModel(rng)

	trainLoader := dataset.NewLoader(newToneView(4, rng), 2, cnn.InputLength, false, 1, rng)
	valLoader := dataset.NewLoader(newToneView(2, rng), 2, cnn.InputLength, false, 1, rng)

	h, err := Train(model, trainLoader, valLoader, Config{Epochs: 1, MaxLR: 0.001, ClipNorm: 1.0})
	require.NoError(t, err)

	require.Len(t, h.TrainLoss, 1)
	require.Len(t, h.TrainAcc, 1)
	require.Len(t, h.ValLoss, 1)
	require.Len(t, h.ValAcc, 1)

	assert.False(t, math.IsNaN(h.TrainLoss[0]))
	assert.False(t, math.IsNaN(h.ValLoss[0]))
	assert.GreaterOrEqual(t, h.TrainAcc[0], 0.0)
	assert.LessOrEqual(t, h.TrainAcc[0], 100.0)
	assert.GreaterOrEqual(t, h.ValAcc[0], 0.0)
	assert.LessOrEqual(t, h.ValAcc[0], 100.0)
}

func TestTrainRecordsAllEpochs(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	model := cnn.NewModel(rng)

	trainLoader := dataset.NewLoader(newToneView(2, rng), 2, cnn.InputLength, false, 1, rng)
	valLoader := dataset.NewLoader(newToneView(2, rng), 2, cnn.InputLength, false, 1, rng)

	const epochs = 2
	h, err := Train(model, trainLoader, valLoader, Config{Epochs: epochs, MaxLR: 0.001, ClipNorm: 1.0})
	require.NoError(t, err)

	assert.Len(t, h.TrainLoss, epochs)
	assert.Len(t, h.ValAcc, epochs)
	rows := h.Epochs()
	require.Len(t, rows, epochs)
	assert.Equal(t, epochs, rows[epochs-1].Epoch)
}

func TestTrainRejectsEmptyLoaders(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	model := cnn.NewModel(rng)

	empty := dataset.NewLoader(newToneView(0, rng), 2, cnn.InputLength, false, 1, rng)
	full := dataset.NewLoader(newToneView(2, rng), 2, cnn.InputLength, false, 1, rng)

	_, err := Train(model, empty, full, Config{Epochs: 1, MaxLR: 0.001, ClipNorm: 1.0})
	assert.Error(t, err)

	_, err = Train(model, full, empty, Config{Epochs: 1, MaxLR: 0.001, ClipNorm: 1.0})
	assert.Error(t, err)
}

func TestTrainErrorLeavesNoEpochGoroutines(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	model := cnn.NewModel(rng)

	// clips too short for the model front end: the first forward fails while
	// the loader is still collating the rest of the epoch
	bad := dataset.NewLoader(newToneView(16, rng), 2, 1024, false, 4, rng)
	ok := dataset.NewLoader(newToneView(2, rng), 2, cnn.InputLength, false, 1, rng)

	before := runtime.NumGoroutine()
	_, err := Train(model, bad, ok, Config{Epochs: 1, MaxLR: 0.001, ClipNorm: 1.0})
	require.Error(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.LessOrEqual(t, runtime.NumGoroutine(), before)
}

func TestEvaluateBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	model := cnn.NewModel(rng)
	loader := dataset.NewLoader(newToneView(3, rng), 2, cnn.InputLength, false, 1, rng)

	acc, err := Evaluate(model, loader)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc, 0.0)
	assert.LessOrEqual(t, acc, 100.0)
}

func TestHistoryEpochs(t *testing.T) {
	h := &History{
		TrainLoss: []float64{2.2, 1.9},
		TrainAcc:  []float64{20, 35},
		ValLoss:   []float64{2.3, 2.0},
		ValAcc:    []float64{18, 30},
	}
	rows := h.Epochs()
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Epoch)
	assert.Equal(t, 2, rows[1].Epoch)
	assert.Equal(t, 1.9, rows[1].TrainLoss)
	assert.Equal(t, 30.0, rows[1].ValAcc)
}
