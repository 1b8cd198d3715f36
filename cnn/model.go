package cnn

import (
	"fmt"
	"math/rand"

	"kws/dsp"
	"kws/types"
)

// Network geometry. The classifier head width is a hard-coded constant
// coupled to the fixed clip length and the spectrogram parameters: 16000
// samples give 32 frames, three pooling stages reduce 128x32 to 16x4, and
// 256*16*4 = 16384. Changing any of those inputs without changing FCInput
// is a configuration error caught at the first forward pass.
const (
	InputLength = 16000
	melRows     = dsp.NumMels // 128

	conv1Out = 64
	conv2Out = 128
	conv3Out = 256

	FCInput  = 16384 // conv3Out * (melRows/8) * (melFrames/8)
	FCHidden = 512
	FCMid    = 128

	dropoutRate = 0.5
)

var melFrames = dsp.Frames(InputLength) // 32

// Model maps raw waveform batches to class logits. The spectrogram front
// end carries no learned parameters; gradients stop at the first
// convolution's input.
type Model struct {
	conv1 *Conv2D
	bn1   *BatchNorm2D
	act1  *ReLU
	pool1 *MaxPool

	conv2 *Conv2D
	bn2   *BatchNorm2D
	act2  *ReLU
	pool2 *MaxPool

	conv3 *Conv2D
	bn3   *BatchNorm2D
	act3  *ReLU
	pool3 *MaxPool

	fc1   *Linear
	actF1 *ReLU
	drop  *Dropout
	fc2   *Linear
	actF2 *ReLU
	fc3   *Linear
}

func NewModel(rng *rand.Rand) *Model {
	h, w := melRows, melFrames
	m := &Model{}

	m.conv1 = NewConv2D(1, conv1Out, h, w, rng)
	m.bn1 = NewBatchNorm2D(conv1Out, h, w)
	m.act1 = &ReLU{}
	m.pool1 = NewMaxPool(conv1Out, h, w)
	h, w = h/2, w/2

	m.conv2 = NewConv2D(conv1Out, conv2Out, h, w, rng)
	m.bn2 = NewBatchNorm2D(conv2Out, h, w)
	m.act2 = &ReLU{}
	m.pool2 = NewMaxPool(conv2Out, h, w)
	h, w = h/2, w/2

	m.conv3 = NewConv2D(conv2Out, conv3Out, h, w, rng)
	m.bn3 = NewBatchNorm2D(conv3Out, h, w)
	m.act3 = &ReLU{}
	m.pool3 = NewMaxPool(conv3Out, h, w)
	h, w = h/2, w/2

	m.fc1 = NewLinear(FCInput, FCHidden, rng)
	m.actF1 = &ReLU{}
	// dropout rolls masks during training forwards, concurrently with the
	// loader's collation workers, so it gets a generator of its own
	m.drop = NewDropout(dropoutRate, rand.New(rand.NewSource(rng.Int63())))
	m.fc2 = NewLinear(FCHidden, FCMid, rng)
	m.actF2 = &ReLU{}
	m.fc3 = NewLinear(FCMid, types.NumClasses, rng)

	return m
}

// Forward computes logits of shape (batch, NumClasses) for a waveform
// batch. training selects batch statistics and dropout.
func (m *Model) Forward(b *types.Batch, training bool) ([]float64, error) {
	batch := b.Size()
	if batch == 0 {
		return nil, fmt.Errorf("empty batch")
	}

	x, err := m.features(b)
	if err != nil {
		return nil, err
	}

	x = m.conv1.Forward(x, batch)
	x = m.bn1.Forward(x, batch, training)
	x = m.act1.Forward(x)
	x = m.pool1.Forward(x, batch)

	x = m.conv2.Forward(x, batch)
	x = m.bn2.Forward(x, batch, training)
	x = m.act2.Forward(x)
	x = m.pool2.Forward(x, batch)

	x = m.conv3.Forward(x, batch)
	x = m.bn3.Forward(x, batch, training)
	x = m.act3.Forward(x)
	x = m.pool3.Forward(x, batch)

	if len(x) != batch*FCInput {
		return nil, fmt.Errorf("flattened feature size %d does not match classifier head input %d",
			len(x)/batch, FCInput)
	}

	x = m.fc1.Forward(x, batch)
	x = m.actF1.Forward(x)
	x = m.drop.Forward(x, training)
	x = m.fc2.Forward(x, batch)
	x = m.actF2.Forward(x)
	x = m.fc3.Forward(x, batch)

	return x, nil
}

// Backward propagates the loss gradient through the whole stack,
// accumulating parameter gradients. Must follow a training-mode Forward.
func (m *Model) Backward(dlogits []float64) {
	d := m.fc3.Backward(dlogits)
	d = m.actF2.Backward(d)
	d = m.fc2.Backward(d)
	d = m.drop.Backward(d)
	d = m.actF1.Backward(d)
	d = m.fc1.Backward(d)

	d = m.pool3.Backward(d)
	d = m.act3.Backward(d)
	d = m.bn3.Backward(d)
	d = m.conv3.Backward(d)

	d = m.pool2.Backward(d)
	d = m.act2.Backward(d)
	d = m.bn2.Backward(d)
	d = m.conv2.Backward(d)

	d = m.pool1.Backward(d)
	d = m.act1.Backward(d)
	d = m.bn1.Backward(d)
	m.conv1.Backward(d) // gradient into the spectrogram is discarded
}

// features converts each waveform into its mel spectrogram and lays the
// batch out as (batch, 1, melRows, melFrames).
func (m *Model) features(b *types.Batch) ([]float64, error) {
	batch := b.Size()
	out := make([]float64, batch*melRows*melFrames)
	for i := 0; i < batch; i++ {
		mel, err := dsp.MelSpectrogram(b.Wave(i))
		if err != nil {
			return nil, err
		}
		if len(mel) != melRows || len(mel[0]) != melFrames {
			return nil, fmt.Errorf("spectrogram shape %dx%d does not match model input %dx%d",
				len(mel), len(mel[0]), melRows, melFrames)
		}
		base := i * melRows * melFrames
		for r := 0; r < melRows; r++ {
			copy(out[base+r*melFrames:base+(r+1)*melFrames], mel[r])
		}
	}
	return out, nil
}

// Params returns every learnable tensor in a stable order.
func (m *Model) Params() []*Param {
	return []*Param{
		m.conv1.Weight, m.conv1.Bias, m.bn1.Gamma, m.bn1.Beta,
		m.conv2.Weight, m.conv2.Bias, m.bn2.Gamma, m.bn2.Beta,
		m.conv3.Weight, m.conv3.Bias, m.bn3.Gamma, m.bn3.Beta,
		m.fc1.Weight, m.fc1.Bias,
		m.fc2.Weight, m.fc2.Bias,
		m.fc3.Weight, m.fc3.Bias,
	}
}

// ZeroGrad clears every gradient accumulator.
func (m *Model) ZeroGrad() {
	for _, p := range m.Params() {
		p.zeroGrad()
	}
}
