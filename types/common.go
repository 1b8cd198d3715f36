package types

// NumClasses is the closed label set of the speech commands task:
// the ten core words plus silence and unknown.
const NumClasses = 12

type WavInfo struct {
	Channels   int
	SampleRate int
	Samples    []float64
	Data       []byte
	Duration   float64
}

type WavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// Sample is one labeled clip. Wave holds raw amplitudes at 16 kHz; Label is
// a class id in [0, NumClasses).
type Sample struct {
	Wave  []float64
	Label int
}

// Batch is a collated group of samples. Waves is laid out row-major as
// (batch, 1, length); every waveform in a batch has identical length.
type Batch struct {
	Waves  []float64
	Shape  [3]int // batch, channels (always 1), length
	Labels []int
}

func (b *Batch) Size() int { return b.Shape[0] }

// Wave returns the i-th waveform as a subslice of the collated buffer.
func (b *Batch) Wave(i int) []float64 {
	l := b.Shape[2]
	return b.Waves[i*l : (i+1)*l]
}

// EpochMetrics holds one completed epoch's scalars. Accuracies are
// percentages in [0, 100].
type EpochMetrics struct {
	Epoch     int
	TrainLoss float64
	TrainAcc  float64
	ValLoss   float64
	ValAcc    float64
}

// Run describes one training run as stored in the run ledger.
type Run struct {
	ID        int64
	StartedAt string
	Epochs    int
	BatchSize int
	Limit     int
	Seed      int64
	TestAcc   float64
}
