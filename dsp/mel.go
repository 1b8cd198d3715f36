package dsp

import (
	"errors"
	"math"

	"github.com/mjibson/go-dsp/fft"
)

const (
	SampleRate = 16000 // expected clip sample rate
	WindowSize = 1024  // size of each FFT window
	HopSize    = 512   // hop size between windows
	NumMels    = 128   // mel bands
	MinFreq    = 0.0
	MaxFreq    = 8000.0 // Nyquist at 16 kHz
)

var (
	hannWindow []float64
	melBank    [][]float64 // NumMels x (WindowSize/2 + 1)
)

func init() {
	hannWindow = make([]float64, WindowSize)
	for i := range hannWindow {
		hannWindow[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(WindowSize-1))
	}
	melBank = melFilterbank(NumMels, WindowSize/2+1, SampleRate, MinFreq, MaxFreq)
}

func hzToMel(f float64) float64 {
	return 2595.0 * math.Log10(1.0+f/700.0)
}

func melToHz(m float64) float64 {
	return 700.0 * (math.Pow(10, m/2595.0) - 1.0)
}

// melFilterbank builds triangular filters with centers evenly spaced on the
// mel scale between fmin and fmax.
func melFilterbank(numMels, numBins, sampleRate int, fmin, fmax float64) [][]float64 {
	melMin := hzToMel(fmin)
	melMax := hzToMel(fmax)

	// numMels+2 points: each filter spans its two neighbours
	centers := make([]float64, numMels+2)
	for i := range centers {
		mel := melMin + (melMax-melMin)*float64(i)/float64(numMels+1)
		centers[i] = melToHz(mel) * float64(WindowSize) / float64(sampleRate)
	}

	bank := make([][]float64, numMels)
	for m := 0; m < numMels; m++ {
		row := make([]float64, numBins)
		left, center, right := centers[m], centers[m+1], centers[m+2]
		for k := 0; k < numBins; k++ {
			f := float64(k)
			switch {
			case f <= left || f >= right:
				// outside the triangle
			case f <= center:
				if center > left {
					row[k] = (f - left) / (center - left)
				}
			default:
				if right > center {
					row[k] = (right - f) / (right - center)
				}
			}
		}
		bank[m] = row
	}
	return bank
}

// Frames reports how many STFT frames a waveform of n samples produces
// after center padding.
func Frames(n int) int {
	return n/HopSize + 1
}

// reflectPad mirrors pad samples of x around each edge; the edge sample
// itself is not repeated.
func reflectPad(x []float64, pad int) []float64 {
	out := make([]float64, len(x)+2*pad)
	copy(out[pad:], x)
	for i := 1; i <= pad; i++ {
		out[pad-i] = x[i]
		out[pad+len(x)-1+i] = x[len(x)-1-i]
	}
	return out
}

// MelSpectrogram converts a raw waveform into a power mel spectrogram of
// shape (NumMels, Frames(len(wave))). The input must be longer than half
// the FFT window so center padding is well defined.
func MelSpectrogram(wave []float64) ([][]float64, error) {
	if len(wave) <= WindowSize/2 {
		return nil, errors.New("waveform too short for spectrogram window")
	}

	padded := reflectPad(wave, WindowSize/2)
	frames := (len(padded)-WindowSize)/HopSize + 1
	numBins := WindowSize/2 + 1

	// power spectrogram, frame by frame
	power := make([][]float64, frames)
	buf := make([]float64, WindowSize)
	for t := 0; t < frames; t++ {
		start := t * HopSize
		for i := 0; i < WindowSize; i++ {
			buf[i] = padded[start+i] * hannWindow[i]
		}
		coeffs := fft.FFTReal(buf)
		row := make([]float64, numBins)
		for k := 0; k < numBins; k++ {
			re := real(coeffs[k])
			im := imag(coeffs[k])
			row[k] = re*re + im*im
		}
		power[t] = row
	}

	// project onto the mel bands: (NumMels x bins) * (bins x frames)
	mel := make([][]float64, NumMels)
	for m := 0; m < NumMels; m++ {
		row := make([]float64, frames)
		filter := melBank[m]
		for t := 0; t < frames; t++ {
			var sum float64
			spec := power[t]
			for k := range filter {
				if filter[k] != 0 {
					sum += filter[k] * spec[k]
				}
			}
			row[t] = sum
		}
		mel[m] = row
	}
	return mel, nil
}
