package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"

	"kws/types"
)

// DecodeBytes parses a 16-bit mono PCM WAV file held in memory and returns
// its samples scaled to [-1, 1).
func DecodeBytes(data []byte) (*types.WavInfo, error) {
	if len(data) < 44 {
		return nil, errors.New("invalid WAV file size (too small)")
	}

	var header types.WavHeader
	if err := binary.Read(bytes.NewReader(data[:44]), binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	if string(header.ChunkID[:]) != "RIFF" ||
		string(header.Format[:]) != "WAVE" ||
		header.AudioFormat != 1 {
		return nil, errors.New("invalid WAV header format")
	}
	if header.NumChannels != 1 {
		return nil, errors.New("unsupported channel count (expect mono)")
	}
	if header.BitsPerSample != 16 {
		return nil, errors.New("unsupported bits-per-sample (expect 16-bit PCM)")
	}

	info := &types.WavInfo{
		Channels:   1,
		SampleRate: int(header.SampleRate),
		Data:       data[44:],
	}

	sampleCount := len(info.Data) / 2
	int16Buf := make([]int16, sampleCount)
	if err := binary.Read(bytes.NewReader(info.Data[:sampleCount*2]), binary.LittleEndian, int16Buf); err != nil {
		return nil, err
	}

	const scale = 1.0 / 32768.0
	samples := make([]float64, sampleCount)
	for i, s := range int16Buf {
		samples[i] = float64(s) * scale
	}
	info.Samples = samples

	info.Duration = float64(sampleCount) / float64(header.SampleRate)
	return info, nil
}

func ReadWavInfo(filename string) (*types.WavInfo, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return DecodeBytes(data)
}

// EncodeBytes renders samples as a 16-bit mono PCM WAV file. Amplitudes
// outside [-1, 1) are clipped.
func EncodeBytes(samples []float64, sampleRate int) []byte {
	dataLen := uint32(len(samples) * 2)
	header := types.WavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataLen,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * 2),
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataLen,
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, &header)
	pcm := make([]int16, len(samples))
	for i, s := range samples {
		v := s * 32768.0
		if v > 32767 {
			v = 32767
		}
		if v < -32768 {
			v = -32768
		}
		pcm[i] = int16(v)
	}
	binary.Write(&buf, binary.LittleEndian, pcm)
	return buf.Bytes()
}
