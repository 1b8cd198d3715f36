package speechcommands

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"kws/types"
	"kws/wav"
)

// clipLength is one second at the corpus sample rate; silence clips are cut
// to this size.
const clipLength = 16000

type clipRef struct {
	path  string
	label int
	// for silence slices cut out of background recordings
	offset int
	length int
}

// Stream yields decoded samples from an ordered clip list. It implements
// the dataset Source contract.
type Stream struct {
	clips []clipRef
	pos   int
}

func (s *Stream) Next() (types.Sample, bool) {
	if s.pos >= len(s.clips) {
		return types.Sample{}, false
	}
	ref := s.clips[s.pos]
	s.pos++

	info, err := wav.ReadWavInfo(ref.path)
	if err != nil {
		// clips are expected to conform once the corpus is extracted
		panic(fmt.Sprintf("cannot decode %s: %v", ref.path, err))
	}
	wave := info.Samples
	if ref.length > 0 {
		end := ref.offset + ref.length
		if end > len(wave) {
			end = len(wave)
		}
		wave = wave[ref.offset:end]
	}
	return types.Sample{Wave: wave, Label: ref.label}, true
}

func (s *Stream) Len() int { return len(s.clips) }

// Sources scans the corpus and returns the train and test streams. The
// published testing list defines the test partition; background recordings
// are sliced into one-second silence clips, with every tenth slice held out
// for test.
func (c *Corpus) Sources() (train, test *Stream, err error) {
	testSet, err := readList(filepath.Join(c.Dir, testingList))
	if err != nil {
		return nil, nil, fmt.Errorf("error reading testing list: %v", err)
	}

	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return nil, nil, err
	}

	var trainClips, testClips []clipRef
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if e.Name() == backgroundDir {
			continue
		}
		label := LabelFor(e.Name())
		wavs, err := filepath.Glob(filepath.Join(c.Dir, e.Name(), "*.wav"))
		if err != nil {
			return nil, nil, err
		}
		sort.Strings(wavs)
		for _, p := range wavs {
			rel := e.Name() + "/" + filepath.Base(p)
			ref := clipRef{path: p, label: label}
			if testSet[rel] {
				testClips = append(testClips, ref)
			} else {
				trainClips = append(trainClips, ref)
			}
		}
	}

	silTrain, silTest, err := c.silenceClips()
	if err != nil {
		return nil, nil, err
	}
	trainClips = append(trainClips, silTrain...)
	testClips = append(testClips, silTest...)

	return &Stream{clips: trainClips}, &Stream{clips: testClips}, nil
}

func (c *Corpus) silenceClips() (train, test []clipRef, err error) {
	wavs, err := filepath.Glob(filepath.Join(c.Dir, backgroundDir, "*.wav"))
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(wavs)

	n := 0
	for _, p := range wavs {
		info, err := wav.ReadWavInfo(p)
		if err != nil {
			return nil, nil, fmt.Errorf("error reading background recording %s: %v", p, err)
		}
		for off := 0; off+clipLength <= len(info.Samples); off += clipLength {
			ref := clipRef{path: p, label: LabelSilence, offset: off, length: clipLength}
			if n%10 == 9 {
				test = append(test, ref)
			} else {
				train = append(train, ref)
			}
			n++
		}
	}
	return train, test, nil
}

func readList(path string) (map[string]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	set := make(map[string]bool)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			set[line] = true
		}
	}
	return set, sc.Err()
}
