// Package speechcommands loads the Google Speech Commands corpus (v0.02)
// and exposes its clips as ordered label-supervised sample streams.
package speechcommands

// The twelve-class convention: ten core words, everything else collapsed
// into unknown, background noise sliced into silence clips.
var CoreWords = []string{
	"yes", "no", "up", "down", "left",
	"right", "on", "off", "stop", "go",
}

const (
	LabelSilence = 10
	LabelUnknown = 11
)

var LabelNames = []string{
	"yes", "no", "up", "down", "left",
	"right", "on", "off", "stop", "go",
	"_silence_", "_unknown_",
}

var coreIndex = func() map[string]int {
	m := make(map[string]int, len(CoreWords))
	for i, w := range CoreWords {
		m[w] = i
	}
	return m
}()

// LabelFor maps a corpus directory name to its class id.
func LabelFor(word string) int {
	if id, ok := coreIndex[word]; ok {
		return id
	}
	return LabelUnknown
}
