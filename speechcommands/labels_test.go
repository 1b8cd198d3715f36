package speechcommands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelForCoreWords(t *testing.T) {
	for i, w := range CoreWords {
		assert.Equal(t, i, LabelFor(w))
	}
}

func TestLabelForUnknownWords(t *testing.T) {
	for _, w := range []string{"bed", "cat", "marvin", "zero", ""} {
		assert.Equal(t, LabelUnknown, LabelFor(w))
	}
}

func TestLabelNamesCoverAllClasses(t *testing.T) {
	assert.Len(t, LabelNames, 12)
	assert.Equal(t, "_silence_", LabelNames[LabelSilence])
	assert.Equal(t, "_unknown_", LabelNames[LabelUnknown])
}
