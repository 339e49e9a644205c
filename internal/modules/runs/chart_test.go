package runs

import (
	"bytes"
	"testing"

	"github.com/aristath/cryptowallet/internal/modules/evolution"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestRenderFitnessChart(t *testing.T) {
	history := []evolution.GenerationStat{
		{Generation: 1, BestFitness: fitness(0.2), MeanFitness: fitness(-0.1), Scored: 10},
		{Generation: 2, BestFitness: fitness(0.5), MeanFitness: fitness(0.1), Scored: 10},
		{Generation: 3, BestFitness: fitness(0.9), MeanFitness: fitness(0.3), Scored: 10},
	}

	png, err := RenderFitnessChart("Run test", history)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))
}

func TestRenderFitnessChart_Empty(t *testing.T) {
	_, err := RenderFitnessChart("Run test", nil)
	assert.ErrorIs(t, err, ErrEmptyHistory)
}
