package runs

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/aristath/cryptowallet/internal/modules/evolution"
	charts "github.com/vicanso/go-charts/v2"
)

// ErrEmptyHistory is returned when a run has no generations to chart.
var ErrEmptyHistory = errors.New("run has no generation history")

// RenderFitnessChart renders the best and mean fitness of every generation as a PNG line
// chart. Generations without scored wallets are left as gaps.
func RenderFitnessChart(title string, history []evolution.GenerationStat) ([]byte, error) {
	if len(history) == 0 {
		return nil, ErrEmptyHistory
	}

	best := make([]float64, len(history))
	mean := make([]float64, len(history))
	labels := make([]string, len(history))
	for i, stat := range history {
		labels[i] = strconv.Itoa(stat.Generation)
		best[i] = valueOrNull(stat.BestFitness)
		mean[i] = valueOrNull(stat.MeanFitness)
	}

	split := len(history) / 10
	if split < 1 {
		split = 1
	}

	painter, err := charts.LineRender(
		[][]float64{best, mean},
		charts.TitleTextOptionFunc(title),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        labels,
			BoundaryGap: charts.FalseFlag(),
			SplitNumber: split,
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{DivideCount: 5}),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: []string{"Best Sharpe", "Mean Sharpe"},
			Left: charts.PositionRight,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(900),
		charts.HeightOptionFunc(500),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := painter.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}

func valueOrNull(f *float64) float64 {
	if f == nil {
		return charts.GetNullValue()
	}
	return *f
}
