package returns

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// RSIPeriod is the look-back of the relative strength index reported with asset stats.
const RSIPeriod = 14

// TradingDaysPerYear annualizes daily statistics.
const TradingDaysPerYear = 252

// AssetStats summarizes the price history of one asset.
type AssetStats struct {
	Asset                string   `json:"asset"`
	Method               Method   `json:"method"`
	FirstDate            string   `json:"first_date"`
	LastDate             string   `json:"last_date"`
	LastClose            float64  `json:"last_close"`
	Observations         int      `json:"observations"`
	MeanDailyReturn      float64  `json:"mean_daily_return"`
	DailyVolatility      float64  `json:"daily_volatility"`
	AnnualizedVolatility float64  `json:"annualized_volatility"`
	SharpeRatio          *float64 `json:"sharpe_ratio,omitempty"`
	RSI                  *float64 `json:"rsi,omitempty"`
}

// Stats computes the summary of asset. The Sharpe ratio uses a zero risk-free rate.
func (p *Provider) Stats(asset string) (*AssetStats, error) {
	prices, err := p.source.GetDailyPrices(asset)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices for %s: %w", asset, err)
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}

	closes := sortedCloses(prices)
	s, err := p.Series(asset)
	if err != nil {
		return nil, err
	}

	out := &AssetStats{
		Asset:        asset,
		Method:       p.method,
		FirstDate:    closes[0].Date,
		LastDate:     closes[len(closes)-1].Date,
		LastClose:    closes[len(closes)-1].Close,
		Observations: s.Len(),
	}

	if s.Len() > 0 {
		out.MeanDailyReturn = stat.Mean(s.Values, nil)
	}
	if s.Len() > 1 {
		out.DailyVolatility = stat.StdDev(s.Values, nil)
		out.AnnualizedVolatility = out.DailyVolatility * math.Sqrt(TradingDaysPerYear)
		if out.DailyVolatility > 0 {
			sharpe := out.MeanDailyReturn / out.DailyVolatility
			out.SharpeRatio = &sharpe
		}
	}

	values := make([]float64, len(closes))
	for i, c := range closes {
		values[i] = c.Close
	}
	out.RSI = calculateRSI(values, RSIPeriod)
	return out, nil
}

// calculateRSI returns the latest RSI of closes, or nil with fewer than length+1 closes.
func calculateRSI(closes []float64, length int) *float64 {
	if len(closes) < length+1 {
		return nil
	}
	rsi := talib.Rsi(closes, length)
	if len(rsi) > 0 && !math.IsNaN(rsi[len(rsi)-1]) {
		result := rsi[len(rsi)-1]
		return &result
	}
	return nil
}
