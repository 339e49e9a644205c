// Package returns turns daily closing prices into the return statistics the optimizer scores
// wallets with.
package returns

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrInsufficientHistory is returned when the requested assets share fewer than two
	// return observations.
	ErrInsufficientHistory = errors.New("insufficient overlapping history")

	// ErrUnknownAsset is returned for an asset the price source has no prices for.
	ErrUnknownAsset = errors.New("unknown asset")
)

// PricePoint is one daily close. Date is formatted YYYY-MM-DD.
type PricePoint struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// PriceSource provides daily closing prices per asset.
type PriceSource interface {
	Assets() ([]string, error)
	GetDailyPrices(asset string) ([]PricePoint, error)
}

// Method selects how consecutive closes become a return.
type Method string

const (
	MethodSimple Method = "simple"
	MethodLog    Method = "log"
)

// ParseMethod validates a method name. The empty name means simple returns.
func ParseMethod(name string) (Method, error) {
	switch Method(name) {
	case MethodSimple, "":
		return MethodSimple, nil
	case MethodLog:
		return MethodLog, nil
	default:
		return "", fmt.Errorf("unknown return method %q", name)
	}
}

// Series is a dated return series in ascending date order. Dates[i] is the day whose close
// ended the period of Values[i].
type Series struct {
	Dates  []string
	Values []float64
}

// Len returns the number of observations.
func (s Series) Len() int {
	return len(s.Values)
}

// sortedCloses orders prices by date, keeping the last close reported for a day.
func sortedCloses(prices []PricePoint) []PricePoint {
	out := append([]PricePoint(nil), prices...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})

	deduped := out[:0]
	for _, p := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Date == p.Date {
			deduped[n-1] = p
			continue
		}
		deduped = append(deduped, p)
	}
	return deduped
}

// Calculate converts prices into returns. A period whose opening or closing price is not a
// positive number is skipped.
func Calculate(prices []PricePoint, method Method) Series {
	closes := sortedCloses(prices)
	if len(closes) < 2 {
		return Series{}
	}

	s := Series{
		Dates:  make([]string, 0, len(closes)-1),
		Values: make([]float64, 0, len(closes)-1),
	}
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1].Close, closes[i].Close
		if !(prev > 0) || !(cur > 0) || math.IsInf(prev, 0) || math.IsInf(cur, 0) {
			continue
		}

		var r float64
		if method == MethodLog {
			r = math.Log(cur / prev)
		} else {
			r = (cur - prev) / prev
		}
		s.Dates = append(s.Dates, closes[i].Date)
		s.Values = append(s.Values, r)
	}
	return s
}

// Align keeps only the dates present in every series and returns one column of values per
// series, in input order.
func Align(series []Series) ([]string, [][]float64) {
	if len(series) == 0 {
		return nil, nil
	}

	counts := make(map[string]int)
	for _, s := range series {
		for _, d := range s.Dates {
			counts[d]++
		}
	}

	common := make([]string, 0, len(series[0].Dates))
	for _, d := range series[0].Dates {
		if counts[d] == len(series) {
			common = append(common, d)
		}
	}

	columns := make([][]float64, len(series))
	for j, s := range series {
		index := make(map[string]float64, len(s.Dates))
		for i, d := range s.Dates {
			index[d] = s.Values[i]
		}
		col := make([]float64, len(common))
		for i, d := range common {
			col[i] = index[d]
		}
		columns[j] = col
	}
	return common, columns
}
