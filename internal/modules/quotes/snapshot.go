package quotes

import (
	"sort"

	"github.com/aristath/cryptowallet/internal/modules/returns"
)

// Snapshot is an immutable in-memory set of daily prices per asset.
type Snapshot struct {
	assets []string
	prices map[string][]returns.PricePoint
}

// NewSnapshot copies prices into a snapshot, each series sorted by date.
func NewSnapshot(prices map[string][]returns.PricePoint) *Snapshot {
	s := &Snapshot{
		assets: make([]string, 0, len(prices)),
		prices: make(map[string][]returns.PricePoint, len(prices)),
	}
	for asset, series := range prices {
		sorted := append([]returns.PricePoint(nil), series...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })
		s.prices[asset] = sorted
		s.assets = append(s.assets, asset)
	}
	sort.Strings(s.assets)
	return s
}

// Assets returns the assets of the snapshot in sorted order.
func (s *Snapshot) Assets() ([]string, error) {
	return append([]string(nil), s.assets...), nil
}

// GetDailyPrices returns a copy of the prices of asset, oldest first. Unknown assets have
// no prices.
func (s *Snapshot) GetDailyPrices(asset string) ([]returns.PricePoint, error) {
	return append([]returns.PricePoint(nil), s.prices[asset]...), nil
}

// Len returns the number of assets.
func (s *Snapshot) Len() int {
	return len(s.assets)
}
