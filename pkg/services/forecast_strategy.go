package services

import (
	"sort"

	"wage-forecast-api/pkg/models"
)

// StrategyOutput 戦略が返す生の予測値（丸め前でもよい）とメタデータ
type StrategyOutput struct {
	Values   []float64
	Metadata models.ForecastMetadata
}

// ForecastStrategy is one interchangeable forecasting algorithm.
// Implementations must be stateless so a single value can serve concurrent runs.
type ForecastStrategy interface {
	Name() string
	Description() string
	Stochastic() bool
	// MinObservations is evaluated against the already-defaulted request.
	MinObservations(req *models.ForecastRequest) int
	// Forecast returns one value per entry of years, in the same order.
	Forecast(history *HistorySeries, years []int, req *models.ForecastRequest) (*StrategyOutput, error)
}

// DefaultStrategies returns the built-in strategies keyed by identifier.
func DefaultStrategies() map[string]ForecastStrategy {
	strategies := []ForecastStrategy{
		LinearTrend{},
		PolynomialTrend{},
		SeasonalDecomposition{},
		PiecewiseSyntheticGrowth{},
	}
	out := make(map[string]ForecastStrategy, len(strategies))
	for _, s := range strategies {
		out[s.Name()] = s
	}
	return out
}

func sortedStrategyNames(strategies map[string]ForecastStrategy) []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
