package services

import (
	"wage-forecast-api/pkg/models"
)

// DefaultGrowthBounds 4年目以降の年率（乗数）の既定範囲
var DefaultGrowthBounds = models.Bounds{Low: 1.04, High: 1.06}

const (
	dipFirstYear   = 0.98
	dipSecondYear  = 0.99
	plateauStep    = 150.0 // absolute increment per plateau year
	plateauYears   = 2
	growthStartsAt = 2 + plateauYears
)

// PiecewiseSyntheticGrowth 直近の賃金を起点に「一時的な下落 → 横ばい → 複利成長」を描く規則ベースの予測
//
// 直近1年以外の履歴は使わない。
type PiecewiseSyntheticGrowth struct{}

func (PiecewiseSyntheticGrowth) Name() string { return models.StrategyPiecewise }

func (PiecewiseSyntheticGrowth) Description() string {
	return "Rule-based dip, plateau, then compounding growth anchored on the most recent wage"
}

func (PiecewiseSyntheticGrowth) Stochastic() bool { return true }

func (PiecewiseSyntheticGrowth) MinObservations(*models.ForecastRequest) int { return 1 }

func (s PiecewiseSyntheticGrowth) Forecast(history *HistorySeries, years []int, req *models.ForecastRequest) (*StrategyOutput, error) {
	if history.Len() < 1 {
		return nil, &InsufficientDataError{Strategy: s.Name(), Required: 1, Got: history.Len()}
	}

	bounds := DefaultGrowthBounds
	var seed *uint64
	var unrounded bool
	if req != nil {
		if req.GrowthBounds != nil {
			bounds = *req.GrowthBounds
		}
		seed = req.RandomSeed
		unrounded = req.CompoundOnUnrounded
	}
	rng := newRand(seed)

	anchor := history.Last()
	lastWage := anchor.Wage

	values := make([]float64, len(years))
	var rates []float64
	var base float64 // value the next growth step compounds on

	for offset := range years {
		var raw float64
		switch {
		case offset == 0:
			raw = lastWage * dipFirstYear
		case offset == 1:
			raw = lastWage * dipSecondYear
		case offset < growthStartsAt:
			raw = lastWage*1.00 + float64(offset-1)*plateauStep
		default:
			r := uniform(rng, bounds.Low, bounds.High)
			rates = append(rates, r)
			raw = base * r
		}

		values[offset] = roundWage(raw)
		if unrounded {
			base = raw
		} else {
			base = values[offset]
		}
	}

	return &StrategyOutput{
		Values: values,
		Metadata: models.ForecastMetadata{
			GrowthRates: rates,
			Seed:        seed,
			AnchorYear:  anchor.Year,
			AnchorWage:  lastWage,
		},
	}, nil
}
