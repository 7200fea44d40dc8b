package services

import (
	"fmt"
	"math"

	"wage-forecast-api/pkg/models"
)

// z値（正規分布 95%）
const zScore95 = 1.96

// LinearTrend 年に対する賃金の一次回帰
type LinearTrend struct{}

func (LinearTrend) Name() string { return models.StrategyLinear }

func (LinearTrend) Description() string {
	return "Ordinary least-squares line of wage on year"
}

func (LinearTrend) Stochastic() bool { return false }

func (LinearTrend) MinObservations(*models.ForecastRequest) int { return 2 }

// LinearFit 回帰結果
type LinearFit struct {
	Slope     float64
	Intercept float64
	RSquared  float64
	Residuals []float64

	// SlopePValue 傾きが0であるという帰無仮説に対する両側p値（n<=2 では NaN）
	SlopePValue float64
}

// Predict evaluates the fitted line at year.
func (f LinearFit) Predict(year float64) float64 {
	return f.Slope*year + f.Intercept
}

// FitLinear performs least squares on x centered at its mean, which keeps the
// sums small for calendar years.
func FitLinear(x, y []float64) (LinearFit, error) {
	if len(x) != len(y) || len(x) < 2 {
		return LinearFit{}, fmt.Errorf("series length mismatch or fewer than 2 points")
	}

	meanX := calculateMean(x)
	meanY := calculateMean(y)

	var sxx, sxy float64
	for i := range x {
		dx := x[i] - meanX
		sxx += dx * dx
		sxy += dx * (y[i] - meanY)
	}
	if sxx == 0 {
		return LinearFit{}, fmt.Errorf("x values have zero variance")
	}

	slope := sxy / sxx
	intercept := meanY - slope*meanX

	// R²（決定係数）の計算
	var ssTotal, ssResidual float64
	residuals := make([]float64, len(x))
	for i := range x {
		predicted := slope*x[i] + intercept
		residuals[i] = y[i] - predicted
		ssTotal += (y[i] - meanY) * (y[i] - meanY)
		ssResidual += residuals[i] * residuals[i]
	}
	rSquared := 1.0
	if ssTotal > 0 {
		rSquared = 1 - ssResidual/ssTotal
	}

	// 傾きの t 検定
	pValue := math.NaN()
	if df := float64(len(x) - 2); df > 0 {
		se := math.Sqrt(ssResidual / df / sxx)
		switch {
		case se > 0:
			pValue = studentTTwoSided(slope/se, df)
		case slope != 0:
			pValue = 0
		}
	}

	return LinearFit{
		Slope:       slope,
		Intercept:   intercept,
		RSquared:    rSquared,
		Residuals:   residuals,
		SlopePValue: pValue,
	}, nil
}

func (s LinearTrend) Forecast(history *HistorySeries, years []int, _ *models.ForecastRequest) (*StrategyOutput, error) {
	if history.Len() < 2 {
		return nil, &InsufficientDataError{Strategy: s.Name(), Required: 2, Got: history.Len()}
	}

	fit, err := FitLinear(history.Years(), history.Wages())
	if err != nil {
		return nil, fmt.Errorf("linear regression: %w", err)
	}

	margin := zScore95 * residualStandardError(fit.Residuals, 2)

	values := make([]float64, len(years))
	intervals := make([]models.ConfidenceInterval, len(years))
	for i, year := range years {
		values[i] = fit.Predict(float64(year))
		intervals[i] = models.ConfidenceInterval{
			Year:       year,
			Lower:      values[i] - margin,
			Upper:      values[i] + margin,
			Confidence: 0.95,
		}
	}

	rSquared := fit.RSquared
	var pValue *float64
	if !math.IsNaN(fit.SlopePValue) {
		p := fit.SlopePValue
		pValue = &p
	}
	return &StrategyOutput{
		Values: values,
		Metadata: models.ForecastMetadata{
			Coefficients: []float64{fit.Slope, fit.Intercept},
			RSquared:     &rSquared,
			SlopePValue:  pValue,
			Equation:     fmt.Sprintf("y = %.4fx + %.4f", fit.Slope, fit.Intercept),
			Intervals:    intervals,
		},
	}, nil
}
