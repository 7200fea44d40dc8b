package services

import (
	"errors"
	"fmt"
	"math"

	"wage-forecast-api/pkg/models"
)

const (
	// 変化点は履歴の先頭80%の範囲に置く
	changepointRange   = 0.8
	maxChangepoints    = 25
	changepointPenalty = 0.05 // L1 (Laplace prior) weight on slope changes, scaled units
	baseRidge          = 1e-4 // weak Gaussian prior on base slope and offset
	admmRho            = 0.05 // ADMM penalty parameter
	admmRelTolerance   = 1e-6
	defaultMaxIter     = 1000
	defaultTolerance   = 1e-8 // absolute part of the ADMM residual test
	annualSeasonPeriod = 1    // observations per seasonal cycle for a yearly series
	seasonalConfidence = 0.95
)

// SeasonalDecomposition 加法モデル y = trend + seasonal による予測
//
// 年次系列では季節成分は0に退化するため、実質的には変化点付きの
// 区分線形トレンドを外挿する。
type SeasonalDecomposition struct {
	MaxIterations int     // 0 means defaultMaxIter
	Tolerance     float64 // 0 means defaultTolerance
}

func (SeasonalDecomposition) Name() string { return models.StrategySeasonal }

func (SeasonalDecomposition) Description() string {
	return "Additive trend+seasonality model; on yearly data the seasonal part is zero and the changepoint trend is extrapolated"
}

func (SeasonalDecomposition) Stochastic() bool { return false }

func (SeasonalDecomposition) MinObservations(*models.ForecastRequest) int { return 2 }

// trendModel 区分線形トレンド（スケール済みの t, y 上）
type trendModel struct {
	start, span  float64   // t = (year - start) / span
	yScale       float64   // y = wage / yScale
	changepoints []float64 // in t units
	coeffs       []float64 // [m, k, delta_1..delta_c]
	iterations   int
}

func (m *trendModel) scaledTime(year float64) float64 {
	return (year - m.start) / m.span
}

func (m *trendModel) row(t float64) []float64 {
	r := make([]float64, 2+len(m.changepoints))
	r[0] = 1
	r[1] = t
	for j, s := range m.changepoints {
		if t >= s {
			r[2+j] = t - s
		}
	}
	return r
}

// trend returns the trend at year in wage units.
func (m *trendModel) trend(year float64) float64 {
	r := m.row(m.scaledTime(year))
	var v float64
	for i, c := range m.coeffs {
		v += r[i] * c
	}
	return v * m.yScale
}

// placeChangepoints 先頭 changepointRange の範囲に等間隔で変化点を置く（先頭は除く）
func placeChangepoints(t []float64) []float64 {
	histSize := int(math.Floor(float64(len(t)) * changepointRange))
	n := maxChangepoints
	if n+1 > histSize {
		n = histSize - 1
	}
	if n <= 0 {
		return nil
	}
	cps := make([]float64, 0, n)
	step := float64(histSize-1) / float64(n)
	for i := 1; i <= n; i++ {
		idx := int(math.RoundToEven(step * float64(i)))
		cps = append(cps, t[idx])
	}
	return cps
}

// fitTrend solves the L1-penalized least squares
//
//	min ||y - X b||^2 + baseRidge*(m^2 + k^2) + changepointPenalty*sum|delta|
//
// with ADMM: a ridge solve for b, soft-thresholding for the changepoint deltas
// z, and the scaled dual u. It stops once the primal (b_delta - z) and dual
// (rho * change in z) residuals are both under tolerance.
func (s SeasonalDecomposition) fitTrend(years, wages []float64) (*trendModel, error) {
	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIter
	}
	tol := s.Tolerance
	if tol <= 0 {
		tol = defaultTolerance
	}

	m := &trendModel{start: years[0], span: years[len(years)-1] - years[0], yScale: 1}
	for _, w := range wages {
		if math.Abs(w) > m.yScale {
			m.yScale = math.Abs(w)
		}
	}

	t := make([]float64, len(years))
	y := make([]float64, len(wages))
	for i := range years {
		t[i] = m.scaledTime(years[i])
		y[i] = wages[i] / m.yScale
	}
	m.changepoints = placeChangepoints(t)

	rows := make([][]float64, len(t))
	for i, ti := range t {
		rows[i] = m.row(ti)
	}

	k := 2 + len(m.changepoints)
	ridge := make([]float64, k)
	ridge[0], ridge[1] = baseRidge, baseRidge
	for j := 2; j < k; j++ {
		ridge[j] = admmRho / 2
	}
	XtX, Xty := normalEquations(rows, y, ridge)

	// 変化点がなければ通常のリッジ回帰で一発で解ける
	if k == 2 {
		beta, err := solveSymmetric(XtX, Xty)
		if err != nil {
			return nil, &ModelFitError{Strategy: s.Name(), Iterations: 1, Err: err}
		}
		if err := checkFinite(beta); err != nil {
			return nil, &ModelFitError{Strategy: s.Name(), Iterations: 1, Err: err}
		}
		m.coeffs = beta
		m.iterations = 1
		return m, nil
	}

	nd := k - 2
	z := make([]float64, nd)
	u := make([]float64, nd)
	rhs := make([]float64, k)
	threshold := changepointPenalty / admmRho
	sqrtN := math.Sqrt(float64(nd))

	for iter := 1; iter <= maxIter; iter++ {
		copy(rhs, Xty)
		for j := 0; j < nd; j++ {
			rhs[2+j] += admmRho / 2 * (z[j] - u[j])
		}
		beta, err := solveSymmetric(XtX, rhs)
		if err != nil {
			return nil, &ModelFitError{Strategy: s.Name(), Iterations: iter, Err: err}
		}
		if err := checkFinite(beta); err != nil {
			return nil, &ModelFitError{Strategy: s.Name(), Iterations: iter, Err: err}
		}

		var primal, dual, betaNorm, zNorm, uNorm float64
		for j := 0; j < nd; j++ {
			next := softThreshold(beta[2+j]+u[j], threshold)
			dual += (next - z[j]) * (next - z[j])
			z[j] = next
			u[j] += beta[2+j] - z[j]

			primal += (beta[2+j] - z[j]) * (beta[2+j] - z[j])
			betaNorm += beta[2+j] * beta[2+j]
			zNorm += z[j] * z[j]
			uNorm += u[j] * u[j]
		}
		primal = math.Sqrt(primal)
		dual = admmRho * math.Sqrt(dual)
		primalTol := sqrtN*tol + admmRelTolerance*math.Max(math.Sqrt(betaNorm), math.Sqrt(zNorm))
		dualTol := sqrtN*tol + admmRelTolerance*admmRho*math.Sqrt(uNorm)

		if primal <= primalTol && dual <= dualTol {
			// 縮小後の z を採用し、ゼロになった変化点は厳密にゼロにする
			m.coeffs = append(beta[:2:2], z...)
			m.iterations = iter
			return m, nil
		}
	}

	return nil, &ModelFitError{
		Strategy:   s.Name(),
		Iterations: maxIter,
		Err:        fmt.Errorf("trend parameters did not converge to tolerance %g", tol),
	}
}

func softThreshold(v, threshold float64) float64 {
	switch {
	case v > threshold:
		return v - threshold
	case v < -threshold:
		return v + threshold
	}
	return 0
}

func checkFinite(values []float64) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("non-finite trend parameter")
		}
	}
	return nil
}

// seasonalComponent averages detrended values per position in the cycle and
// centers the pattern. With one observation per cycle the pattern is zero.
func seasonalComponent(detrended []float64, period int) []float64 {
	pattern := make([]float64, period)
	counts := make([]int, period)
	for i, v := range detrended {
		pattern[i%period] += v
		counts[i%period]++
	}
	for i := range pattern {
		if counts[i] > 0 {
			pattern[i] /= float64(counts[i])
		}
	}
	mean := calculateMean(pattern)
	for i := range pattern {
		pattern[i] -= mean
	}
	return pattern
}

func (s SeasonalDecomposition) Forecast(history *HistorySeries, years []int, _ *models.ForecastRequest) (*StrategyOutput, error) {
	if history.Len() < 2 {
		return nil, &InsufficientDataError{Strategy: s.Name(), Required: 2, Got: history.Len()}
	}

	xs, ws := history.Years(), history.Wages()
	model, err := s.fitTrend(xs, ws)
	if err != nil {
		return nil, err
	}

	detrended := make([]float64, len(xs))
	for i := range xs {
		detrended[i] = ws[i] - model.trend(xs[i])
	}
	seasonal := seasonalComponent(detrended, annualSeasonPeriod)

	residuals := make([]float64, len(xs))
	for i := range xs {
		residuals[i] = detrended[i] - seasonal[i%annualSeasonPeriod]
	}
	// offset and base slope; shrunken changepoint deltas are not counted
	margin := zScore95 * residualStandardError(residuals, 2)

	values := make([]float64, len(years))
	intervals := make([]models.ConfidenceInterval, len(years))
	for i, year := range years {
		offset := len(xs) + year - int(xs[len(xs)-1]) - 1
		yhat := model.trend(float64(year)) + seasonal[offset%annualSeasonPeriod]
		values[i] = yhat
		intervals[i] = models.ConfidenceInterval{
			Year:       year,
			Lower:      yhat - margin,
			Upper:      yhat + margin,
			Confidence: seasonalConfidence,
		}
	}

	cpYears := make([]int, len(model.changepoints))
	for i, cp := range model.changepoints {
		cpYears[i] = int(math.Round(model.start + cp*model.span))
	}

	return &StrategyOutput{
		Values: values,
		Metadata: models.ForecastMetadata{
			Coefficients: model.coeffs,
			Changepoints: cpYears,
			Iterations:   model.iterations,
			Intervals:    intervals,
		},
	}, nil
}
