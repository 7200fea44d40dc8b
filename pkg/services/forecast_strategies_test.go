package services

import (
	"errors"
	"math"
	"testing"

	"wage-forecast-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2022〜2024年の最低賃金（時給）
func minimumWageHistory(t *testing.T) *HistorySeries {
	t.Helper()
	history, err := BuildHistorySeries(raw(2022, 9160, 2023, 9620, 2024, 9860))
	require.NoError(t, err)
	return history
}

func linearHistory(t *testing.T, from, to int, intercept, slope float64) *HistorySeries {
	t.Helper()
	var obs []models.RawObservation
	for y := from; y <= to; y++ {
		obs = append(obs, models.RawObservation{Year: y, Wage: intercept + slope*float64(y-from)})
	}
	history, err := BuildHistorySeries(obs)
	require.NoError(t, err)
	return history
}

func seed(v uint64) *uint64 { return &v }

func TestFitLinearRecoversExactLine(t *testing.T) {
	fit, err := FitLinear([]float64{2000, 2001, 2002}, []float64{1000, 1100, 1200})
	require.NoError(t, err)

	assert.InDelta(t, 100.0, fit.Slope, 1e-9)
	assert.InDelta(t, -199000.0, fit.Intercept, 1e-6)
	assert.InDelta(t, 1.0, fit.RSquared, 1e-12)
}

func TestFitLinearRejectsDegenerateInput(t *testing.T) {
	_, err := FitLinear([]float64{2000}, []float64{1})
	assert.Error(t, err)

	_, err = FitLinear([]float64{2000, 2000}, []float64{1, 2})
	assert.Error(t, err)
}

func TestLinearTrendPredictionsLieOnFittedLine(t *testing.T) {
	history := linearHistory(t, 2010, 2019, 4110, 320)

	// 2点から a, b を復元する
	p0, p1 := history.Points()[0], history.Points()[1]
	a := (p1.Wage - p0.Wage) / float64(p1.Year-p0.Year)
	b := p0.Wage - a*float64(p0.Year)

	years := horizonYears(2020, 2030)
	out, err := LinearTrend{}.Forecast(history, years, nil)
	require.NoError(t, err)
	require.Len(t, out.Values, len(years))

	for i, year := range years {
		assert.Equal(t, math.Round(a*float64(year)+b), math.Round(out.Values[i]), "year %d", year)
	}
	require.Len(t, out.Metadata.Coefficients, 2)
	assert.InDelta(t, a, out.Metadata.Coefficients[0], 1e-9)
	require.NotNil(t, out.Metadata.RSquared)
	assert.InDelta(t, 1.0, *out.Metadata.RSquared, 1e-12)
}

func TestLinearTrendMinimumWageExample(t *testing.T) {
	// 最小二乗: 傾き 350, 2023年で平均 28640/3
	out, err := LinearTrend{}.Forecast(minimumWageHistory(t), []int{2025, 2026}, nil)
	require.NoError(t, err)

	assert.Equal(t, 10247.0, math.Round(out.Values[0]))
	assert.Equal(t, 10597.0, math.Round(out.Values[1]))
	assert.InDelta(t, 350.0, out.Metadata.Coefficients[0], 1e-9)
	// df=1 の t 分布はコーシー分布: p = (2/π)·atan(1/|t|)
	require.NotNil(t, out.Metadata.SlopePValue)
	assert.InDelta(t, 0.1143, *out.Metadata.SlopePValue, 1e-3)

	require.Len(t, out.Metadata.Intervals, 2)
	for i, ci := range out.Metadata.Intervals {
		assert.Less(t, ci.Lower, out.Values[i])
		assert.Greater(t, ci.Upper, out.Values[i])
		// 残差平方和 24200/3, 自由度 3-2=1
		assert.InDelta(t, 1.96*math.Sqrt(24200.0/3), ci.Upper-out.Values[i], 1e-6)
		assert.InDelta(t, 1.96*math.Sqrt(24200.0/3), out.Values[i]-ci.Lower, 1e-6)
	}
}

func TestResidualStandardError(t *testing.T) {
	assert.InDelta(t, math.Sqrt(24200.0/3), residualStandardError([]float64{-110.0 / 3, 220.0 / 3, -110.0 / 3}, 2), 1e-9)
	assert.InDelta(t, math.Sqrt(10.0/2), residualStandardError([]float64{1, -2, 2, -1}, 2), 1e-12)
	// 自由度が残らない
	assert.Equal(t, 0.0, residualStandardError([]float64{3, -3}, 2))
	assert.Equal(t, 0.0, residualStandardError(nil, 2))
}

func TestUniformDrawsFromHalfOpenBounds(t *testing.T) {
	rng := newRand(seed(42))
	for i := 0; i < 1000; i++ {
		v := uniform(rng, 1.04, 1.06)
		assert.GreaterOrEqual(t, v, 1.04)
		assert.Less(t, v, 1.06)
	}
	// Low == High は常に Low
	assert.Equal(t, 0.5, uniform(rng, 0.5, 0.5))
}

func TestStudentTTwoSided(t *testing.T) {
	assert.InDelta(t, 0.5, studentTTwoSided(1, 1), 1e-9)
	assert.InDelta(t, 1.0, studentTTwoSided(0, 5), 1e-12)
	assert.InDelta(t, 0.05, studentTTwoSided(2.228, 10), 1e-3)
	assert.InDelta(t, 0.05, studentTTwoSided(1.96, 10000), 1e-3)
	assert.Equal(t, 0.0, studentTTwoSided(math.Inf(1), 3))
}

func TestLinearTrendTwoPointsHasNoPValue(t *testing.T) {
	history, err := BuildHistorySeries(raw(2023, 9620, 2024, 9860))
	require.NoError(t, err)

	out, err := LinearTrend{}.Forecast(history, []int{2025}, nil)
	require.NoError(t, err)
	assert.Nil(t, out.Metadata.SlopePValue)
	assert.Equal(t, 10100.0, math.Round(out.Values[0]))
}

func TestLinearTrendRequiresTwoPoints(t *testing.T) {
	history, err := BuildHistorySeries(raw(2024, 9860))
	require.NoError(t, err)

	_, err = LinearTrend{}.Forecast(history, []int{2025}, nil)
	var insufficient *InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 2, insufficient.Required)
	assert.Equal(t, 1, insufficient.Got)
}

func TestFitPolynomialRecoversCubic(t *testing.T) {
	cubic := func(x float64) float64 {
		d := x - 2000
		return 1000 + 10*d + 2*d*d + d*d*d
	}
	var xs, ys []float64
	for y := 2000; y <= 2007; y++ {
		xs = append(xs, float64(y))
		ys = append(ys, cubic(float64(y)))
	}

	fit, err := FitPolynomial(xs, ys, 3)
	require.NoError(t, err)
	for _, year := range []float64{2008, 2010, 2015} {
		assert.InDelta(t, cubic(year), fit.Predict(year), 1e-4, "year %v", year)
	}
}

func TestPolynomialTrendWithoutPerturbationFollowsCurve(t *testing.T) {
	var obs []models.RawObservation
	for y := 2000; y <= 2007; y++ {
		d := float64(y - 2000)
		obs = append(obs, models.RawObservation{Year: y, Wage: 1000 + 10*d + 2*d*d + d*d*d})
	}
	history, err := BuildHistorySeries(obs)
	require.NoError(t, err)

	req := &models.ForecastRequest{PolynomialDegree: 3, PerturbationBounds: &models.Bounds{}, RandomSeed: seed(1)}
	out, err := PolynomialTrend{}.Forecast(history, []int{2008, 2009}, req)
	require.NoError(t, err)

	// d=8: 1000+80+128+512, d=9: 1000+90+162+729
	assert.Equal(t, []float64{1720, 1981}, out.Values)
	assert.Equal(t, []float64{0, 0}, out.Metadata.NoiseDraws)
}

func TestPolynomialTrendPerturbationStaysInBounds(t *testing.T) {
	history := linearHistory(t, 2010, 2019, 4000, 300)
	years := horizonYears(2020, 2039)
	req := &models.ForecastRequest{PolynomialDegree: 1, PerturbationBounds: &models.Bounds{Low: -0.02, High: 0.02}, RandomSeed: seed(11)}

	out, err := PolynomialTrend{}.Forecast(history, years, req)
	require.NoError(t, err)
	require.Len(t, out.Metadata.NoiseDraws, len(years))

	for i, year := range years {
		u := out.Metadata.NoiseDraws[i]
		assert.GreaterOrEqual(t, u, -0.02)
		assert.Less(t, u, 0.02)

		raw := 4000 + 300*float64(year-2010)
		assert.InDelta(t, raw, out.Values[i], raw*0.02+1, "year %d", year)
	}
}

func TestPolynomialTrendSeedReproducibility(t *testing.T) {
	history := linearHistory(t, 2010, 2019, 4000, 300)
	years := horizonYears(2020, 2029)

	run := func(s *uint64) []float64 {
		out, err := PolynomialTrend{}.Forecast(history, years, &models.ForecastRequest{PolynomialDegree: 3, RandomSeed: s})
		require.NoError(t, err)
		return out.Values
	}

	assert.Equal(t, run(seed(42)), run(seed(42)))
	assert.NotEqual(t, run(seed(1)), run(seed(2)))
}

func TestPolynomialTrendRequiresDegreePlusOnePoints(t *testing.T) {
	_, err := PolynomialTrend{}.Forecast(minimumWageHistory(t), []int{2025}, &models.ForecastRequest{PolynomialDegree: 3})

	var insufficient *InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 4, insufficient.Required)
	assert.Equal(t, 3, insufficient.Got)
}

func TestPlaceChangepoints(t *testing.T) {
	assert.Nil(t, placeChangepoints([]float64{0, 1}))
	assert.Equal(t, []float64{0.5}, placeChangepoints([]float64{0, 0.5, 1}))

	ts := make([]float64, 10)
	for i := range ts {
		ts[i] = float64(i) / 9
	}
	// 先頭80% = 8点、変化点は7個（先頭を除く）
	cps := placeChangepoints(ts)
	assert.Equal(t, ts[1:8], cps)
}

func TestSeasonalComponent(t *testing.T) {
	assert.Equal(t, []float64{0}, seasonalComponent([]float64{3.5, -2, 7}, annualSeasonPeriod))
	assert.Equal(t, []float64{1, -1}, seasonalComponent([]float64{2, 0, 2, 0}, 2))
}

func TestSeasonalDecompositionExtrapolatesLinearTrend(t *testing.T) {
	history := linearHistory(t, 2000, 2009, 1000, 50)

	out, err := SeasonalDecomposition{}.Forecast(history, []int{2010, 2011, 2012}, nil)
	require.NoError(t, err)

	assert.InDelta(t, 1500, out.Values[0], 2)
	assert.InDelta(t, 1550, out.Values[1], 2)
	assert.InDelta(t, 1600, out.Values[2], 2)
	assert.Equal(t, []int{2001, 2002, 2003, 2004, 2005, 2006, 2007}, out.Metadata.Changepoints)
	assert.Positive(t, out.Metadata.Iterations)
}

func TestSeasonalDecompositionIsDeterministic(t *testing.T) {
	history := minimumWageHistory(t)
	years := horizonYears(2025, 2030)

	first, err := SeasonalDecomposition{}.Forecast(history, years, nil)
	require.NoError(t, err)
	second, err := SeasonalDecomposition{}.Forecast(history, years, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Values, second.Values)
	assert.InDelta(t, 10247, first.Values[0], 10)
}

// 1988〜2024年の最低賃金（時給）
var minimumWageSeries = []float64{
	462, 600, 690, 820, 925, 1005, 1085, 1170, 1275, 1400,
	1485, 1525, 1600, 1865, 2100, 2275, 2510, 2840, 3100, 3480,
	3770, 4000, 4110, 4320, 4580, 4860, 5210, 5580, 6030, 6470,
	7530, 8350, 8590, 8720, 9160, 9620, 9860,
}

func TestSeasonalDecompositionFitsEveryTrailingWindow(t *testing.T) {
	engine := newTestEngine()
	firstYear := 2025 - len(minimumWageSeries)

	for n := 2; n <= len(minimumWageSeries); n++ {
		var obs []models.RawObservation
		for i := len(minimumWageSeries) - n; i < len(minimumWageSeries); i++ {
			obs = append(obs, models.RawObservation{Year: firstYear + i, Wage: minimumWageSeries[i]})
		}
		history, err := BuildHistorySeries(obs)
		require.NoError(t, err)

		result, err := engine.Run(history, models.ForecastRequest{
			Strategy:     models.StrategySeasonal,
			HorizonStart: 2025,
			HorizonEnd:   2027,
		})
		require.NoError(t, err, "window of %d years", n)
		assert.LessOrEqual(t, result.Metadata.Iterations, defaultMaxIter)
		for _, w := range result.Wages() {
			assert.Greater(t, w, int64(9000), "window of %d years", n)
		}
	}
}

func TestSeasonalDecompositionFullMinimumWageSeries(t *testing.T) {
	var obs []models.RawObservation
	for i, w := range minimumWageSeries {
		obs = append(obs, models.RawObservation{Year: 1988 + i, Wage: w})
	}
	history, err := BuildHistorySeries(obs)
	require.NoError(t, err)

	out, err := SeasonalDecomposition{}.Forecast(history, []int{2025, 2026, 2027}, nil)
	require.NoError(t, err)

	assert.InDelta(t, 10298, out.Values[0], 15)
	assert.InDelta(t, 10729, out.Values[1], 15)
	assert.InDelta(t, 11161, out.Values[2], 15)
	assert.Len(t, out.Metadata.Changepoints, 25)
	assert.Less(t, out.Metadata.Iterations, defaultMaxIter)
}

func TestSeasonalDecompositionReportsNonConvergence(t *testing.T) {
	_, err := SeasonalDecomposition{MaxIterations: 1}.Forecast(minimumWageHistory(t), []int{2025}, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelFit))
	var fitErr *ModelFitError
	require.True(t, errors.As(err, &fitErr))
	assert.Equal(t, models.StrategySeasonal, fitErr.Strategy)
	assert.Equal(t, 1, fitErr.Iterations)
}

func TestPiecewiseSyntheticGrowthShape(t *testing.T) {
	years := horizonYears(2025, 2034)
	out, err := PiecewiseSyntheticGrowth{}.Forecast(minimumWageHistory(t), years, &models.ForecastRequest{RandomSeed: seed(7)})
	require.NoError(t, err)

	v := out.Values
	assert.Equal(t, 9663.0, v[0]) // round(9860*0.98)
	assert.Equal(t, 9761.0, v[1]) // round(9860*0.99)
	assert.Equal(t, 10010.0, v[2])
	assert.Equal(t, 10160.0, v[3])

	require.Len(t, out.Metadata.GrowthRates, len(years)-4)
	for i, r := range out.Metadata.GrowthRates {
		assert.GreaterOrEqual(t, r, 1.04)
		assert.Less(t, r, 1.06)
		// 丸めた前年値に対して複利を掛ける
		assert.Equal(t, math.Round(v[i+3]*r), v[i+4])
	}
	assert.Equal(t, 2024, out.Metadata.AnchorYear)
	assert.Equal(t, 9860.0, out.Metadata.AnchorWage)
}

func TestPiecewiseSyntheticGrowthCompoundOnUnrounded(t *testing.T) {
	years := horizonYears(2025, 2040)
	req := &models.ForecastRequest{RandomSeed: seed(3), CompoundOnUnrounded: true}
	out, err := PiecewiseSyntheticGrowth{}.Forecast(minimumWageHistory(t), years, req)
	require.NoError(t, err)

	base := 9860.0 + 300
	for i, r := range out.Metadata.GrowthRates {
		base *= r
		assert.Equal(t, math.Round(base), out.Values[i+4])
	}
}

func TestPiecewiseSyntheticGrowthFirstYearsIndependentOfSeed(t *testing.T) {
	history, err := BuildHistorySeries(raw(2024, 9860))
	require.NoError(t, err)

	for _, s := range []uint64{1, 99, 12345} {
		out, err := PiecewiseSyntheticGrowth{}.Forecast(history, horizonYears(2025, 2030), &models.ForecastRequest{RandomSeed: seed(s)})
		require.NoError(t, err)
		assert.Equal(t, []float64{9663, 9761, 10010, 10160}, out.Values[:4])
	}
}

func TestPiecewiseSyntheticGrowthSeedReproducibility(t *testing.T) {
	history := minimumWageHistory(t)
	years := horizonYears(2025, 2040)

	run := func(s uint64) []float64 {
		out, err := PiecewiseSyntheticGrowth{}.Forecast(history, years, &models.ForecastRequest{RandomSeed: seed(s)})
		require.NoError(t, err)
		return out.Values
	}

	assert.Equal(t, run(5), run(5))
	assert.NotEqual(t, run(5), run(6))
}
