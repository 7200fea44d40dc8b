package services

import (
	"fmt"
	"math"

	"wage-forecast-api/pkg/models"
)

// DefaultPolynomialDegree 多項式回帰の既定次数
const DefaultPolynomialDegree = 3

// MaxPolynomialDegree リクエストの polynomial_degree の上限（validate タグの lte と同じ）
const MaxPolynomialDegree = 10

// DefaultPerturbationBounds 予測値に掛ける一様乱数 u の既定範囲（adjusted = raw*(1+u)）
var DefaultPerturbationBounds = models.Bounds{Low: -0.02, High: 0.02}

// PolynomialTrend d次多項式の最小二乗フィット + 乗法的な揺らぎ
type PolynomialTrend struct{}

func (PolynomialTrend) Name() string { return models.StrategyPolynomial }

func (PolynomialTrend) Description() string {
	return "Least-squares polynomial (default degree 3) with bounded multiplicative perturbation per year"
}

func (PolynomialTrend) Stochastic() bool { return true }

func (PolynomialTrend) MinObservations(req *models.ForecastRequest) int {
	return polynomialDegree(req) + 1
}

func polynomialDegree(req *models.ForecastRequest) int {
	if req == nil || req.PolynomialDegree < 1 {
		return DefaultPolynomialDegree
	}
	return req.PolynomialDegree
}

// PolynomialFit holds coefficients in ascending power of t, where
// t = (year - Center) / Scale.
type PolynomialFit struct {
	Coefficients []float64
	Center       float64
	Scale        float64
}

// Predict evaluates the polynomial at year (Horner).
func (f PolynomialFit) Predict(year float64) float64 {
	t := (year - f.Center) / f.Scale
	var v float64
	for i := len(f.Coefficients) - 1; i >= 0; i-- {
		v = v*t + f.Coefficients[i]
	}
	return v
}

// FitPolynomial fits a degree-d polynomial by solving the normal equations.
// Years are centered and scaled first; raw calendar years raised to the third
// power would make the system numerically singular.
func FitPolynomial(x, y []float64, degree int) (PolynomialFit, error) {
	if len(x) != len(y) || len(x) < degree+1 {
		return PolynomialFit{}, fmt.Errorf("need at least %d points for degree %d", degree+1, degree)
	}

	center := calculateMean(x)
	scale := (x[len(x)-1] - x[0]) / 2
	if scale < 1 {
		scale = 1
	}

	rows := make([][]float64, len(x))
	for i, xi := range x {
		t := (xi - center) / scale
		row := make([]float64, degree+1)
		p := 1.0
		for j := 0; j <= degree; j++ {
			row[j] = p
			p *= t
		}
		rows[i] = row
	}

	XtX, Xty := normalEquations(rows, y, nil)
	coeffs, err := solveSymmetric(XtX, Xty)
	if err != nil {
		return PolynomialFit{}, err
	}
	for _, c := range coeffs {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return PolynomialFit{}, fmt.Errorf("non-finite coefficient")
		}
	}

	return PolynomialFit{Coefficients: coeffs, Center: center, Scale: scale}, nil
}

func (s PolynomialTrend) Forecast(history *HistorySeries, years []int, req *models.ForecastRequest) (*StrategyOutput, error) {
	degree := polynomialDegree(req)
	if history.Len() < degree+1 {
		return nil, &InsufficientDataError{Strategy: s.Name(), Required: degree + 1, Got: history.Len()}
	}

	fit, err := FitPolynomial(history.Years(), history.Wages(), degree)
	if err != nil {
		return nil, &ModelFitError{Strategy: s.Name(), Iterations: 1, Err: err}
	}

	bounds := DefaultPerturbationBounds
	if req != nil && req.PerturbationBounds != nil {
		bounds = *req.PerturbationBounds
	}

	var seed *uint64
	if req != nil {
		seed = req.RandomSeed
	}
	rng := newRand(seed)

	values := make([]float64, len(years))
	draws := make([]float64, len(years))
	for i, year := range years {
		u := uniform(rng, bounds.Low, bounds.High)
		draws[i] = u
		values[i] = roundWage(fit.Predict(float64(year)) * (1 + u))
	}

	return &StrategyOutput{
		Values: values,
		Metadata: models.ForecastMetadata{
			Coefficients: fit.Coefficients,
			Equation:     fmt.Sprintf("t = (year - %.1f) / %.1f, degree %d", fit.Center, fit.Scale, degree),
			NoiseDraws:   draws,
			Seed:         seed,
		},
	}, nil
}
