package services

import (
	"errors"
	"math"
	"math/rand/v2"
)

var errNotPositiveDefinite = errors.New("normal equations are not positive definite")

// solveSymmetric solves A*x=b for symmetric positive definite A by Cholesky
func solveSymmetric(A [][]float64, b []float64) ([]float64, error) {
	n := len(A)
	if n == 0 || len(b) != n {
		return nil, errors.New("dimension mismatch")
	}
	for _, row := range A {
		if len(row) != n {
			return nil, errors.New("matrix is not square")
		}
	}
	// copy A to L
	L := make([][]float64, n)
	for i := 0; i < n; i++ {
		L[i] = make([]float64, n)
		copy(L[i], A[i])
	}
	// Cholesky decomposition
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			var sum float64
			for k := 0; k < j; k++ {
				sum += L[i][k] * L[j][k]
			}
			if i == j {
				val := L[i][i] - sum
				if val <= 0 || math.IsNaN(val) {
					return nil, errNotPositiveDefinite
				}
				L[i][j] = math.Sqrt(val)
			} else {
				L[i][j] = (L[i][j] - sum) / L[j][j]
			}
		}
		for j := i + 1; j < n; j++ {
			L[i][j] = 0
		}
	}
	// Forward substitution
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < i; j++ {
			sum += L[i][j] * y[j]
		}
		y[i] = (b[i] - sum) / L[i][i]
	}
	// Back substitution
	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		var sum float64
		for j := i + 1; j < n; j++ {
			sum += L[j][i] * x[j]
		}
		x[i] = (y[i] - sum) / L[i][i]
	}
	return x, nil
}

// normalEquations builds X'X + diag(ridge) and X'y from row-major design rows.
// ridge may be nil.
func normalEquations(rows [][]float64, y []float64, ridge []float64) ([][]float64, []float64) {
	k := len(rows[0])
	XtX := make([][]float64, k)
	for i := range XtX {
		XtX[i] = make([]float64, k)
	}
	Xty := make([]float64, k)
	for t, row := range rows {
		for i := 0; i < k; i++ {
			Xty[i] += row[i] * y[t]
			for j := 0; j < k; j++ {
				XtX[i][j] += row[i] * row[j]
			}
		}
	}
	for i := range ridge {
		XtX[i][i] += ridge[i]
	}
	return XtX, Xty
}

// calculateMean パッケージ内部用のヘルパー関数：平均値を計算
func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// residualStandardError パッケージ内部用のヘルパー関数：残差標準誤差 sqrt(SSR/(n-params))
// 自由度が残らない場合は0を返す
func residualStandardError(residuals []float64, params int) float64 {
	dof := len(residuals) - params
	if dof <= 0 {
		return 0
	}
	ssr := 0.0
	for _, r := range residuals {
		ssr += r * r
	}
	return math.Sqrt(ssr / float64(dof))
}

// roundWage rounds half away from zero.
func roundWage(v float64) float64 {
	return math.Round(v)
}

// uniform draws from [low, high).
func uniform(rng *rand.Rand, low, high float64) float64 {
	return low + rng.Float64()*(high-low)
}

// newRand 呼び出しごとの乱数生成器を作る。seed が nil なら毎回異なる系列になる
func newRand(seed *uint64) *rand.Rand {
	if seed == nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
}

// horizonYears returns start..end inclusive. Callers bound the span first.
func horizonYears(start, end int) []int {
	if end < start {
		return nil
	}
	years := make([]int, end-start+1)
	for i := range years {
		years[i] = start + i
	}
	return years
}

// studentTTwoSided returns P(|T| >= |t|) for Student's t with df degrees of
// freedom, via I_{df/(df+t^2)}(df/2, 1/2).
func studentTTwoSided(t, df float64) float64 {
	if df <= 0 || math.IsNaN(t) {
		return math.NaN()
	}
	if math.IsInf(t, 0) {
		return 0
	}
	return regularizedIncompleteBeta(0.5*df, 0.5, df/(df+t*t))
}

// regularizedIncompleteBeta returns I_x(a,b).
func regularizedIncompleteBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	bt := math.Exp(lgamma(a+b) - lgamma(a) - lgamma(b) + a*math.Log(x) + b*math.Log(1-x))
	// 対称性を使って収束の速い側で評価する
	if x < (a+1)/(a+b+2) {
		return bt * betacf(a, b, x) / a
	}
	return 1 - bt*betacf(b, a, 1-x)/b
}

// betacf evaluates the incomplete beta continued fraction (modified Lentz).
func betacf(a, b, x float64) float64 {
	const (
		maxIter = 300
		eps     = 1e-14
		fpmin   = 1e-300
	)
	clamp := func(v float64) float64 {
		if math.Abs(v) < fpmin {
			return fpmin
		}
		return v
	}

	qab, qap, qam := a+b, a+1, a-1
	c := 1.0
	d := 1 / clamp(1-qab*x/qap)
	h := d
	for m := 1; m <= maxIter; m++ {
		em := float64(m)
		m2 := 2 * em

		aa := em * (b - em) * x / ((qam + m2) * (a + m2))
		d = 1 / clamp(1+aa*d)
		c = clamp(1 + aa/c)
		h *= d * c

		aa = -(a + em) * (qab + em) * x / ((a + m2) * (qap + m2))
		d = 1 / clamp(1+aa*d)
		c = clamp(1 + aa/c)
		del := d * c
		h *= del
		if math.Abs(del-1) < eps {
			break
		}
	}
	return h
}

func lgamma(x float64) float64 {
	l, _ := math.Lgamma(x)
	return l
}
