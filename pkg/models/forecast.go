package models

// RawObservation 外部から受け取る未検証の観測値（year, wage）
// JSONの数値・数値文字列のどちらも受け付けるため interface{} で保持する
type RawObservation struct {
	Year interface{} `json:"year"`
	Wage interface{} `json:"wage"`
}

// WagePoint 検証済みの観測値
type WagePoint struct {
	Year int     `json:"year"`
	Wage float64 `json:"wage"`
}

// Bounds represents a half-open [Low, High) interval used for random draws.
// Low == High always draws Low.
type Bounds struct {
	Low  float64 `json:"low" yaml:"low" validate:"ltefield=High"`
	High float64 `json:"high" yaml:"high"`
}

// Strategy identifiers
const (
	StrategyLinear     = "linear"
	StrategyPolynomial = "polynomial"
	StrategySeasonal   = "seasonal"
	StrategyPiecewise  = "piecewise"
)

// ForecastRequest 予測リクエスト
type ForecastRequest struct {
	Strategy     string `json:"strategy" validate:"required"`
	HorizonStart int    `json:"horizon_start" validate:"required"`
	HorizonEnd   int    `json:"horizon_end" validate:"required,gtefield=HorizonStart"`

	PolynomialDegree   int     `json:"polynomial_degree,omitempty" default:"3" validate:"gte=1,lte=10"`
	PerturbationBounds *Bounds `json:"perturbation_bounds,omitempty"`
	GrowthBounds       *Bounds `json:"growth_bounds,omitempty"`

	// RandomSeed nil means fresh entropy per call; output is then not reproducible.
	RandomSeed *uint64 `json:"random_seed,omitempty"`

	// CompoundOnUnrounded compounds piecewise growth on the unrounded value
	// and rounds only the published figure.
	CompoundOnUnrounded bool `json:"compound_on_unrounded,omitempty"`
}

// ForecastPoint 1年分の予測値
type ForecastPoint struct {
	Year          int   `json:"year"`
	PredictedWage int64 `json:"predicted_wage"`
}

// ConfidenceInterval represents the confidence interval for a prediction
type ConfidenceInterval struct {
	Year       int     `json:"year"`
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
	Confidence float64 `json:"confidence"` // e.g., 0.95 for 95%
}

// ForecastMetadata 戦略ごとの診断情報（対応する戦略のみ設定）
type ForecastMetadata struct {
	Coefficients  []float64            `json:"coefficients,omitempty"`
	RSquared      *float64             `json:"r_squared,omitempty"`
	SlopePValue   *float64             `json:"slope_p_value,omitempty"`
	Equation      string               `json:"equation,omitempty"`
	NoiseDraws    []float64            `json:"noise_draws,omitempty"`
	GrowthRates   []float64            `json:"growth_rates,omitempty"`
	Seed          *uint64              `json:"seed,omitempty"`
	Changepoints  []int                `json:"changepoints,omitempty"`
	Iterations    int                  `json:"iterations,omitempty"`
	Intervals     []ConfidenceInterval `json:"intervals,omitempty"`
	AnchorYear    int                  `json:"anchor_year,omitempty"`
	AnchorWage    float64              `json:"anchor_wage,omitempty"`
	HistoryPoints int                  `json:"history_points"`
}

// ForecastResult 予測結果。years は horizon_start..horizon_end の連続列
type ForecastResult struct {
	Strategy     string           `json:"strategy"`
	HorizonStart int              `json:"horizon_start"`
	HorizonEnd   int              `json:"horizon_end"`
	Points       []ForecastPoint  `json:"points"`
	Metadata     ForecastMetadata `json:"metadata"`
}

// Years returns the forecast years in order.
func (r *ForecastResult) Years() []int {
	years := make([]int, len(r.Points))
	for i, p := range r.Points {
		years[i] = p.Year
	}
	return years
}

// Wages returns the predicted wages in order.
func (r *ForecastResult) Wages() []int64 {
	wages := make([]int64, len(r.Points))
	for i, p := range r.Points {
		wages[i] = p.PredictedWage
	}
	return wages
}

// ForecastAPIRequest HTTP経由の予測リクエスト（履歴 + 予測設定）
type ForecastAPIRequest struct {
	History []RawObservation `json:"history" binding:"required"`
	ForecastRequest
}

// CompareAPIRequest 複数戦略の比較リクエスト
type CompareAPIRequest struct {
	History    []RawObservation `json:"history" binding:"required"`
	Strategies []string         `json:"strategies" binding:"required,min=1"`
	ForecastRequest
}

// StrategyComparison 比較結果の1戦略分（結果かエラーのどちらか）
type StrategyComparison struct {
	Strategy string          `json:"strategy"`
	Result   *ForecastResult `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	Kind     string          `json:"kind,omitempty"`
}

// StrategyInfo 利用可能な戦略の説明
type StrategyInfo struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	MinObservations int    `json:"min_observations"`
	Stochastic      bool   `json:"stochastic"`
}
