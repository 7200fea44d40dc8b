package services

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"wage-forecast-api/pkg/models"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// DefaultMaxHorizon 1リクエストで予測できる最大年数
const DefaultMaxHorizon = 200

// EngineDefaults リクエストで省略された設定の既定値
type EngineDefaults struct {
	PolynomialDegree   int           `yaml:"polynomial_degree"`
	PerturbationBounds models.Bounds `yaml:"perturbation_bounds"`
	GrowthBounds       models.Bounds `yaml:"growth_bounds"`
	MaxHorizon         int           `yaml:"max_horizon"`
}

// DefaultEngineDefaults returns the built-in defaults.
func DefaultEngineDefaults() EngineDefaults {
	return EngineDefaults{
		PolynomialDegree:   DefaultPolynomialDegree,
		PerturbationBounds: DefaultPerturbationBounds,
		GrowthBounds:       DefaultGrowthBounds,
		MaxHorizon:         DefaultMaxHorizon,
	}
}

// ForecastEngine 戦略を選択して実行し、結果を共通の形式に正規化する
//
// The engine holds no per-run state; one instance may serve concurrent Run calls.
type ForecastEngine struct {
	strategies map[string]ForecastStrategy
	defaults   EngineDefaults
	validate   *validator.Validate
}

// NewForecastEngine 新しい予測エンジンを作成
func NewForecastEngine(cfg EngineDefaults) *ForecastEngine {
	if cfg.MaxHorizon <= 0 {
		cfg.MaxHorizon = DefaultMaxHorizon
	}
	validate := validator.New()
	// エラーメッセージにはJSONのフィールド名を使う
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &ForecastEngine{
		strategies: DefaultStrategies(),
		defaults:   cfg,
		validate:   validate,
	}
}

// WithStrategy registers s under s.Name(), replacing any strategy with that name.
// It must be called before the engine is shared between goroutines.
func (e *ForecastEngine) WithStrategy(s ForecastStrategy) *ForecastEngine {
	e.strategies[s.Name()] = s
	return e
}

// Lookup returns the strategy registered under name.
func (e *ForecastEngine) Lookup(name string) (ForecastStrategy, bool) {
	s, ok := e.strategies[name]
	return s, ok
}

// Defaults returns the engine's configured defaults.
func (e *ForecastEngine) Defaults() EngineDefaults { return e.defaults }

// Strategies 利用可能な戦略の一覧（名前順）
func (e *ForecastEngine) Strategies() []models.StrategyInfo {
	req := e.fillFromConfig(models.ForecastRequest{})
	out := make([]models.StrategyInfo, 0, len(e.strategies))
	for _, name := range sortedStrategyNames(e.strategies) {
		s := e.strategies[name]
		out = append(out, models.StrategyInfo{
			Name:            name,
			Description:     s.Description(),
			MinObservations: s.MinObservations(&req),
			Stochastic:      s.Stochastic(),
		})
	}
	return out
}

// Run validates the request, dispatches to exactly one strategy and returns a
// freshly allocated result. Strategy errors are returned unchanged.
func (e *ForecastEngine) Run(history *HistorySeries, request models.ForecastRequest) (*models.ForecastResult, error) {
	if history == nil || history.Len() == 0 {
		return nil, &ValidationError{Field: "history", Index: -1, Reason: "at least one observation is required"}
	}

	req, err := e.applyDefaults(request)
	if err != nil {
		return nil, err
	}
	if err := e.validateRequest(history, &req); err != nil {
		return nil, err
	}

	strategy, ok := e.Lookup(req.Strategy)
	if !ok {
		return nil, &ValidationError{Field: "strategy", Index: -1, Reason: fmt.Sprintf("unknown strategy %q", req.Strategy)}
	}

	if required := strategy.MinObservations(&req); history.Len() < required {
		return nil, &InsufficientDataError{Strategy: strategy.Name(), Required: required, Got: history.Len()}
	}

	years := horizonYears(req.HorizonStart, req.HorizonEnd)
	out, err := strategy.Forecast(history, years, &req)
	if err != nil {
		return nil, err
	}

	return normalizeResult(strategy.Name(), years, history, &req, out)
}

// applyDefaults returns a copy of req with omitted settings filled in from the
// engine config, then from struct tag defaults for anything still zero.
// The caller's request (and anything it points to) is never modified.
func (e *ForecastEngine) applyDefaults(req models.ForecastRequest) (models.ForecastRequest, error) {
	req = e.fillFromConfig(req)
	if err := defaults.Set(&req); err != nil {
		return req, fmt.Errorf("apply request defaults: %w", err)
	}
	return req, nil
}

func (e *ForecastEngine) fillFromConfig(req models.ForecastRequest) models.ForecastRequest {
	if req.PolynomialDegree == 0 {
		req.PolynomialDegree = e.defaults.PolynomialDegree
	}
	if req.PerturbationBounds == nil {
		b := e.defaults.PerturbationBounds
		req.PerturbationBounds = &b
	} else {
		b := *req.PerturbationBounds
		req.PerturbationBounds = &b
	}
	if req.GrowthBounds == nil {
		b := e.defaults.GrowthBounds
		req.GrowthBounds = &b
	} else {
		b := *req.GrowthBounds
		req.GrowthBounds = &b
	}
	if req.RandomSeed != nil {
		seed := *req.RandomSeed
		req.RandomSeed = &seed
	}
	return req
}

func (e *ForecastEngine) validateRequest(history *HistorySeries, req *models.ForecastRequest) error {
	if err := e.validate.Struct(req); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
			fe := fieldErrors[0]
			return &ValidationError{Field: fe.Field(), Index: -1, Reason: validationReason(fe)}
		}
		return &ValidationError{Field: "request", Index: -1, Reason: err.Error()}
	}

	// 履歴の年と同じく int32 に収まる範囲に限る
	for _, f := range []struct {
		name string
		year int
	}{{"horizon_start", req.HorizonStart}, {"horizon_end", req.HorizonEnd}} {
		if f.year > math.MaxInt32 || f.year < -math.MaxInt32 {
			return &ValidationError{Field: f.name, Index: -1, Reason: fmt.Sprintf("year %d is out of range", f.year)}
		}
	}

	lastYear := history.Last().Year
	if req.HorizonStart <= lastYear {
		return &ValidationError{
			Field:  "horizon_start",
			Index:  -1,
			Reason: fmt.Sprintf("must be after the last historical year %d, got %d", lastYear, req.HorizonStart),
		}
	}
	if span := int64(req.HorizonEnd) - int64(req.HorizonStart) + 1; span > int64(e.defaults.MaxHorizon) {
		return &ValidationError{
			Field:  "horizon_end",
			Index:  -1,
			Reason: fmt.Sprintf("horizon of %d years exceeds the maximum of %d", span, e.defaults.MaxHorizon),
		}
	}
	if req.GrowthBounds.Low <= 0 {
		return &ValidationError{Field: "growth_bounds.low", Index: -1, Reason: "growth multiplier must be positive"}
	}
	if req.PerturbationBounds.Low <= -1 {
		return &ValidationError{Field: "perturbation_bounds.low", Index: -1, Reason: "perturbation must be greater than -1"}
	}
	return nil
}

func validationReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "gtefield":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "ltefield":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

// normalizeResult 戦略の生の出力を整数賃金・連続した年の ForecastResult に変換する
func normalizeResult(name string, years []int, history *HistorySeries, req *models.ForecastRequest, out *StrategyOutput) (*models.ForecastResult, error) {
	if out == nil || len(out.Values) != len(years) {
		got := 0
		if out != nil {
			got = len(out.Values)
		}
		return nil, fmt.Errorf("strategy %s returned %d values for %d years", name, got, len(years))
	}

	points := make([]models.ForecastPoint, len(years))
	for i, year := range years {
		v := roundWage(out.Values[i])
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) >= math.MaxInt64 {
			return nil, &ModelFitError{Strategy: name, Iterations: out.Metadata.Iterations, Err: fmt.Errorf("prediction for %d is out of range: %v", year, out.Values[i])}
		}
		points[i] = models.ForecastPoint{Year: year, PredictedWage: int64(v)}
	}

	meta := out.Metadata
	meta.HistoryPoints = history.Len()
	if meta.Seed != nil {
		seed := *meta.Seed
		meta.Seed = &seed
	}

	return &models.ForecastResult{
		Strategy:     name,
		HorizonStart: req.HorizonStart,
		HorizonEnd:   req.HorizonEnd,
		Points:       points,
		Metadata:     meta,
	}, nil
}
