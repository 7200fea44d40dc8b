package handlers

import (
	"errors"
	"net/http"
	"time"

	"wage-forecast-api/pkg/metrics"
	"wage-forecast-api/pkg/models"
	"wage-forecast-api/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ForecastHandler 賃金予測ハンドラー
type ForecastHandler struct {
	engine   *services.ForecastEngine
	recorder *metrics.Recorder
	logger   zerolog.Logger
}

// NewForecastHandler 新しい賃金予測ハンドラーを作成
func NewForecastHandler(engine *services.ForecastEngine, recorder *metrics.Recorder, logger zerolog.Logger) *ForecastHandler {
	return &ForecastHandler{
		engine:   engine,
		recorder: recorder,
		logger:   logger,
	}
}

// GetForecastEngine は、ハンドラーが持つ予測エンジンへの参照を返す
func (fh *ForecastHandler) GetForecastEngine() *services.ForecastEngine {
	return fh.engine
}

// PredictWages 履歴と予測設定を受け取り、1つの戦略で予測を実行
func (fh *ForecastHandler) PredictWages(c *gin.Context) {
	var request models.ForecastAPIRequest

	// リクエストボディをバインド
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "リクエストの解析に失敗しました: " + err.Error(),
			"kind":    "validation_error",
		})
		return
	}

	history, err := services.BuildHistorySeries(request.History)
	if err != nil {
		fh.respondError(c, err)
		return
	}

	c.Set(services.StrategyContextKey, request.Strategy)
	result, err := fh.run(history, request.ForecastRequest)
	if err != nil {
		fh.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"run_id":  uuid.New().String(),
		"data":    result,
	})
}

// CompareStrategies 同じ履歴・期間に対して複数の戦略を個別に実行する（結果は混ぜない）
func (fh *ForecastHandler) CompareStrategies(c *gin.Context) {
	var request models.CompareAPIRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "リクエストの解析に失敗しました: " + err.Error(),
			"kind":    "validation_error",
		})
		return
	}

	history, err := services.BuildHistorySeries(request.History)
	if err != nil {
		fh.respondError(c, err)
		return
	}

	comparisons := make([]models.StrategyComparison, 0, len(request.Strategies))
	for _, name := range request.Strategies {
		req := request.ForecastRequest
		req.Strategy = name

		cmp := models.StrategyComparison{Strategy: name}
		result, err := fh.run(history, req)
		if err != nil {
			cmp.Error = err.Error()
			cmp.Kind = services.ErrorKind(err)
		} else {
			cmp.Result = result
		}
		comparisons = append(comparisons, cmp)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"run_id":  uuid.New().String(),
		"data":    comparisons,
		"count":   len(comparisons),
	})
}

// GetStrategies 利用可能な戦略と既定の設定を返す
func (fh *ForecastHandler) GetStrategies(c *gin.Context) {
	d := fh.engine.Defaults()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"strategies": fh.engine.Strategies(),
			"defaults": gin.H{
				"polynomial_degree":   d.PolynomialDegree,
				"perturbation_bounds": d.PerturbationBounds,
				"growth_bounds":       d.GrowthBounds,
				"max_horizon":         d.MaxHorizon,
			},
		},
	})
}

// run executes one forecast and records metrics and a log line.
func (fh *ForecastHandler) run(history *services.HistorySeries, req models.ForecastRequest) (*models.ForecastResult, error) {
	start := time.Now()
	result, err := fh.engine.Run(history, req)
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = services.ErrorKind(err)
	}
	if fh.recorder != nil {
		// 未登録の戦略名はラベルにしない
		label := "unknown"
		if _, ok := fh.engine.Lookup(req.Strategy); ok {
			label = req.Strategy
		}
		fh.recorder.RecordRun(label, outcome, elapsed.Seconds(), req.HorizonEnd-req.HorizonStart+1)
	}

	if err != nil {
		fh.logger.Warn().
			Err(err).
			Str("strategy", req.Strategy).
			Str("kind", outcome).
			Int("history_points", history.Len()).
			Msg("forecast failed")
		return nil, err
	}

	fh.logger.Debug().
		Str("strategy", req.Strategy).
		Int("horizon_start", req.HorizonStart).
		Int("horizon_end", req.HorizonEnd).
		Int("history_points", history.Len()).
		Dur("elapsed", elapsed).
		Msg("forecast completed")
	return result, nil
}

func (fh *ForecastHandler) respondError(c *gin.Context, err error) {
	c.JSON(errorStatus(err), gin.H{
		"success": false,
		"error":   err.Error(),
		"kind":    services.ErrorKind(err),
	})
}

// errorStatus maps forecast error kinds to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
