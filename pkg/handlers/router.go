package handlers

import (
	"net/http"

	config "wage-forecast-api/configs"
	"wage-forecast-api/pkg/metrics"
	"wage-forecast-api/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SetupRouter サーバー（cmd/server）とサーバーレス関数（api）で共通のルーターを構築する
func SetupRouter(cfg *config.Config, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// サービスの初期化
	monitoringService := services.NewMonitoringService(logger)
	recorder := metrics.New()
	engine := services.NewForecastEngine(cfg.Forecast)

	// ハンドラーの初期化
	forecastHandler := NewForecastHandler(engine, recorder, logger)
	adminHandler := NewAdminHandler(cfg)
	monitoringHandler := NewMonitoringHandler(monitoringService)

	// ミドルウェアの登録
	r.Use(monitoringService.LoggingMiddleware())
	r.Use(cors.Default())

	// ヘルスチェック・メトリクス
	r.GET("/health", HealthCheck)
	r.GET(cfg.MetricsPath, gin.WrapH(recorder.Handler()))

	// APIバージョン1のルートグループ
	v1 := r.Group("/api/v1")
	v1.Use(authMiddleware(cfg.APIKey))
	{
		// 管理者向けAPI
		admin := v1.Group("/admin")
		{
			admin.GET("/health-status", adminHandler.GetHealthStatus)
			admin.POST("/maintenance/start", adminHandler.StartMaintenance)
			admin.POST("/maintenance/stop", adminHandler.StopMaintenance)
		}

		// モニタリングAPI
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/logs", monitoringHandler.GetLogs)
		}

		// 賃金予測API
		forecast := v1.Group("/forecast")
		forecast.Use(MaintenanceGuard())
		{
			forecast.POST("", forecastHandler.PredictWages)
			forecast.POST("/compare", forecastHandler.CompareStrategies)
			forecast.GET("/strategies", forecastHandler.GetStrategies)
		}
	}

	return r
}

// authMiddleware APIキーが設定されている場合のみ X-API-KEY ヘッダーを検証する
func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-KEY") != apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
