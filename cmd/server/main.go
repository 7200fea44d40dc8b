package main

import (
	config "wage-forecast-api/configs"
	"wage-forecast-api/pkg/handlers"
	"wage-forecast-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込み（存在しなくてもよい）
	envErr := godotenv.Load()

	// 設定の読み込み
	cfg := config.LoadConfig()

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		panic(err)
	}
	if envErr != nil {
		log.Warn().Err(envErr).Msg(".env file not found or could not be loaded")
	}

	if cfg.ForecastConfigFile != "" {
		if err := cfg.LoadForecastDefaults(cfg.ForecastConfigFile); err != nil {
			log.Fatal().Err(err).Str("path", cfg.ForecastConfigFile).Msg("failed to load forecast config")
		}
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := handlers.SetupRouter(cfg, log)

	log.Info().
		Str("port", cfg.Port).
		Str("environment", cfg.Environment).
		Int("polynomial_degree", cfg.Forecast.PolynomialDegree).
		Int("max_horizon", cfg.Forecast.MaxHorizon).
		Msg("Starting wage forecast API server")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
