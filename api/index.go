package handler

import (
	"net/http"
	"os"
	"sync"

	config "wage-forecast-api/configs"
	"wage-forecast-api/pkg/handlers"
	"wage-forecast-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

var (
	app  *gin.Engine
	once sync.Once
)

// setupApp はGinアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
func setupApp() *gin.Engine {
	once.Do(func() {
		// .envファイルはVercelの環境変数設定から読み込まれるため、ここではgodotenvを呼び出しません。
		cfg := config.LoadConfig()

		log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: "json", Output: os.Stdout})
		if err != nil {
			log = zerolog.New(os.Stdout).With().Timestamp().Logger()
			log.Warn().Err(err).Msg("invalid log level, falling back to defaults")
		}

		if cfg.ForecastConfigFile != "" {
			if err := cfg.LoadForecastDefaults(cfg.ForecastConfigFile); err != nil {
				log.Error().Err(err).Msg("failed to load forecast config, using built-in defaults")
			}
		}

		gin.SetMode(gin.ReleaseMode)
		app = handlers.SetupRouter(cfg, log)
		log.Info().Msg("serverless application initialized")
	})
	return app
}

// Handler はVercelのエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	setupApp().ServeHTTP(w, r)
}
