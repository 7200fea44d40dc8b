package config

import (
	"fmt"
	"os"
	"strconv"

	"wage-forecast-api/pkg/services"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Port          string
	Environment   string
	APIKey        string
	AdminUsername string
	AdminPassword string
	LogLevel      string
	LogFormat     string
	MetricsPath   string

	// ForecastConfigFile optional YAML file overriding Forecast defaults
	ForecastConfigFile string
	Forecast           services.EngineDefaults
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	forecast := services.DefaultEngineDefaults()
	forecast.PolynomialDegree = getEnvInt("FORECAST_POLYNOMIAL_DEGREE", forecast.PolynomialDegree)
	forecast.MaxHorizon = getEnvInt("FORECAST_MAX_HORIZON", forecast.MaxHorizon)

	return &Config{
		Port:               getEnv("PORT", "8080"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		APIKey:             getEnv("API_KEY", ""),
		AdminUsername:      getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:      getEnv("ADMIN_PASSWORD", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "console"),
		MetricsPath:        getEnv("METRICS_PATH", "/metrics"),
		ForecastConfigFile: getEnv("FORECAST_CONFIG_FILE", ""),
		Forecast:           forecast,
	}
}

// LoadForecastDefaults overlays forecast defaults from a YAML file onto cfg.Forecast.
// Keys absent from the file keep their current values.
func (c *Config) LoadForecastDefaults(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read forecast config: %w", err)
	}

	var file struct {
		Forecast services.EngineDefaults `yaml:"forecast"`
	}
	file.Forecast = c.Forecast
	if err := yaml.Unmarshal(b, &file); err != nil {
		return fmt.Errorf("parse forecast config: %w", err)
	}

	f := file.Forecast
	if f.PolynomialDegree < 1 || f.PolynomialDegree > services.MaxPolynomialDegree {
		return fmt.Errorf("validate forecast config: polynomial_degree must be in [1, %d], got %d", services.MaxPolynomialDegree, f.PolynomialDegree)
	}
	if f.PerturbationBounds.Low > f.PerturbationBounds.High {
		return fmt.Errorf("validate forecast config: perturbation_bounds low > high")
	}
	if f.GrowthBounds.Low > f.GrowthBounds.High || f.GrowthBounds.Low <= 0 {
		return fmt.Errorf("validate forecast config: growth_bounds must satisfy 0 < low <= high")
	}

	c.Forecast = f
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
