package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// Config holds application configuration from environment variables
type Config struct {
	// Application
	AppPort       string `envconfig:"APP_PORT" default:"8080"`
	SessionSecret string `envconfig:"SESSION_SECRET" default:"ecoshop-dev-secret"`

	// Database
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     string `envconfig:"DB_PORT" default:"3306"`
	DBUser     string `envconfig:"DB_USER" default:"root"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"password"`
	DBName     string `envconfig:"DB_NAME" default:"ecoshop"`

	// OpenTelemetry
	OTELExporterOTLPEndpoint  string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4318"`
	OTELExporterOTLPHeaders   string `envconfig:"OTEL_EXPORTER_OTLP_HEADERS" default:""`
	OTELExporterOTLPInsecure  bool   `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`
	OTELServiceName           string `envconfig:"OTEL_SERVICE_NAME" default:"ecoshop-go"`
	OTELServiceVersion        string `envconfig:"OTEL_SERVICE_VERSION" default:"1.0.0"`
	OTELDeploymentEnvironment string `envconfig:"OTEL_DEPLOYMENT_ENVIRONMENT" default:"development"`
}

// LoadConfig loads configuration from a .env file and environment variables.
// The .env file is optional; environment variables win over file values.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			logrus.WithError(err).Warn("could not load .env file")
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetDSN returns the MySQL DSN string
func (c *Config) GetDSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true&charset=utf8mb4"
}
