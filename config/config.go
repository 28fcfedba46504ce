package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the service configuration
type Config struct {
	AppName    string
	Env        string
	Port       int
	LogLevel   string
	PrettyLogs bool

	// HTTP server timeouts
	HTTPWriteTimeout time.Duration
	HTTPReadTimeout  time.Duration
	HTTPIdleTimeout  time.Duration

	// CORS origin of the frontend
	FrontendOrigin string

	// TTL shared by state tokens and stored credentials
	StateTokenTTL time.Duration

	Redis RedisConfig
	Kafka KafkaConfig
	Auth  AuthConfig
	OTLP  OTLPConfig
	OAuth OAuthProviders
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// KafkaConfig holds the lifecycle event publisher settings
type KafkaConfig struct {
	Enabled bool
	Brokers string
	Topic   string
}

// AuthConfig holds optional inbound OIDC settings
type AuthConfig struct {
	Enabled   bool
	IssuerURL string
	ClientID  string
}

// OTLPConfig holds tracing export settings
type OTLPConfig struct {
	Enabled  bool
	Endpoint string
	Protocol string
	Insecure bool
}

// ProviderConfig holds one platform's OAuth client settings
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       string
}

// OAuthProviders groups the per-platform OAuth settings
type OAuthProviders struct {
	HubSpot  ProviderConfig
	Notion   ProviderConfig
	Airtable ProviderConfig

	// AirtableCodeVerifier is the static PKCE verifier for Airtable flows
	AirtableCodeVerifier string
}

// Load reads configuration from the environment. In development a .env file
// is loaded first.
func Load() (Config, error) {
	if getEnv("FERN_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		AppName:    getEnv("APP_NAME", "fern-api"),
		Env:        getEnv("FERN_ENV", "development"),
		Port:       getEnvInt("PORT", 8000),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		PrettyLogs: getEnvBool("PRETTY_LOGS", false),

		HTTPWriteTimeout: getEnvDuration("HTTP_SERVER_WRITE_TIMEOUT", 10*time.Second),
		HTTPReadTimeout:  getEnvDuration("HTTP_SERVER_READ_TIMEOUT", 10*time.Second),
		HTTPIdleTimeout:  getEnvDuration("HTTP_SERVER_IDLE_TIMEOUT", 10*time.Second),

		FrontendOrigin: getEnv("FRONTEND_ORIGIN", "http://localhost:3000"),
		StateTokenTTL:  getEnvDuration("STATE_TOKEN_TTL", 600*time.Second),

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: getEnv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getEnv("KAFKA_EVENTS_TOPIC", "integration-events"),
		},
		Auth: AuthConfig{
			Enabled:   getEnvBool("AUTH_ENABLED", false),
			IssuerURL: getEnv("AUTH_ISSUER_URL", ""),
			ClientID:  getEnv("AUTH_CLIENT_ID", ""),
		},
		OTLP: OTLPConfig{
			Enabled:  getEnvBool("OTLP_ENABLED", false),
			Endpoint: getEnv("OTLP_ENDPOINT", "localhost:4317"),
			Protocol: getEnv("OTLP_PROTOCOL", "grpc"),
			Insecure: getEnvBool("OTLP_INSECURE", true),
		},
		OAuth: OAuthProviders{
			HubSpot: ProviderConfig{
				ClientID:     getEnv("HUBSPOT_CLIENT_ID", ""),
				ClientSecret: getEnv("HUBSPOT_CLIENT_SECRET", ""),
				RedirectURI:  getEnv("HUBSPOT_REDIRECT_URI", "http://localhost:8000/integrations/hubspot/oauth2callback"),
				Scopes:       getEnv("HUBSPOT_SCOPES", "crm.objects.contacts.read crm.objects.companies.read crm.objects.deals.read"),
			},
			Notion: ProviderConfig{
				ClientID:     getEnv("NOTION_CLIENT_ID", ""),
				ClientSecret: getEnv("NOTION_CLIENT_SECRET", ""),
				RedirectURI:  getEnv("NOTION_REDIRECT_URI", "http://localhost:8000/integrations/notion/oauth2callback"),
			},
			Airtable: ProviderConfig{
				ClientID:     getEnv("AIRTABLE_CLIENT_ID", ""),
				ClientSecret: getEnv("AIRTABLE_CLIENT_SECRET", ""),
				RedirectURI:  getEnv("AIRTABLE_REDIRECT_URI", "http://localhost:8000/integrations/airtable/oauth2callback"),
				Scopes:       getEnv("AIRTABLE_SCOPES", "data.records:read schema.bases:read"),
			},
			AirtableCodeVerifier: getEnv("AIRTABLE_CODE_VERIFIER", ""),
		},
	}

	if cfg.Auth.Enabled && (cfg.Auth.IssuerURL == "" || cfg.Auth.ClientID == "") {
		return Config{}, fmt.Errorf("AUTH_ISSUER_URL and AUTH_CLIENT_ID are required when AUTH_ENABLED is true")
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with production settings
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Bare integers are treated as seconds for compatibility with the
		// original STATE_TOKEN_TTL setting
		if i, err := strconv.Atoi(value); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return fallback
}
